package attachments

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"tesouraria/internal/core"
	"tesouraria/internal/log"
)

// Azurite development account.
const (
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// blobAPI is the part of *azblob.Client the bin uses.
type blobAPI interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	DeleteBlob(ctx context.Context, containerName, blobName string, o *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
}

// BlobBin keeps attachment content in Azure Blob Storage, one blob per
// attachment named <user>/<id>.pdf.
type BlobBin struct {
	client    blobAPI
	container string
	logger    *log.Logger
}

func isLocal(serviceURL string) bool {
	return strings.HasPrefix(serviceURL, "http://")
}

// NewBlobBin connects to serviceURL. Plain http URLs are treated as Azurite
// and use its shared key; anything else uses DefaultAzureCredential.
func NewBlobBin(serviceURL, container string, logger *log.Logger) (*BlobBin, error) {
	if serviceURL == "" {
		return nil, fmt.Errorf("blob service URL is required")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentAttachments)

	var client *azblob.Client
	if isLocal(serviceURL) {
		logger.Info("Using Azurite shared key credentials for blob storage")
		cred, err := azblob.NewSharedKeyCredential(azuriteAccountName, azuriteAccountKey)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client with shared key: %w", err)
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("create default azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client: %w", err)
		}
	}
	return newBlobBin(client, container, logger), nil
}

func newBlobBin(client blobAPI, container string, logger *log.Logger) *BlobBin {
	return &BlobBin{client: client, container: container, logger: logger}
}

// EnsureContainer creates the container when it does not exist yet.
func (b *BlobBin) EnsureContainer(ctx context.Context) error {
	_, err := b.client.CreateContainer(ctx, b.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", b.container, err)
	}
	return nil
}

func (b *BlobBin) Name() string { return "azblob" }

func blobName(userID, id string) string {
	return userID + "/" + id + ".pdf"
}

func (b *BlobBin) Store(ctx context.Context, userID string, a *core.Attachment, data []byte) error {
	name := blobName(userID, a.ID)
	contentType := pdfContentType
	_, err := b.client.UploadBuffer(ctx, b.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata: map[string]*string{
			"name":       to(a.Name),
			"uploadedat": to(a.UploadedAt.Format(time.RFC3339)),
		},
	})
	if err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", b.container, name, err)
	}
	b.logger.DebugContext(ctx, "Uploaded attachment blob", "blob_name", name, "size_bytes", len(data))
	return nil
}

func (b *BlobBin) Load(ctx context.Context, userID string, a core.Attachment) ([]byte, error) {
	name := blobName(userID, a.ID)
	resp, err := b.client.DownloadStream(ctx, b.container, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download blob %s/%s: %w", b.container, name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob content: %w", err)
	}
	return data, nil
}

// Remove deletes the blob; a blob that is already gone is not an error.
func (b *BlobBin) Remove(ctx context.Context, userID string, a core.Attachment) error {
	name := blobName(userID, a.ID)
	_, err := b.client.DeleteBlob(ctx, b.container, name, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete blob %s/%s: %w", b.container, name, err)
	}
	return nil
}

func to[T any](v T) *T { return &v }
