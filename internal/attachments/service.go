// Package attachments manages the PDF receipts bin. Attachments are not
// linked to transactions.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tesouraria/internal/core"
	"tesouraria/internal/localstore"
	"tesouraria/internal/log"
)

const (
	DefaultMaxFileBytes = 5 << 20
	DefaultQuotaBytes   = 25 << 20

	pdfContentType = "application/pdf"
)

var (
	ErrNotPDF        = errors.New("file is not a PDF")
	ErrTooLarge      = errors.New("file exceeds the size limit")
	ErrQuotaExceeded = errors.New("attachment quota exceeded")
	ErrNotFound      = errors.New("attachment not found")
)

// Message maps an attachment error to the text shown to the user.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrNotPDF):
		return "Por favor, selecione um arquivo PDF (.pdf)."
	case errors.Is(err, ErrTooLarge):
		return "O arquivo é grande demais."
	case errors.Is(err, ErrQuotaExceeded):
		return "Espaço para comprovantes esgotado. Exclua arquivos antigos antes de enviar novos."
	case errors.Is(err, ErrNotFound):
		return "Comprovante não encontrado."
	default:
		return "Erro ao salvar o comprovante: " + err.Error()
	}
}

// Bin holds attachment content. The attachment index itself always lives in
// the local store.
type Bin interface {
	// Store saves data for a. It may fill in a.DataURL.
	Store(ctx context.Context, userID string, a *core.Attachment, data []byte) error
	Load(ctx context.Context, userID string, a core.Attachment) ([]byte, error)
	Remove(ctx context.Context, userID string, a core.Attachment) error
	Name() string
}

type Limits struct {
	MaxFileBytes int64
	QuotaBytes   int64
}

// Service validates uploads and keeps the per-user index.
type Service struct {
	index  *localstore.Store
	bin    Bin
	limits Limits
	now    func() time.Time
	logger *log.Logger

	// mu serializes index read-modify-write cycles.
	mu sync.Mutex
}

func NewService(index *localstore.Store, bin Bin, limits Limits, logger *log.Logger) *Service {
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = DefaultMaxFileBytes
	}
	if limits.QuotaBytes <= 0 {
		limits.QuotaBytes = DefaultQuotaBytes
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		index:  index,
		bin:    bin,
		limits: limits,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentAttachments),
	}
}

func (s *Service) Limits() Limits {
	return s.limits
}

// IsPDF reports whether the declared media type is application/pdf. The
// content itself is never inspected.
func IsPDF(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), pdfContentType)
}

// Add stores a PDF for the user. Nothing is stored when it returns an error.
func (s *Service) Add(ctx context.Context, userID, name, contentType string, data []byte) (core.Attachment, error) {
	if !IsPDF(contentType) {
		return core.Attachment{}, ErrNotPDF
	}
	size := int64(len(data))
	if size > s.limits.MaxFileBytes {
		return core.Attachment{}, ErrTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.index.Attachments(ctx, userID)
	if err != nil {
		return core.Attachment{}, fmt.Errorf("load attachment index: %w", err)
	}
	if usage(list)+size > s.limits.QuotaBytes {
		return core.Attachment{}, ErrQuotaExceeded
	}

	a := core.Attachment{
		ID:         "pdf_" + uuid.NewString(),
		Name:       cleanName(name),
		Size:       size,
		UploadedAt: s.now().UTC(),
	}
	if err := s.bin.Store(ctx, userID, &a, data); err != nil {
		return core.Attachment{}, fmt.Errorf("store attachment: %w", err)
	}
	if err := s.index.SaveAttachments(ctx, userID, append(list, a)); err != nil {
		if rerr := s.bin.Remove(ctx, userID, a); rerr != nil {
			s.logger.WarnContext(ctx, "Failed to remove orphaned attachment",
				log.FieldAttachmentID, a.ID, log.FieldError, rerr.Error())
		}
		return core.Attachment{}, fmt.Errorf("save attachment index: %w", err)
	}

	s.logger.InfoContext(ctx, "Attachment stored",
		log.FieldAttachmentID, a.ID, log.FieldUserID, userID, "size", size, "bin", s.bin.Name())
	a.DataURL = ""
	return a, nil
}

// List returns the user's attachments, newest first, without content.
func (s *Service) List(ctx context.Context, userID string) ([]core.Attachment, error) {
	list, err := s.index.Attachments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load attachment index: %w", err)
	}
	out := make([]core.Attachment, len(list))
	for i, a := range list {
		a.DataURL = ""
		out[i] = a
	}
	slices.SortStableFunc(out, func(a, b core.Attachment) int {
		return b.UploadedAt.Compare(a.UploadedAt)
	})
	return out, nil
}

// Usage returns the bytes the user currently stores.
func (s *Service) Usage(ctx context.Context, userID string) (int64, error) {
	list, err := s.index.Attachments(ctx, userID)
	if err != nil {
		return 0, err
	}
	return usage(list), nil
}

// Get returns the attachment and its content.
func (s *Service) Get(ctx context.Context, userID, id string) (core.Attachment, []byte, error) {
	list, err := s.index.Attachments(ctx, userID)
	if err != nil {
		return core.Attachment{}, nil, fmt.Errorf("load attachment index: %w", err)
	}
	i := slices.IndexFunc(list, func(a core.Attachment) bool { return a.ID == id })
	if i < 0 {
		return core.Attachment{}, nil, ErrNotFound
	}
	data, err := s.bin.Load(ctx, userID, list[i])
	if err != nil {
		return core.Attachment{}, nil, err
	}
	a := list[i]
	a.DataURL = ""
	return a, data, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.index.Attachments(ctx, userID)
	if err != nil {
		return fmt.Errorf("load attachment index: %w", err)
	}
	i := slices.IndexFunc(list, func(a core.Attachment) bool { return a.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	if err := s.bin.Remove(ctx, userID, list[i]); err != nil {
		return fmt.Errorf("remove attachment: %w", err)
	}
	if err := s.index.SaveAttachments(ctx, userID, slices.Delete(list, i, i+1)); err != nil {
		return fmt.Errorf("save attachment index: %w", err)
	}

	s.logger.InfoContext(ctx, "Attachment deleted", log.FieldAttachmentID, id, log.FieldUserID, userID)
	return nil
}

func usage(list []core.Attachment) int64 {
	var total int64
	for _, a := range list {
		total += a.Size
	}
	return total
}

// cleanName keeps only the base name of an uploaded file.
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "documento.pdf"
	}
	return name
}
