package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"tesouraria/internal/core"
)

const dataURLPrefix = "data:application/pdf;base64,"

// LocalBin keeps the content inline in the attachment index as a data URI.
type LocalBin struct{}

func (LocalBin) Name() string { return "local" }

func (LocalBin) Store(_ context.Context, _ string, a *core.Attachment, data []byte) error {
	a.DataURL = dataURLPrefix + base64.StdEncoding.EncodeToString(data)
	return nil
}

func (LocalBin) Load(_ context.Context, _ string, a core.Attachment) ([]byte, error) {
	encoded, ok := strings.CutPrefix(a.DataURL, dataURLPrefix)
	if !ok {
		return nil, fmt.Errorf("attachment %s has no inline content", a.ID)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s: %w", a.ID, err)
	}
	return data, nil
}

// Remove has nothing to do: the content goes away with the index entry.
func (LocalBin) Remove(context.Context, string, core.Attachment) error { return nil }
