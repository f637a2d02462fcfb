package core

import "time"

// Attachment is a PDF receipt kept in the attachment bin. It is not linked to
// any transaction.
type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	DataURL    string    `json:"dataUrl,omitempty"`
}
