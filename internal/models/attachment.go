package models

import "time"

// Attachment is a photo linked to a record. The bytes live in the blob store
// under BlobKey; Location is how clients retrieve them.
type Attachment struct {
	ID          int64     `json:"id"`
	RecordID    int64     `json:"record_id"`
	BlobKey     string    `json:"blob_key"`
	Location    string    `json:"location"`
	Caption     string    `json:"caption,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}
