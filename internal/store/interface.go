package store

import (
	"context"

	"izakaya/internal/models"
)

// RecordStore abstracts record storage backends.
type RecordStore interface {
	RecordExists(ctx context.Context, id int64) (bool, error)
	CreateRecord(ctx context.Context, record *models.Record) error
	GetRecord(ctx context.Context, id int64) (*models.Record, error)
	UpdateRecord(ctx context.Context, id int64, update RecordUpdate) error
	DeleteRecord(ctx context.Context, id int64) (bool, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]models.Record, error)
	ListGenres(ctx context.Context) ([]string, error)
}

// AttachmentStore is the metadata persistence surface for attachments.
// Every mutation is scoped by record id so an attachment id belonging to
// another record never matches.
type AttachmentStore interface {
	CreateAttachments(ctx context.Context, attachments []*models.Attachment) error
	ListAttachmentsByRecord(ctx context.Context, recordID int64) ([]models.Attachment, error)
	ListAttachmentsByRecords(ctx context.Context, recordIDs []int64) (map[int64][]models.Attachment, error)
	UpdateAttachmentCaption(ctx context.Context, recordID, id int64, caption string) (bool, error)
	DeleteAttachments(ctx context.Context, recordID int64, ids []int64) (int64, error)
	DeleteAttachmentsByRecord(ctx context.Context, recordID int64) (int64, error)
	ListBlobKeys(ctx context.Context) ([]string, error)
}

var (
	_ RecordStore     = (*Store)(nil)
	_ AttachmentStore = (*Store)(nil)
)
