package api

import (
	"izakaya/internal/models"
	"izakaya/internal/reconcile"
)

// Multipart form fields accepted by POST /records and PUT /records/{id}.
const (
	FieldName                 = "name"
	FieldRating               = "rating"
	FieldGenre                = "genre"
	FieldMemo                 = "memo"
	FieldExternalLinkURL      = "external_link_url"
	FieldMapURL               = "mapUrl"
	FieldStatus               = "status"
	FieldImages               = "images"
	FieldCaptions             = "captions"
	FieldDeletedAttachmentIDs = "deletedAttachmentIds"
	FieldDeletedImageIDs      = "deletedImageIds"
	FieldCaptionEdits         = "captionEdits"
	FieldExistingCaptions     = "existingCaptions"
)

// DeletedMessage is the message returned by a successful record delete.
const DeletedMessage = "Deleted successfully"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// RecordResponse is a record plus the attachment failures of the request
// that produced it.
type RecordResponse struct {
	models.Record
	AttachmentFailures []reconcile.Failure `json:"attachment_failures,omitempty"`
}

// DeleteResponse is returned by DELETE /records/{id}.
type DeleteResponse struct {
	Message            string              `json:"message"`
	AttachmentFailures []reconcile.Failure `json:"attachment_failures,omitempty"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	DBPath            string `json:"db_path,omitempty"`
	SchemaVersion     uint   `json:"schema_version"`
	PendingMigrations int    `json:"pending_migrations"`
	BlobBackend       string `json:"blob_backend,omitempty"`
}
