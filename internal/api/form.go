package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"
)

// Photo is one image to upload with a record form.
type Photo struct {
	Filename    string
	ContentType string
	Caption     string
	Content     io.Reader
}

// RecordForm is the multipart body of a record create or update. Nil scalar
// fields are omitted, which leaves them unchanged on update.
type RecordForm struct {
	Name            *string
	Rating          *int
	Genre           *string
	Memo            *string
	ExternalLinkURL *string
	Status          *string

	DeletedAttachmentIDs []int64
	// CaptionEdits maps attachment id to its new caption. An empty caption
	// clears it.
	CaptionEdits map[int64]string
	Photos       []Photo
}

// Write encodes the form into mw. The caller closes mw.
func (f RecordForm) Write(mw *multipart.Writer) error {
	fields := []struct {
		name  string
		value *string
	}{
		{FieldName, f.Name},
		{FieldGenre, f.Genre},
		{FieldMemo, f.Memo},
		{FieldExternalLinkURL, f.ExternalLinkURL},
		{FieldStatus, f.Status},
	}
	for _, field := range fields {
		if field.value == nil {
			continue
		}
		if err := mw.WriteField(field.name, *field.value); err != nil {
			return err
		}
	}
	if f.Rating != nil {
		if err := mw.WriteField(FieldRating, strconv.Itoa(*f.Rating)); err != nil {
			return err
		}
	}

	if len(f.DeletedAttachmentIDs) > 0 {
		payload, err := json.Marshal(f.DeletedAttachmentIDs)
		if err != nil {
			return err
		}
		if err := mw.WriteField(FieldDeletedAttachmentIDs, string(payload)); err != nil {
			return err
		}
	}
	if len(f.CaptionEdits) > 0 {
		edits := make(map[string]string, len(f.CaptionEdits))
		for id, caption := range f.CaptionEdits {
			edits[strconv.FormatInt(id, 10)] = caption
		}
		payload, err := json.Marshal(edits)
		if err != nil {
			return err
		}
		if err := mw.WriteField(FieldCaptionEdits, string(payload)); err != nil {
			return err
		}
	}

	for i, photo := range f.Photos {
		if photo.Content == nil {
			return fmt.Errorf("photo %d has no content", i)
		}
		if err := mw.WriteField(FieldCaptions, photo.Caption); err != nil {
			return err
		}
		part, err := mw.CreatePart(photoHeader(photo))
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, photo.Content); err != nil {
			return fmt.Errorf("write photo %q: %w", photo.Filename, err)
		}
	}
	return nil
}

func photoHeader(photo Photo) textproto.MIMEHeader {
	filename := photo.Filename
	if filename == "" {
		filename = "photo"
	}
	contentType := photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	escaper := strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldImages, escaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}
