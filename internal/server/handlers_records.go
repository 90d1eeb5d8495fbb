package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"izakaya/internal/api"
	"izakaya/internal/reconcile"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRecordFilter(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	records, err := s.service.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathRecordIDOrBadRequest(w, r)
	if !ok {
		return
	}

	record, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseRecordFormReq(w, r)
	if !ok {
		return
	}
	defer form.cleanup()

	record, report, err := s.service.Create(r.Context(), form.fields, form.delta.Additions)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	report.Append(form.failures...)

	s.writeJSON(w, http.StatusCreated, api.RecordResponse{Record: *record, AttachmentFailures: report.Failures})
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathRecordIDOrBadRequest(w, r)
	if !ok {
		return
	}

	form, ok := s.parseRecordFormReq(w, r)
	if !ok {
		return
	}
	defer form.cleanup()

	record, report, err := s.service.Update(r.Context(), id, form.fields, form.delta)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	report.Append(form.failures...)

	s.writeJSON(w, http.StatusOK, api.RecordResponse{Record: *record, AttachmentFailures: report.Failures})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathRecordIDOrBadRequest(w, r)
	if !ok {
		return
	}

	report, err := s.service.Delete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Message: api.DeletedMessage, AttachmentFailures: report.Failures})
}

// recordForm is a parsed record multipart body. failures holds delta
// fields that could not be parsed; their sub-operations are skipped.
type recordForm struct {
	fields   RecordFields
	delta    reconcile.Delta
	failures []reconcile.Failure
	multi    *multipart.Form
}

func (f *recordForm) cleanup() {
	if f.multi != nil {
		_ = f.multi.RemoveAll()
	}
}

func (s *Server) parseRecordFormReq(w http.ResponseWriter, r *http.Request) (*recordForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.uploads.MultipartMaxMemory); err != nil {
		s.writeServiceError(w, r, classifyMultipartError(err))
		return nil, false
	}

	form, err := parseRecordForm(r.MultipartForm)
	if err != nil {
		_ = r.MultipartForm.RemoveAll()
		s.writeServiceError(w, r, err)
		return nil, false
	}
	for _, failure := range form.failures {
		s.log().Warn("attachment delta rejected", "phase", failure.Phase, "error", failure.Error, "path", r.URL.Path)
	}
	return form, true
}

func parseRecordForm(multi *multipart.Form) (*recordForm, error) {
	form := &recordForm{multi: multi}
	values := multi.Value

	form.fields = RecordFields{
		Name:            formValue(values, api.FieldName),
		Genre:           formValue(values, api.FieldGenre),
		Memo:            formValue(values, api.FieldMemo),
		ExternalLinkURL: formValue(values, api.FieldExternalLinkURL, api.FieldMapURL),
		Rating:          formValue(values, api.FieldRating),
		Status:          formValue(values, api.FieldStatus),
	}

	if raw := formValue(values, api.FieldDeletedAttachmentIDs, api.FieldDeletedImageIDs); raw != nil {
		ids, err := reconcile.ParseDeletionIDs(*raw)
		if err != nil {
			form.failures = append(form.failures, reconcile.ValidationFailure(reconcile.PhaseDelete, err))
		} else {
			form.delta.Deletions = ids
		}
	}
	if raw := formValue(values, api.FieldCaptionEdits, api.FieldExistingCaptions); raw != nil {
		edits, err := reconcile.ParseCaptionEdits(*raw)
		if err != nil {
			form.failures = append(form.failures, reconcile.ValidationFailure(reconcile.PhaseCaption, err))
		} else {
			form.delta.CaptionEdits = edits
		}
	}

	captions := values[api.FieldCaptions]
	for i, header := range multi.File[api.FieldImages] {
		caption := ""
		if i < len(captions) {
			caption = captions[i]
		}
		payload, err := readFormFile(header)
		if err != nil {
			failure := reconcile.ValidationFailure(reconcile.PhaseAdd, err)
			failure.Filename = header.Filename
			form.failures = append(form.failures, failure)
			continue
		}
		form.delta.Additions = append(form.delta.Additions, reconcile.Addition{
			Payload:     payload,
			ContentType: header.Header.Get("Content-Type"),
			Filename:    header.Filename,
			Caption:     caption,
		})
	}

	return form, nil
}

// formValue returns the first value of the first present key, or nil when
// none of the keys were sent.
func formValue(values map[string][]string, keys ...string) *string {
	for _, key := range keys {
		if vals, ok := values[key]; ok && len(vals) > 0 {
			value := vals[0]
			return &value
		}
	}
	return nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", header.Filename, err)
	}
	defer file.Close()
	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", header.Filename, err)
	}
	return payload, nil
}
