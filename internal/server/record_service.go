package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"izakaya/internal/models"
	"izakaya/internal/reconcile"
	"izakaya/internal/store"
)

// RecordFields are the scalar fields of a record create or update, as sent
// by the client. A nil field was not supplied.
type RecordFields struct {
	Name            *string
	Rating          *string
	Genre           *string
	Memo            *string
	ExternalLinkURL *string
	Status          *string
}

// RecordService validates record scalars and sequences record persistence
// with attachment reconciliation. Every metadata call is bounded by opTimeout.
type RecordService struct {
	records     store.RecordStore
	attachments store.AttachmentStore
	reconciler  *reconcile.Reconciler
	opTimeout   time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewRecordService constructs a RecordService. A non-positive opTimeout
// falls back to reconcile.DefaultOpTimeout.
func NewRecordService(records store.RecordStore, attachments store.AttachmentStore, reconciler *reconcile.Reconciler, opTimeout time.Duration, logger *slog.Logger) *RecordService {
	if logger == nil {
		logger = slog.Default()
	}
	if opTimeout <= 0 {
		opTimeout = reconcile.DefaultOpTimeout
	}
	return &RecordService{
		records:     records,
		attachments: attachments,
		reconciler:  reconciler,
		opTimeout:   opTimeout,
		logger:      logger.With("component", "records"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a record and uploads its initial photos. Photo failures
// do not fail the call; they are returned in the report.
func (s *RecordService) Create(ctx context.Context, fields RecordFields, additions []reconcile.Addition) (*models.Record, reconcile.Report, error) {
	record, err := newRecordFromFields(fields)
	if err != nil {
		return nil, reconcile.Report{}, err
	}

	now := s.now()
	record.CreatedAt = now
	record.UpdatedAt = now
	opCtx, cancel := s.opContext(ctx)
	err = s.records.CreateRecord(opCtx, record)
	cancel()
	if err != nil {
		return nil, reconcile.Report{}, storeFailure(fmt.Errorf("create record: %w", err))
	}

	result := s.reconciler.AddOnly(ctx, record.ID, additions)
	record.Attachments = nonNilAttachments(result.Attachments)
	s.logReport("record created", record.ID, result.Report)
	return record, result.Report, nil
}

// Update reconciles the attachment delta, then applies the scalar fields.
// The two steps are independent: a scalar failure does not undo attachment
// changes already made. An unknown id is reported before any field is
// validated.
func (s *RecordService) Update(ctx context.Context, id int64, fields RecordFields, delta reconcile.Delta) (*models.Record, reconcile.Report, error) {
	opCtx, cancel := s.opContext(ctx)
	exists, err := s.records.RecordExists(opCtx, id)
	cancel()
	if err != nil {
		return nil, reconcile.Report{}, storeFailure(fmt.Errorf("check record: %w", err))
	}
	if !exists {
		return nil, reconcile.Report{}, recordNotFound(id)
	}

	update, err := recordUpdateFromFields(fields)
	if err != nil {
		return nil, reconcile.Report{}, err
	}

	var result reconcile.Result
	if delta.IsEmpty() {
		// Nothing to reconcile; read the list before any write so a failure
		// leaves the record untouched.
		opCtx, cancel := s.opContext(ctx)
		result.Attachments, err = s.attachments.ListAttachmentsByRecord(opCtx, id)
		cancel()
		if err != nil {
			return nil, reconcile.Report{}, storeFailure(fmt.Errorf("read attachments: %w", err))
		}
	} else {
		result = s.reconciler.Reconcile(ctx, id, delta)
	}
	report := result.Report

	update.UpdatedAt = s.now()
	opCtx, cancel = s.opContext(ctx)
	err = s.records.UpdateRecord(opCtx, id, update)
	cancel()
	if err != nil {
		return nil, report, storeFailure(fmt.Errorf("update record: %w", err))
	}

	opCtx, cancel = s.opContext(ctx)
	record, err := s.records.GetRecord(opCtx, id)
	cancel()
	if err != nil {
		return nil, report, storeFailure(fmt.Errorf("read record: %w", err))
	}
	if record == nil {
		return nil, report, recordNotFound(id)
	}
	record.Attachments = nonNilAttachments(result.Attachments)
	s.logReport("record updated", id, report)
	return record, report, nil
}

// Delete removes every attachment of the record and then the record itself.
// Blob failures are reported but never block the record deletion. Past the
// existence check the deletion runs to completion even if ctx is canceled.
func (s *RecordService) Delete(ctx context.Context, id int64) (reconcile.Report, error) {
	opCtx, cancel := s.opContext(ctx)
	exists, err := s.records.RecordExists(opCtx, id)
	cancel()
	if err != nil {
		return reconcile.Report{}, storeFailure(fmt.Errorf("check record: %w", err))
	}
	if !exists {
		return reconcile.Report{}, recordNotFound(id)
	}

	report := s.reconciler.RemoveAll(ctx, id)

	opCtx, cancel = s.opContext(context.WithoutCancel(ctx))
	deleted, err := s.records.DeleteRecord(opCtx, id)
	cancel()
	if err != nil {
		return report, storeFailure(fmt.Errorf("delete record: %w", err))
	}
	if !deleted {
		return report, recordNotFound(id)
	}
	s.logReport("record deleted", id, report)
	return report, nil
}

// Get returns a record with its attachments ordered by position.
func (s *RecordService) Get(ctx context.Context, id int64) (*models.Record, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	record, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("read record: %w", err))
	}
	if record == nil {
		return nil, recordNotFound(id)
	}
	attachments, err := s.attachments.ListAttachmentsByRecord(ctx, id)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("read attachments: %w", err))
	}
	record.Attachments = nonNilAttachments(attachments)
	return record, nil
}

// List returns records matching filter, newest first, with attachments.
func (s *RecordService) List(ctx context.Context, filter store.RecordFilter) ([]models.Record, error) {
	opCtx, cancel := s.opContext(ctx)
	records, err := s.records.ListRecords(opCtx, filter)
	cancel()
	if err != nil {
		return nil, storeFailure(fmt.Errorf("list records: %w", err))
	}
	if len(records) == 0 {
		return []models.Record{}, nil
	}

	ids := make([]int64, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	opCtx, cancel = s.opContext(ctx)
	grouped, err := s.attachments.ListAttachmentsByRecords(opCtx, ids)
	cancel()
	if err != nil {
		return nil, storeFailure(fmt.Errorf("list attachments: %w", err))
	}
	for i := range records {
		records[i].Attachments = nonNilAttachments(grouped[records[i].ID])
	}
	return records, nil
}

// Genres returns the distinct genres in use.
func (s *RecordService) Genres(ctx context.Context) ([]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	genres, err := s.records.ListGenres(ctx)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("list genres: %w", err))
	}
	return genres, nil
}

func (s *RecordService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *RecordService) logReport(msg string, id int64, report reconcile.Report) {
	if report.Empty() {
		s.logger.Debug(msg, "record_id", id)
		return
	}
	s.logger.Warn(msg+" with attachment failures", "record_id", id, "failures", report.Len())
}

func newRecordFromFields(fields RecordFields) (*models.Record, error) {
	name, err := normalizeName(fields.Name)
	if err != nil {
		return nil, err
	}

	record := &models.Record{
		Name:   name,
		Rating: models.DefaultRating,
		Status: models.DefaultStatus,
	}
	if fields.Rating != nil {
		rating, err := parseRating(*fields.Rating)
		if err != nil {
			return nil, err
		}
		record.Rating = rating
	}
	if fields.Genre != nil {
		record.Genre = strings.TrimSpace(*fields.Genre)
	}
	if fields.Memo != nil {
		record.Memo = strings.TrimSpace(*fields.Memo)
	}
	if fields.ExternalLinkURL != nil {
		link, err := normalizeLink(*fields.ExternalLinkURL)
		if err != nil {
			return nil, err
		}
		record.ExternalLinkURL = link
	}
	if fields.Status != nil && strings.TrimSpace(*fields.Status) != "" {
		status, err := normalizeStatus(*fields.Status)
		if err != nil {
			return nil, err
		}
		record.Status = status
	}
	return record, nil
}

func recordUpdateFromFields(fields RecordFields) (store.RecordUpdate, error) {
	var update store.RecordUpdate
	if fields.Name != nil {
		name, err := normalizeName(fields.Name)
		if err != nil {
			return update, err
		}
		update.Name = &name
	}
	if fields.Rating != nil {
		rating, err := parseRating(*fields.Rating)
		if err != nil {
			return update, err
		}
		update.Rating = &rating
	}
	if fields.Genre != nil {
		genre := strings.TrimSpace(*fields.Genre)
		update.Genre = &genre
	}
	if fields.Memo != nil {
		memo := strings.TrimSpace(*fields.Memo)
		update.Memo = &memo
	}
	if fields.ExternalLinkURL != nil {
		link, err := normalizeLink(*fields.ExternalLinkURL)
		if err != nil {
			return update, err
		}
		update.ExternalLinkURL = &link
	}
	if fields.Status != nil {
		status, err := normalizeStatus(*fields.Status)
		if err != nil {
			return update, err
		}
		update.Status = &status
	}
	return update, nil
}

func normalizeName(raw *string) (string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return "", badRequestCode(fmt.Errorf("name is required"), ErrCodeMissingRequired)
	}
	return strings.TrimSpace(*raw), nil
}

func parseRating(raw string) (int, error) {
	rating, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("rating must be an integer"), ErrCodeInvalidRating)
	}
	if !models.IsValidRating(rating) {
		return 0, badRequestCode(fmt.Errorf("rating must be between %d and %d", models.RatingMin, models.RatingMax), ErrCodeInvalidRating)
	}
	return rating, nil
}

func normalizeStatus(raw string) (models.RecordStatus, error) {
	status, err := models.ParseRecordStatus(raw)
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidStatus)
	}
	return status, nil
}

// normalizeLink accepts an empty value, which clears the link, or an
// absolute http(s) URL.
func normalizeLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", badRequestCode(fmt.Errorf("external link must be an http or https URL"), ErrCodeInvalidLink)
	}
	return raw, nil
}

func nonNilAttachments(attachments []models.Attachment) []models.Attachment {
	if attachments == nil {
		return []models.Attachment{}
	}
	return attachments
}
