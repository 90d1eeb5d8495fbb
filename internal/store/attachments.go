package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"izakaya/internal/models"
)

const attachmentColumns = "id, record_id, blob_key, location, caption, content_type, filename, size_bytes, position, created_at"

// CreateAttachments inserts all rows in one transaction. Positions continue
// after the record's current maximum, in slice order. On success each
// attachment carries its id and position; on failure nothing is inserted.
func (s *Store) CreateAttachments(ctx context.Context, attachments []*models.Attachment) (err error) {
	if len(attachments) == 0 {
		return nil
	}
	for _, attachment := range attachments {
		if attachment == nil {
			return fmt.Errorf("attachment is required")
		}
		if attachment.RecordID <= 0 {
			return fmt.Errorf("attachment record_id is required")
		}
		if strings.TrimSpace(attachment.BlobKey) == "" {
			return fmt.Errorf("attachment blob_key is required")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	next := map[int64]int{}
	ids := make([]int64, len(attachments))
	positions := make([]int, len(attachments))
	for i, attachment := range attachments {
		pos, ok := next[attachment.RecordID]
		if !ok {
			pos, err = nextPositionTx(ctx, tx, attachment.RecordID)
			if err != nil {
				return err
			}
		}
		next[attachment.RecordID] = pos + 1
		positions[i] = pos

		createdAt := attachment.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			INSERT INTO attachments (record_id, blob_key, location, caption, content_type, filename, size_bytes, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			attachment.RecordID,
			attachment.BlobKey,
			attachment.Location,
			nullIfEmpty(attachment.Caption),
			nullIfEmpty(attachment.ContentType),
			nullIfEmpty(attachment.Filename),
			attachment.SizeBytes,
			pos,
			formatTime(createdAt),
		)
		if err != nil {
			return err
		}
		ids[i], err = res.LastInsertId()
		if err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	for i, attachment := range attachments {
		attachment.ID = ids[i]
		attachment.Position = positions[i]
		if attachment.CreatedAt.IsZero() {
			attachment.CreatedAt = now
		}
	}
	return nil
}

// ListAttachmentsByRecord lists a record's attachments in display order.
func (s *Store) ListAttachmentsByRecord(ctx context.Context, recordID int64) ([]models.Attachment, error) {
	return s.queryAttachments(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE record_id = ? ORDER BY position ASC, id ASC`, recordID)
}

// ListAttachmentsByRecords groups attachments of several records by record id.
func (s *Store) ListAttachmentsByRecords(ctx context.Context, recordIDs []int64) (map[int64][]models.Attachment, error) {
	result := make(map[int64][]models.Attachment, len(recordIDs))
	if len(recordIDs) == 0 {
		return result, nil
	}
	query := fmt.Sprintf(`SELECT `+attachmentColumns+` FROM attachments WHERE record_id IN (%s) ORDER BY record_id, position ASC, id ASC`, placeholders(len(recordIDs)))
	attachments, err := s.queryAttachments(ctx, query, int64Args(recordIDs)...)
	if err != nil {
		return nil, err
	}
	for _, attachment := range attachments {
		result[attachment.RecordID] = append(result[attachment.RecordID], attachment)
	}
	return result, nil
}

// UpdateAttachmentCaption sets the caption of one attachment owned by
// recordID. An empty caption clears it. Reports whether a row matched.
func (s *Store) UpdateAttachmentCaption(ctx context.Context, recordID, id int64, caption string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE attachments SET caption = ? WHERE id = ? AND record_id = ?", nullIfEmpty(caption), id, recordID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAttachments removes the rows among ids owned by recordID in one
// statement and returns how many were removed.
func (s *Store) DeleteAttachments(ctx context.Context, recordID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf("DELETE FROM attachments WHERE record_id = ? AND id IN (%s)", placeholders(len(ids)))
	args := append([]any{recordID}, int64Args(ids)...)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAttachmentsByRecord removes every attachment row of a record.
func (s *Store) DeleteAttachmentsByRecord(ctx context.Context, recordID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM attachments WHERE record_id = ?", recordID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListBlobKeys returns every blob key referenced by an attachment row.
func (s *Store) ListBlobKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT blob_key FROM attachments ORDER BY blob_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) queryAttachments(ctx context.Context, query string, args ...any) ([]models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		if attachment == nil {
			continue
		}
		attachments = append(attachments, *attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func nextPositionTx(ctx context.Context, tx *sql.Tx, recordID int64) (int, error) {
	var next int
	err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), -1) + 1 FROM attachments WHERE record_id = ?", recordID).Scan(&next)
	return next, err
}

func scanAttachment(sc scanner) (*models.Attachment, error) {
	attachment := models.Attachment{}
	var caption, contentType, filename sql.NullString
	var createdAt string

	err := sc.Scan(
		&attachment.ID,
		&attachment.RecordID,
		&attachment.BlobKey,
		&attachment.Location,
		&caption,
		&contentType,
		&filename,
		&attachment.SizeBytes,
		&attachment.Position,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	attachment.Caption = caption.String
	attachment.ContentType = contentType.String
	attachment.Filename = filename.String

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	attachment.CreatedAt = parsedCreated

	return &attachment, nil
}
