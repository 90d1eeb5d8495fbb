package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"izakaya/internal/models"
)

const recordColumns = "id, name, rating, genre, memo, external_link_url, status, created_at, updated_at"

// RecordFilter narrows ListRecords. Empty fields add no constraint.
type RecordFilter struct {
	NameContains string
	Genre        string
	Status       models.RecordStatus
	Limit        int
	Offset       int
}

// RecordUpdate carries scalar changes. Nil fields are left unchanged.
type RecordUpdate struct {
	Name            *string
	Rating          *int
	Genre           *string
	Memo            *string
	ExternalLinkURL *string
	Status          *models.RecordStatus
	UpdatedAt       time.Time
}

// RecordExists checks whether a record exists by id.
func (s *Store) RecordExists(ctx context.Context, id int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM records WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateRecord inserts the scalar fields of record and sets its id.
func (s *Store) CreateRecord(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	if record.Status == "" {
		record.Status = models.DefaultStatus
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (name, rating, genre, memo, external_link_url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.Name,
		record.Rating,
		record.Genre,
		nullIfEmpty(record.Memo),
		nullIfEmpty(record.ExternalLinkURL),
		string(record.Status),
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	record.ID = id
	return nil
}

// GetRecord returns a record by id without its attachments, or nil when missing.
func (s *Store) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	return scanRecord(row)
}

// UpdateRecord updates mutable scalar fields on a record.
func (s *Store) UpdateRecord(ctx context.Context, id int64, update RecordUpdate) error {
	if id <= 0 {
		return fmt.Errorf("id is required")
	}

	set := []string{}
	args := []any{}

	if update.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Rating != nil {
		set = append(set, "rating = ?")
		args = append(args, *update.Rating)
	}
	if update.Genre != nil {
		set = append(set, "genre = ?")
		args = append(args, *update.Genre)
	}
	if update.Memo != nil {
		set = append(set, "memo = ?")
		args = append(args, nullIfEmpty(*update.Memo))
	}
	if update.ExternalLinkURL != nil {
		set = append(set, "external_link_url = ?")
		args = append(args, nullIfEmpty(*update.ExternalLinkURL))
	}
	if update.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*update.Status))
	}

	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	set = append(set, "updated_at = ?")
	args = append(args, formatTime(updatedAt))

	args = append(args, id)
	query := fmt.Sprintf("UPDATE records SET %s WHERE id = ?", strings.Join(set, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteRecord removes a record row. Remaining attachment rows cascade.
func (s *Store) DeleteRecord(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListRecords returns records matching filter, newest first.
func (s *Store) ListRecords(ctx context.Context, filter RecordFilter) ([]models.Record, error) {
	query, args := buildRecordListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ListGenres returns the suggested genres merged with every stored genre, sorted.
func (s *Store) ListGenres(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT genre FROM records WHERE genre <> ''")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{}, len(models.SuggestedGenres))
	genres := make([]string, 0, len(models.SuggestedGenres))
	for _, genre := range models.SuggestedGenres {
		seen[genre] = struct{}{}
		genres = append(genres, genre)
	}
	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, err
		}
		if _, ok := seen[genre]; ok {
			continue
		}
		seen[genre] = struct{}{}
		genres = append(genres, genre)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(genres)
	return genres, nil
}

func scanRecord(sc scanner) (*models.Record, error) {
	var record models.Record
	var memo, link sql.NullString
	var status, createdAt, updatedAt string

	if err := sc.Scan(
		&record.ID,
		&record.Name,
		&record.Rating,
		&record.Genre,
		&memo,
		&link,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	record.Memo = memo.String
	record.ExternalLinkURL = link.String
	record.Status = models.RecordStatus(status)

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	parsedUpdated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = parsedCreated
	record.UpdatedAt = parsedUpdated

	return &record, nil
}
