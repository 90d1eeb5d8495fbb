package server

import (
	"net/http"
	"strings"

	"izakaya/internal/models"
	"izakaya/internal/store"
)

const maxListLimit = 500

// parseRecordFilter reads q, genre, status, limit and offset. "All" or an
// empty genre or status means no constraint.
func parseRecordFilter(r *http.Request) (store.RecordFilter, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return store.RecordFilter{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return store.RecordFilter{}, err
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := r.URL.Query()
	filter := store.RecordFilter{
		NameContains: strings.TrimSpace(query.Get("q")),
		Limit:        limit,
		Offset:       offset,
	}

	if genre := query.Get("genre"); !models.IsFilterAll(genre) {
		filter.Genre = strings.TrimSpace(genre)
	}

	if status := query.Get("status"); !models.IsFilterAll(status) {
		value, err := normalizeStatus(status)
		if err != nil {
			return store.RecordFilter{}, err
		}
		filter.Status = value
	}

	return filter, nil
}
