package models

import (
	"fmt"
	"strings"
)

// RecordStatus marks whether a venue was visited or is on the wish list.
type RecordStatus string

const (
	StatusVisited  RecordStatus = "VISITED"
	StatusWantToGo RecordStatus = "WANT_TO_GO"
)

const (
	RatingMin     = 1
	RatingMax     = 5
	DefaultRating = 3
	DefaultStatus = StatusVisited

	// FilterAll is the "no constraint" sentinel sent by list filters.
	FilterAll = "All"
)

var validRecordStatuses = map[RecordStatus]struct{}{
	StatusVisited:  {},
	StatusWantToGo: {},
}

func IsValidRecordStatus(status RecordStatus) bool {
	_, ok := validRecordStatuses[status]
	return ok
}

func IsValidRating(rating int) bool {
	return rating >= RatingMin && rating <= RatingMax
}

// ParseRecordStatus accepts the canonical values case-insensitively,
// with '-' or ' ' in place of '_'.
func ParseRecordStatus(raw string) (RecordStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if normalized == "" {
		return "", fmt.Errorf("status is required")
	}
	status := RecordStatus(normalized)
	if !IsValidRecordStatus(status) {
		return "", fmt.Errorf("invalid status: %s", raw)
	}
	return status, nil
}

// IsFilterAll reports whether a list filter value means "no constraint".
func IsFilterAll(raw string) bool {
	value := strings.TrimSpace(raw)
	return value == "" || strings.EqualFold(value, FilterAll)
}

// SuggestedGenres are offered as genre suggestions before any record exists.
var SuggestedGenres = []string{"Yakitori", "Seafood", "Izakaya", "Standing Bar", "Bar", "Dining Bar"}
