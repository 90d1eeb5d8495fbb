package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"izakaya/internal/format"
	"izakaya/internal/models"
	"izakaya/internal/reconcile"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeRecordList(records []models.Record) error {
	for _, record := range records {
		if err := writePlain("%s\n", formatRecordLine(record)); err != nil {
			return err
		}
	}
	return nil
}

func writeRecordDetail(record models.Record) error {
	return writePlain("%s\n", strings.Join(recordDetailLines(record), "\n"))
}

func recordDetailLines(record models.Record) []string {
	lines := []string{
		fmt.Sprintf("id: %d", record.ID),
		fmt.Sprintf("name: %s", record.Name),
		fmt.Sprintf("rating: %s", formatRating(record.Rating)),
		fmt.Sprintf("status: %s", record.Status),
		fmt.Sprintf("created_at: %s", formatTime(record.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(record.UpdatedAt)),
	}
	if record.Genre != "" {
		lines = append(lines, fmt.Sprintf("genre: %s", record.Genre))
	}
	if record.ExternalLinkURL != "" {
		lines = append(lines, fmt.Sprintf("link: %s", record.ExternalLinkURL))
	}
	if record.Memo != "" {
		lines = append(lines, fmt.Sprintf("memo: %s", record.Memo))
	}
	if hero, ok := record.HeroAttachment(); ok {
		lines = append(lines, fmt.Sprintf("hero: %s", hero.Location))
		lines = append(lines, "photos:")
		for _, attachment := range record.Attachments {
			line := fmt.Sprintf("  - [%d] %s", attachment.ID, attachment.Location)
			if attachment.Caption != "" {
				line += " (" + attachment.Caption + ")"
			}
			lines = append(lines, line)
		}
	}
	return lines
}

func formatRecordLine(record models.Record) string {
	line := fmt.Sprintf("%d %s %s", record.ID, formatRating(record.Rating), record.Name)
	if record.Genre != "" {
		line += " [" + record.Genre + "]"
	}
	if record.Status == models.StatusWantToGo {
		line += " (want to go)"
	}
	if n := len(record.Attachments); n > 0 {
		line += fmt.Sprintf(" %d photo(s)", n)
	}
	return line
}

func formatRating(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > models.RatingMax {
		rating = models.RatingMax
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", models.RatingMax-rating)
}

// writeAttachmentFailures prints partial photo failures to stderr. They
// never fail the command.
func writeAttachmentFailures(failures []reconcile.Failure) {
	for _, failure := range failures {
		subject := failure.Filename
		if subject == "" && failure.AttachmentID > 0 {
			subject = fmt.Sprintf("attachment %d", failure.AttachmentID)
		}
		if subject == "" {
			subject = failure.BlobKey
		}
		if subject != "" {
			subject = " " + subject
		}
		fmt.Fprintf(os.Stderr, "warning: %s%s: %s (%s)\n", failure.Phase, subject, failure.Error, failure.Kind)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
