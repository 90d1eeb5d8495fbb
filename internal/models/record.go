package models

import "time"

// Record is one curated venue entry.
type Record struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Rating          int          `json:"rating"`
	Genre           string       `json:"genre"`
	Memo            string       `json:"memo,omitempty"`
	ExternalLinkURL string       `json:"external_link_url,omitempty"`
	Status          RecordStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Attachments     []Attachment `json:"attachments"`
}

// HeroAttachment returns the first attachment by position, if any.
func (r Record) HeroAttachment() (Attachment, bool) {
	if len(r.Attachments) == 0 {
		return Attachment{}, false
	}
	return r.Attachments[0], true
}
