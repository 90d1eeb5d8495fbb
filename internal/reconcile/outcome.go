package reconcile

import (
	"cmp"
	"slices"
	"sync"

	"izakaya/internal/models"
)

// outcome tracks what a reconciliation changed on top of the record's
// starting attachments.
type outcome struct {
	known  bool
	err    error
	before []models.Attachment

	mu       sync.Mutex
	deleted  map[int64]bool
	captions map[int64]string
	added    []models.Attachment
}

func newOutcome(before []models.Attachment, err error) *outcome {
	return &outcome{known: err == nil, err: err, before: before}
}

func (o *outcome) markDeleted(ids []int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.deleted == nil {
		o.deleted = make(map[int64]bool, len(ids))
	}
	for _, id := range ids {
		o.deleted[id] = true
	}
}

func (o *outcome) setCaption(id int64, caption string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.captions == nil {
		o.captions = map[int64]string{}
	}
	o.captions[id] = caption
}

func (o *outcome) addRows(rows []*models.Attachment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, a := range rows {
		o.added = append(o.added, *a)
	}
}

// rebuild returns the attachment list implied by the starting snapshot and
// the applied changes, in display order.
func (o *outcome) rebuild() []models.Attachment {
	o.mu.Lock()
	defer o.mu.Unlock()

	list := make([]models.Attachment, 0, len(o.before)+len(o.added))
	for _, a := range o.before {
		if o.deleted[a.ID] {
			continue
		}
		if caption, ok := o.captions[a.ID]; ok {
			a.Caption = caption
		}
		list = append(list, a)
	}
	list = append(list, o.added...)
	slices.SortStableFunc(list, func(a, b models.Attachment) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list
}
