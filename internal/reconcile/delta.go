package reconcile

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// Addition is one new photo to attach.
type Addition struct {
	Payload     []byte
	ContentType string
	Filename    string
	Caption     string
}

// Delta is the set of attachment changes requested by one update. It is
// built once at the request boundary and consumed by a single Reconcile call.
type Delta struct {
	Deletions    []int64
	CaptionEdits map[int64]string
	Additions    []Addition
}

// IsEmpty reports whether the delta requests no change.
func (d Delta) IsEmpty() bool {
	return len(d.Deletions) == 0 && len(d.CaptionEdits) == 0 && len(d.Additions) == 0
}

// normalize removes duplicate and non-positive ids, drops caption edits for
// attachments that are being deleted and drops empty uploads. Additions whose
// media type is not allowed are returned as validation failures.
func (d Delta) normalize(allowed []string) (Delta, []Failure) {
	out := Delta{CaptionEdits: map[int64]string{}}
	var failures []Failure

	deleting := make(map[int64]struct{}, len(d.Deletions))
	for _, id := range d.Deletions {
		if id <= 0 {
			continue
		}
		if _, ok := deleting[id]; ok {
			continue
		}
		deleting[id] = struct{}{}
		out.Deletions = append(out.Deletions, id)
	}

	for id, caption := range d.CaptionEdits {
		if id <= 0 {
			continue
		}
		if _, ok := deleting[id]; ok {
			continue
		}
		out.CaptionEdits[id] = strings.TrimSpace(caption)
	}

	for _, add := range d.Additions {
		if len(add.Payload) == 0 {
			continue
		}
		add.ContentType = resolveContentType(add.ContentType, add.Payload)
		add.Caption = strings.TrimSpace(add.Caption)
		if !MediaTypeAllowed(add.ContentType, allowed) {
			failures = append(failures, Failure{
				Phase:    PhaseValidate,
				Filename: add.Filename,
				Kind:     KindValidation,
				Error:    fmt.Sprintf("media type %q is not allowed", add.ContentType),
			})
			continue
		}
		out.Additions = append(out.Additions, add)
	}

	return out, failures
}

// editIDs returns the caption edit ids in ascending order.
func (d Delta) editIDs() []int64 {
	ids := make([]int64, 0, len(d.CaptionEdits))
	for id := range d.CaptionEdits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// resolveContentType keeps a declared media type and sniffs the payload
// when the client sent none or a generic one.
func resolveContentType(declared string, payload []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != "application/octet-stream" {
			return mediaType
		}
	}
	detected, _, _ := mime.ParseMediaType(http.DetectContentType(payload))
	return detected
}

// MediaTypeAllowed matches mediaType against patterns like "image/png" or
// "image/*". An empty pattern list allows everything.
func MediaTypeAllowed(mediaType string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "*/*" || pattern == mediaType {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && strings.HasPrefix(mediaType, prefix+"/") {
			return true
		}
	}
	return false
}

// ParseDeletionIDs parses a JSON array of attachment ids. Elements may be
// numbers or numeric strings. A blank input yields no ids.
func ParseDeletionIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var values []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("deleted attachment ids must be a JSON array: %w", err)
	}
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := parseJSONID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseCaptionEdits parses a JSON object mapping attachment id to caption.
// A null caption clears it. A blank input yields no edits.
func ParseCaptionEdits(raw string) (map[int64]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var values map[string]*string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("caption edits must be a JSON object of id to caption: %w", err)
	}
	edits := make(map[int64]string, len(values))
	for key, caption := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid attachment id %q in caption edits", key)
		}
		if caption == nil {
			edits[id] = ""
			continue
		}
		edits[id] = *caption
	}
	return edits, nil
}

func parseJSONID(value json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		if id, err := n.Int64(); err == nil {
			return id, nil
		}
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("invalid attachment id %s", string(value))
}
