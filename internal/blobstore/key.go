package blobstore

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// KeyPrefix is the namespace every attachment blob key lives under.
	KeyPrefix = "records/"

	defaultBlobBaseURL    = "/blobs"
	fallbackFilename      = "image"
	maxSanitizedNameRunes = 96
)

// NewKey builds a blob key for one upload of recordID. Keys combine the
// record id, a nanosecond timestamp, a random suffix and the sanitized
// original filename so concurrent uploads never collide.
func NewKey(recordID int64, filename string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s%d/%d-%s-%s", KeyPrefix, recordID, now.UnixNano(), suffix, SanitizeFilename(filename))
}

// SanitizeFilename reduces a client filename to a URL-safe key segment.
// Whitespace becomes '-', characters outside [A-Za-z0-9._-] are dropped.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	count := 0
	for _, r := range name {
		if count >= maxSanitizedNameRunes {
			break
		}
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('-')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			continue
		}
		count++
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" || strings.Trim(out, "-_.") == "" {
		return fallbackFilename
	}
	return out
}

// KeyTime extracts the upload timestamp embedded by NewKey.
func KeyTime(key string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return time.Time{}, false
	}
	_, name, ok := strings.Cut(rest, "/")
	if !ok {
		return time.Time{}, false
	}
	rawNanos, _, ok := strings.Cut(name, "-")
	if !ok {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(rawNanos, 10, 64)
	if err != nil || nanos <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos).UTC(), true
}

// ValidateKey rejects keys that could escape a storage root.
func ValidateKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("blob key must be relative")
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || clean != key {
		return "", fmt.Errorf("invalid blob key")
	}
	return clean, nil
}

func locationFor(baseURL, key string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBlobBaseURL
	}
	return baseURL + "/" + key
}
