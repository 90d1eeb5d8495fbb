package blobstore

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "photo.jpg", want: "photo.jpg"},
		{in: "my night out.jpg", want: "my-night-out.jpg"},
		{in: "tab\tsep.png", want: "tab-sep.png"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `C:\Users\me\dinner.jpeg`, want: "dinner.jpeg"},
		{in: "焼き鳥.jpg", want: "jpg"},
		{in: ".hidden", want: "hidden"},
		{in: "", want: fallbackFilename},
		{in: "   ", want: fallbackFilename},
		{in: "???", want: fallbackFilename},
		{in: "a?b#c%d.png", want: "abcd.png"},
	}
	for _, tt := range tests {
		got := SanitizeFilename(tt.in)
		if got != tt.want {
			t.Fatalf("sanitize %q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestNewKeyShape(t *testing.T) {
	now := time.Unix(1700000000, 123)
	key := NewKey(42, "Hoppy and Motsu.jpg", now)

	if !strings.HasPrefix(key, "records/42/1700000000000000123-") {
		t.Fatalf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, "-Hoppy-and-Motsu.jpg") {
		t.Fatalf("expected sanitized filename suffix, got %s", key)
	}
	if _, err := ValidateKey(key); err != nil {
		t.Fatalf("generated key should validate: %v", err)
	}
	if url.PathEscape(key) != strings.ReplaceAll(key, "/", "%2F") {
		t.Fatalf("expected key to be URL-safe apart from separators: %s", key)
	}
}

func TestNewKeyNeverCollidesUnderConcurrency(t *testing.T) {
	const n = 10000
	now := time.Now()
	names := []string{"a.jpg", "a.jpg", "photo 1.png", "", "IMG_0001.HEIC", "x y z"}

	var mu sync.Mutex
	seen := make(map[string]struct{}, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(i)))
			name := names[r.Intn(len(names))]
			if r.Intn(2) == 0 {
				name = fmt.Sprintf("rand %d.jpg", r.Intn(10))
			}
			// same timestamp on purpose: uniqueness must not rely on the clock
			key := NewKey(7, name, now)
			mu.Lock()
			seen[key] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected %d unique keys, got %d", n, len(seen))
	}
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"records/1/a.jpg", "a"} {
		if _, err := ValidateKey(key); err != nil {
			t.Fatalf("expected %q to be valid: %v", key, err)
		}
	}
	for _, key := range []string{"", "/abs", "../up", "records/../../x", "a//b", `a\b`, "."} {
		if _, err := ValidateKey(key); err == nil {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}

func TestKeyTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 30, 0, 123456789, time.UTC)
	key := NewKey(12, "menu.png", now)
	got, ok := KeyTime(key)
	if !ok {
		t.Fatalf("expected timestamp in %s", key)
	}
	if !got.Equal(now) {
		t.Fatalf("expected %v, got %v", now, got)
	}

	for _, key := range []string{"other/1/123-x.jpg", "records/1", "records/1/abc-x.jpg", "records/1/nodash"} {
		if _, ok := KeyTime(key); ok {
			t.Fatalf("expected no timestamp for %q", key)
		}
	}
}
