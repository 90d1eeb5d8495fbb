package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"izakaya/internal/api"
)

// openPhotos opens each path for upload; captions pair with paths by index.
// The returned func closes every opened file.
func openPhotos(paths, captions []string) ([]api.Photo, func(), error) {
	if len(captions) > len(paths) {
		return nil, nil, fmt.Errorf("%d captions given for %d photos", len(captions), len(paths))
	}

	files := make([]*os.File, 0, len(paths))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	photos := make([]api.Photo, 0, len(paths))
	for i, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open photo: %w", err)
		}
		files = append(files, f)

		caption := ""
		if i < len(captions) {
			caption = captions[i]
		}
		photos = append(photos, api.Photo{
			Filename:    filepath.Base(path),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
			Caption:     caption,
			Content:     f,
		})
	}
	return photos, closeAll, nil
}

// parseCaptionEdits parses repeated "id=caption" values. An empty caption
// clears it.
func parseCaptionEdits(values []string) (map[int64]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	edits := make(map[int64]string, len(values))
	for _, value := range values {
		rawID, caption, ok := strings.Cut(value, "=")
		if !ok {
			return nil, fmt.Errorf("invalid caption edit %q (want id=caption)", value)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid attachment id in caption edit %q", value)
		}
		edits[id] = caption
	}
	return edits, nil
}
