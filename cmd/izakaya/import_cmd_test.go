package main

import (
	"path/filepath"
	"testing"
)

func TestParseSeedResolvesRelativePhotoPaths(t *testing.T) {
	data := []byte(`
records:
  - name: Torikizoku
    rating: 4
    genre: Yakitori
    status: WANT_TO_GO
    photos:
      - path: photos/skewers.jpg
        caption: skewers
      - path: /abs/menu.jpg
  - name: Uoshin
`)

	records, err := parseSeed(data, "/seed")
	if err != nil {
		t.Fatalf("parseSeed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Rating == nil || *first.Rating != 4 {
		t.Fatalf("expected rating 4, got %v", first.Rating)
	}
	if first.Photos[0].Path != filepath.Join("/seed", "photos/skewers.jpg") {
		t.Fatalf("unexpected relative path: %s", first.Photos[0].Path)
	}
	if first.Photos[1].Path != "/abs/menu.jpg" {
		t.Fatalf("unexpected absolute path: %s", first.Photos[1].Path)
	}

	paths, captions := first.photoPaths()
	if len(paths) != 2 || captions[0] != "skewers" || captions[1] != "" {
		t.Fatalf("unexpected photo pairing: %v %v", paths, captions)
	}

	form := records[1].form()
	if form.Name == nil || *form.Name != "Uoshin" {
		t.Fatalf("unexpected name: %v", form.Name)
	}
	if form.Rating != nil || form.Genre != nil || form.Status != nil {
		t.Fatalf("expected unset fields to stay nil: %+v", form)
	}
}

func TestParseSeedRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "records: []\n"},
		{name: "missing name", data: "records:\n  - rating: 3\n"},
		{name: "missing photo path", data: "records:\n  - name: A\n    photos:\n      - caption: x\n"},
		{name: "unknown field", data: "records:\n  - name: A\n    stars: 5\n"},
		{name: "not yaml", data: "records: [\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseSeed([]byte(tc.data), "/seed"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
