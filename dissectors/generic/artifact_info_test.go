package generic

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plasma/dissector"
)

func TestArtifactInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewArtifactInfo()
	for _, tag := range []dissector.Tag{dissector.TagGeneric, dissector.TagLinux, dissector.TagWindows} {
		if !d.HasTag(tag) {
			t.Errorf("missing tag %s", tag)
		}
	}

	dc := dissector.NewContext(d.Slug(), "host", path, path)
	var recs []dissector.Record
	for rec, err := range d.Dissect(context.Background(), dc) {
		if err != nil {
			t.Fatal(err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if !strings.HasPrefix(rec["mime"].(string), "text/plain") {
		t.Errorf("mime = %v", rec["mime"])
	}
	if rec["size"] != int64(3) {
		t.Errorf("size = %v", rec["size"])
	}
	if rec["sha256"] != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("sha256 = %v", rec["sha256"])
	}
}

func TestArtifactInfo_MissingFile(t *testing.T) {
	d := NewArtifactInfo()
	path := filepath.Join(t.TempDir(), "gone")
	dc := dissector.NewContext(d.Slug(), "host", path, path)
	for _, err := range d.Dissect(context.Background(), dc) {
		if err == nil {
			t.Fatal("expected error for a missing file")
		}
	}
}
