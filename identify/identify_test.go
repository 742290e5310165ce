package identify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// peStub is a DOS header whose e_lfanew points right after it at "PE\0\0".
func peStub() []byte {
	b := make([]byte, 0x44)
	copy(b, "MZ")
	b[0x3c] = 0x40
	copy(b[0x40:], "PE\x00\x00")
	return b
}

func TestMagic(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"elf":    append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}, make([]byte, 16)...),
		"pe":     peStub(),
		"mz":     []byte("MZ\x90\x00"),
		"pcap":   {0xd4, 0xc3, 0xb2, 0xa1, 2, 0, 4, 0},
		"pcapng": {0x0a, 0x0d, 0x0d, 0x0a, 0, 0, 0, 0},
		"text":   []byte("hello"),
		"empty":  {},
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		fn   func(string) bool
		want map[string]bool
	}{
		{"IsELF", IsELF, map[string]bool{"elf": true}},
		{"IsPE", IsPE, map[string]bool{"pe": true}},
		{"IsPcap", IsPcap, map[string]bool{"pcap": true}},
		{"IsPcapNG", IsPcapNG, map[string]bool{"pcapng": true}},
	}
	for _, tt := range tests {
		for name := range files {
			if got := tt.fn(filepath.Join(dir, name)); got != tt.want[name] {
				t.Errorf("%s(%s) = %v, want %v", tt.name, name, got, tt.want[name])
			}
		}
	}
	if IsELF(filepath.Join(dir, "missing")) {
		t.Error("IsELF(missing) = true")
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain text content\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if !strings.HasPrefix(res.MIME, "text/plain") {
		t.Errorf("MIME = %q, want text/plain", res.MIME)
	}
	if res.Extension != ".txt" {
		t.Errorf("Extension = %q, want .txt", res.Extension)
	}
}
