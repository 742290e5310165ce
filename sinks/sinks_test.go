package sinks

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"iter"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"plasma/dissector"
)

func recordsOf(recs ...dissector.Record) iter.Seq[dissector.Record] {
	return func(yield func(dissector.Record) bool) {
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	}
}

func openDecompressed(t *testing.T, path string, c Compression) io.Reader {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })

	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		return zr
	case CompressionZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(zr.Close)
		return zr
	case CompressionLZ4:
		return lz4.NewReader(f)
	default:
		return f
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		format      Format
		compression Compression
		want        string
	}{
		{FormatCSV, CompressionGzip, ".csv.gz"},
		{FormatJSONL, CompressionGzip, ".jsonl.gz"},
		{FormatCSV, CompressionZstd, ".csv.zst"},
		{FormatJSONL, CompressionLZ4, ".jsonl.lz4"},
		{FormatCSV, CompressionNone, ".csv"},
	}
	for _, tt := range tests {
		if got := Extension(tt.format, tt.compression); got != tt.want {
			t.Errorf("Extension(%s, %s) = %q, want %q", tt.format, tt.compression, got, tt.want)
		}
	}
}

func TestWrite_CSVProjectsDeclaredColumns(t *testing.T) {
	for _, c := range []Compression{CompressionGzip, CompressionZstd, CompressionLZ4, CompressionNone} {
		t.Run(string(c), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", "linux_resolv"+Extension(FormatCSV, c))
			n, err := Write(path, []string{"ns_addr", "port", "ok"}, FormatCSV, c, recordsOf(
				dissector.Record{"ns_addr": netip.MustParseAddr("10.0.0.1"), "port": 53, "ok": true, "extra": "dropped"},
				dissector.Record{"ns_addr": netip.MustParseAddr("::1")},
			))
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if n != 2 {
				t.Errorf("Write returned %d rows, want 2", n)
			}

			rows, err := csv.NewReader(openDecompressed(t, path, c)).ReadAll()
			if err != nil {
				t.Fatalf("read back: %v", err)
			}
			want := [][]string{
				{"ns_addr", "port", "ok"},
				{"10.0.0.1", "53", "true"},
				{"::1", "", ""},
			}
			if len(rows) != len(want) {
				t.Fatalf("got %d rows, want %d: %v", len(rows), len(want), rows)
			}
			for i := range want {
				if !slices.Equal(rows[i], want[i]) {
					t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
				}
			}
		})
	}
}

func TestWrite_JSONLKeepsColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns.jsonl.gz")
	_, err := Write(path, []string{"b", "a", "n"}, FormatJSONL, CompressionGzip, recordsOf(
		dissector.Record{"a": "x\"y", "b": 1.5, "n": nil, "z": 1},
	))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	s := bufio.NewScanner(openDecompressed(t, path, CompressionGzip))
	if !s.Scan() {
		t.Fatal("no line written")
	}
	const want = `{"b":1.5,"a":"x\"y","n":null}`
	if s.Text() != want {
		t.Errorf("line = %s, want %s", s.Text(), want)
	}
	var obj map[string]any
	if err := json.Unmarshal(s.Bytes(), &obj); err != nil {
		t.Errorf("line is not valid JSON: %v", err)
	}
}

func TestWrite_EmptySequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv.gz")
	n, err := Write(path, []string{"a"}, FormatCSV, CompressionGzip, recordsOf())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
	rows, err := csv.NewReader(openDecompressed(t, path, CompressionGzip)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("expected header only, got %v", rows)
	}
}

func TestParseFormatAndCompression(t *testing.T) {
	if _, err := ParseFormat("parquet"); err == nil {
		t.Error("ParseFormat(parquet) expected error")
	}
	if f, err := ParseFormat("jsonl"); err != nil || f != FormatJSONL {
		t.Errorf("ParseFormat(jsonl) = %v, %v", f, err)
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression(brotli) expected error")
	}
	if c, err := ParseCompression("zstd"); err != nil || c != CompressionZstd {
		t.Errorf("ParseCompression(zstd) = %v, %v", c, err)
	}
}
