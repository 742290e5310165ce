// Package sinks serializes record streams to compressed tabular files.
package sinks

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"plasma/dissector"
	"plasma/evidence"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatCSV, FormatJSONL:
		return Format(name), nil
	default:
		return "", fmt.Errorf("unknown file format: %q", name)
	}
}

// Compression identifies the stream codec wrapping a sink file.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionNone Compression = "none"
)

func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case CompressionGzip, CompressionZstd, CompressionLZ4, CompressionNone:
		return Compression(name), nil
	default:
		return "", fmt.Errorf("unknown compression: %q", name)
	}
}

func (c Compression) suffix() string {
	switch c {
	case CompressionGzip, "":
		return ".gz"
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// Extension returns the file extension for a format and compression,
// e.g. ".csv.gz".
func Extension(f Format, c Compression) string {
	return "." + string(f) + c.suffix()
}

type rowWriter interface {
	WriteRow(rec dissector.Record) error
	Flush() error
}

// Write serializes records to path, keeping exactly the given columns in
// order. It returns the number of rows written. The sequence is consumed
// until it ends or a write fails.
func Write(path string, columns []string, format Format, compression Compression, records iter.Seq[dissector.Record]) (int64, error) {
	f, err := evidence.Create(path)
	if err != nil {
		return 0, err
	}

	zw, err := compress(f, compression)
	if err != nil {
		_ = f.Close()
		return 0, err
	}
	bw := bufio.NewWriterSize(zw, 64*1024)

	var rw rowWriter
	switch format {
	case FormatCSV:
		rw, err = newCSVWriter(bw, columns)
	case FormatJSONL:
		rw = newJSONLWriter(bw, columns)
	default:
		err = fmt.Errorf("unknown file format: %q", format)
	}
	if err != nil {
		_ = zw.Close()
		_ = f.Close()
		return 0, err
	}

	var n int64
	var werr error
	for rec := range records {
		if werr = rw.WriteRow(rec); werr != nil {
			werr = fmt.Errorf("write %s row %d: %w", path, n+1, werr)
			break
		}
		n++
	}

	if err := rw.Flush(); err != nil && werr == nil {
		werr = err
	}
	if err := bw.Flush(); err != nil && werr == nil {
		werr = err
	}
	if err := zw.Close(); err != nil && werr == nil {
		werr = err
	}
	if err := f.Close(); err != nil && werr == nil {
		werr = err
	}
	return n, werr
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func compress(f *os.File, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip, "":
		return gzip.NewWriter(f), nil
	case CompressionZstd:
		return zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CompressionLZ4:
		return lz4.NewWriter(f), nil
	case CompressionNone:
		return nopCloser{f}, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %q", c)
	}
}
