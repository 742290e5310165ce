package sinks

import (
	"encoding/csv"
	"io"

	"plasma/dissector"
)

type csvWriter struct {
	w       *csv.Writer
	columns []string
	row     []string
}

func newCSVWriter(w io.Writer, columns []string) (*csvWriter, error) {
	cw := &csvWriter{
		w:       csv.NewWriter(w),
		columns: columns,
		row:     make([]string, len(columns)),
	}
	if err := cw.w.Write(columns); err != nil {
		return nil, err
	}
	return cw, nil
}

func (c *csvWriter) WriteRow(rec dissector.Record) error {
	for i, name := range c.columns {
		c.row[i] = FormatValue(rec[name])
	}
	return c.w.Write(c.row)
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// jsonlWriter writes one JSON object per line with keys in column order.
type jsonlWriter struct {
	w       io.Writer
	columns []string
	keys    [][]byte
	buf     []byte
}

func newJSONLWriter(w io.Writer, columns []string) *jsonlWriter {
	keys := make([][]byte, len(columns))
	for i, name := range columns {
		keys[i] = append(appendJSONString(nil, name), ':')
	}
	return &jsonlWriter{w: w, columns: columns, keys: keys}
}

func (j *jsonlWriter) WriteRow(rec dissector.Record) error {
	buf := append(j.buf[:0], '{')
	for i, name := range j.columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, j.keys[i]...)
		buf = appendJSONValue(buf, rec[name])
	}
	buf = append(buf, '}', '\n')
	j.buf = buf
	_, err := j.w.Write(buf)
	return err
}

func (j *jsonlWriter) Flush() error { return nil }
