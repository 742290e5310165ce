package linux

import (
	"context"
	"iter"
	"strconv"
	"strings"

	"plasma/dissector"
)

func NewOSRelease() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "linux_os_release",
		Tags:        []dissector.Tag{dissector.TagLinux},
		Description: "os-release identification",
		Columns: dissector.Schema{
			{Name: "os_key", Type: dissector.TypeString},
			{Name: "os_value", Type: dissector.TypeString},
		},
		Select: func(ctx context.Context, root string) iter.Seq[string] {
			return dissector.Scan(ctx, root, "os-release")
		},
		Dissect: dissectOSRelease,
	})
}

func dissectOSRelease(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		for raw, err := range dissector.Lines(ctx, dc.Path) {
			if err != nil {
				yield(nil, err)
				return
			}
			line := strings.TrimSpace(raw)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				dc.RegisterErrorf("malformed line: %q", line)
				continue
			}
			rec := dissector.Record{
				"os_key":   strings.TrimSpace(key),
				"os_value": unquote(strings.TrimSpace(value)),
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// unquote strips shell-style quotes from an os-release value.
func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	switch v[0] {
	case '"':
		if s, err := strconv.Unquote(v); err == nil {
			return s
		}
		return strings.Trim(v, `"`)
	case '\'':
		if v[len(v)-1] == '\'' {
			return v[1 : len(v)-1]
		}
	}
	return v
}
