package extension

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"plasma/dissector"
)

// Build turns a manifest into a dissector.
func Build(m Manifest) (*dissector.Dissector, error) {
	r, err := m.compile()
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", m.Slug, err)
	}
	return dissector.New(dissector.Config{
		Slug:        m.Slug,
		Tags:        r.tags,
		Columns:     r.schema,
		Description: m.Description,
		Select: func(ctx context.Context, root string) iter.Seq[string] {
			return dissector.Scan(ctx, root, m.Pattern)
		},
		Dissect: r.dissect,
	}), nil
}

func (r *rule) dissect(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		n := 0
		for line, err := range dissector.Lines(ctx, dc.Path) {
			if err != nil {
				yield(nil, err)
				return
			}
			n++
			match := r.re.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			rec, err := r.record(match)
			if err != nil {
				dc.RegisterErrorf("line %d: %v", n, err)
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (r *rule) record(match []string) (dissector.Record, error) {
	rec := make(dissector.Record, len(r.schema))
	for i, col := range r.schema {
		raw := match[r.groups[i]]
		if raw == "" {
			continue
		}
		v, err := convert(raw, col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		rec[col.Name] = v
	}
	return rec, nil
}

func convert(raw string, typ dissector.DataType) (any, error) {
	switch typ {
	case dissector.TypeInt:
		return parseInt(raw)
	case dissector.TypeFloat:
		return strconv.ParseFloat(raw, 64)
	case dissector.TypeBool:
		return strconv.ParseBool(raw)
	case dissector.TypeInet:
		return netip.ParseAddr(raw)
	default:
		return raw, nil
	}
}

// parseInt reads decimal, keeping leading zeros, or hexadecimal with an
// explicit 0x prefix.
func parseInt(raw string) (int64, error) {
	digits := strings.TrimLeft(raw, "+-")
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		return strconv.ParseInt(raw[:len(raw)-len(digits)]+digits[2:], 16, 64)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// LoadDirs registers a dissector for every *.yaml or *.yml manifest found
// directly in dirs and returns how many were registered. Missing
// directories are skipped with a warning. An invalid manifest or a slug
// collision stops loading.
func LoadDirs(reg *dissector.Registry, dirs ...string) (int, error) {
	loaded := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("plugin directory not found, skipping", "dir", dir)
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("plugin directory %s: %w", dir, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			m, err := LoadManifest(path)
			if err != nil {
				return loaded, fmt.Errorf("%s: %w", path, err)
			}
			d, err := Build(m)
			if err != nil {
				return loaded, fmt.Errorf("%s: %w", path, err)
			}
			if err := reg.Register(d); err != nil {
				return loaded, fmt.Errorf("%s: %w", path, err)
			}
			slog.Debug("extension dissector loaded", "slug", d.Slug(), "path", path)
			loaded++
		}
	}
	return loaded, nil
}
