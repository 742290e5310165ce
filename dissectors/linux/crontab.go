package linux

import (
	"context"
	"iter"
	"path/filepath"
	"strings"

	"plasma/dissector"
	"plasma/identify"
)

func NewCrontab() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "linux_crontab",
		Tags:        []dissector.Tag{dissector.TagLinux},
		Description: "cron scheduled commands",
		Columns: dissector.Schema{
			{Name: "cron_schedule", Type: dissector.TypeString},
			{Name: "cron_user", Type: dissector.TypeString},
			{Name: "cron_command", Type: dissector.TypeString},
		},
		Select: func(ctx context.Context, root string) iter.Seq[string] {
			return dissector.ScanMatching(ctx, root, func(path string) bool {
				_, ok := crontabKind(path)
				return ok && !identify.IsELF(path)
			})
		},
		Dissect: dissectCrontab,
	})
}

// crontabKind reports whether path is a crontab and whether its entries
// carry a user field. System tables (etc/crontab, cron.d/*) do; per-user
// spool tables (crontabs/<user>) do not.
func crontabKind(path string) (system bool, ok bool) {
	dir := filepath.Base(filepath.Dir(path))
	switch {
	case filepath.Base(path) == "crontab" && dir == "etc":
		return true, true
	case dir == "cron.d":
		return true, true
	case dir == "crontabs":
		return false, true
	}
	return false, false
}

func dissectCrontab(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		system, ok := crontabKind(dc.Path)
		if !ok {
			// single file target outside the usual locations
			system = filepath.Base(dc.Path) == "crontab"
		}
		for raw, err := range dissector.Lines(ctx, dc.Path) {
			if err != nil {
				yield(nil, err)
				return
			}
			line := strings.TrimSpace(raw)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			first := line
			if i := strings.IndexAny(line, " \t"); i >= 0 {
				first = line[:i]
			}
			if !strings.HasPrefix(first, "@") && strings.Contains(first, "=") {
				// environment assignment
				continue
			}
			rec, ok := parseCronEntry(line, system)
			if !ok {
				dc.RegisterErrorf("malformed cron entry: %q", line)
				continue
			}
			if !system {
				rec["cron_user"] = filepath.Base(dc.Path)
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func parseCronEntry(line string, system bool) (dissector.Record, bool) {
	n := 5
	if strings.HasPrefix(line, "@") {
		n = 1
	}
	if system {
		n++
	}
	head, command, ok := cutFields(line, n)
	if !ok || command == "" {
		return nil, false
	}
	rec := dissector.Record{"cron_command": command}
	if system {
		rec["cron_user"] = head[n-1]
		head = head[:n-1]
	}
	rec["cron_schedule"] = strings.Join(head, " ")
	return rec, true
}

// cutFields splits the first n whitespace separated fields off s and
// returns the remainder untouched.
func cutFields(s string, n int) ([]string, string, bool) {
	fields := make([]string, 0, n)
	for len(fields) < n {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return nil, "", false
		}
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			fields = append(fields, s)
			s = ""
			continue
		}
		fields = append(fields, s[:end])
		s = s[end:]
	}
	return fields, strings.TrimSpace(s), true
}
