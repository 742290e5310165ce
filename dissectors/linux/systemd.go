package linux

import (
	"context"
	"iter"
	"strings"

	"plasma/dissector"
)

func NewSystemdService() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "linux_systemd_service",
		Tags:        []dissector.Tag{dissector.TagLinux},
		Description: "systemd service units",
		Columns: dissector.Schema{
			{Name: "svc_section", Type: dissector.TypeString},
			{Name: "svc_option", Type: dissector.TypeString},
			{Name: "svc_value", Type: dissector.TypeString},
		},
		Select: func(ctx context.Context, root string) iter.Seq[string] {
			return dissector.Scan(ctx, root, "*.service")
		},
		Dissect: dissectSystemdService,
	})
}

// dissectSystemdService emits one record per option. A value ending with
// a backslash continues on the next line.
func dissectSystemdService(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		var section, option, value string
		continued := false
		for raw, err := range dissector.Lines(ctx, dc.Path) {
			if err != nil {
				yield(nil, err)
				return
			}
			line := strings.TrimSpace(raw)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
				continue
			}
			switch {
			case continued:
				value = strings.TrimSuffix(value, `\`) + line
			case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
				section = line[1 : len(line)-1]
				continue
			default:
				var ok bool
				option, value, ok = strings.Cut(line, "=")
				if !ok {
					dc.RegisterErrorf("malformed line in section %q: %q", section, line)
					continue
				}
				option = strings.TrimSpace(option)
				value = strings.TrimSpace(value)
			}
			continued = strings.HasSuffix(value, `\`)
			if continued {
				continue
			}
			rec := dissector.Record{
				"svc_section": section,
				"svc_option":  option,
				"svc_value":   value,
			}
			if !yield(rec, nil) {
				return
			}
		}
		if continued {
			dc.RegisterErrorf("unterminated continuation for option %q", option)
		}
	}
}
