// Package linux dissects Linux configuration artifacts.
package linux

import (
	"context"
	"iter"
	"net/netip"
	"strings"

	"plasma/dissector"
)

func NewResolv() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "linux_resolv",
		Tags:        []dissector.Tag{dissector.TagLinux},
		Description: "resolv.conf name servers",
		Columns: dissector.Schema{
			{Name: "ns_addr", Type: dissector.TypeInet},
		},
		Select: func(ctx context.Context, root string) iter.Seq[string] {
			return dissector.Scan(ctx, root, "resolv.conf")
		},
		Dissect: dissectResolv,
	})
}

func dissectResolv(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		for line, err := range dissector.Lines(ctx, dc.Path) {
			if err != nil {
				yield(nil, err)
				return
			}
			fields := strings.Fields(line)
			if len(fields) < 2 || fields[0] != "nameserver" {
				continue
			}
			addr, err := netip.ParseAddr(fields[1])
			if err != nil {
				dc.RegisterErrorf("invalid nameserver address %q", fields[1])
				continue
			}
			if !yield(dissector.Record{"ns_addr": addr}, nil) {
				return
			}
		}
	}
}
