// Package dissectors wires the built-in dissector catalog.
package dissectors

import (
	"plasma/dissector"
	"plasma/dissectors/elf"
	"plasma/dissectors/generic"
	"plasma/dissectors/linux"
	"plasma/dissectors/pcap"
	"plasma/dissectors/pe"
)

// Builtin returns every built-in dissector in catalog order.
func Builtin() []*dissector.Dissector {
	var all []*dissector.Dissector
	all = append(all, linux.Dissectors()...)
	all = append(all, generic.Dissectors()...)
	all = append(all, pcap.Dissectors()...)
	all = append(all, elf.Dissectors()...)
	all = append(all, pe.Dissectors()...)
	return all
}

// Register adds the built-in catalog to r. A slug collision is a
// programming error and panics.
func Register(r *dissector.Registry) {
	for _, d := range Builtin() {
		r.MustRegister(d)
	}
}
