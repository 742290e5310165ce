// Package elf dissects ELF executables and shared objects.
package elf

import (
	"bytes"
	"context"
	"debug/elf"
	"iter"
	"log/slog"
	"path/filepath"

	"plasma/dissector"
	"plasma/identify"
)

var tags = []dissector.Tag{dissector.TagLinux, dissector.TagExecutable}

// selectELF yields files carrying the ELF magic. A .so file without it is
// worth a warning since the suffix promised a shared object.
func selectELF(ctx context.Context, root string) iter.Seq[string] {
	return dissector.ScanMatching(ctx, root, func(path string) bool {
		if identify.IsELF(path) {
			return true
		}
		if filepath.Ext(path) == ".so" {
			slog.Warn("suffix suggests ELF but magic check failed", "path", path)
		}
		return false
	})
}

func NewInfo() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "elf_info",
		Tags:        tags,
		Description: "ELF header information",
		Columns: dissector.Schema{
			{Name: "elf_class", Type: dissector.TypeString},
			{Name: "elf_type", Type: dissector.TypeString},
			{Name: "elf_machine", Type: dissector.TypeString},
			{Name: "elf_entry", Type: dissector.TypeInt},
			{Name: "elf_interp", Type: dissector.TypeString},
			{Name: "elf_stripped", Type: dissector.TypeBool},
		},
		Select:  selectELF,
		Dissect: dissectInfo,
	})
}

func dissectInfo(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		f, err := elf.Open(dc.Path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		yield(dissector.Record{
			"elf_class":    f.Class.String(),
			"elf_type":     f.Type.String(),
			"elf_machine":  f.Machine.String(),
			"elf_entry":    int64(f.Entry),
			"elf_interp":   interpreter(f, dc),
			"elf_stripped": f.Section(".symtab") == nil,
		}, nil)
	}
}

func interpreter(f *elf.File, dc *dissector.Context) string {
	for _, p := range f.Progs {
		if p.Type != elf.PT_INTERP {
			continue
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil {
			dc.RegisterErrorf("read PT_INTERP: %v", err)
			return ""
		}
		return string(bytes.TrimRight(data, "\x00"))
	}
	return ""
}

func NewLibrary() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "elf_library",
		Tags:        tags,
		Description: "ELF needed libraries",
		Columns: dissector.Schema{
			{Name: "elf_library", Type: dissector.TypeString},
		},
		Select:  selectELF,
		Dissect: dissectLibrary,
	})
}

func dissectLibrary(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		f, err := elf.Open(dc.Path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		libs, err := f.ImportedLibraries()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, lib := range libs {
			if !yield(dissector.Record{"elf_library": lib}, nil) {
				return
			}
		}
	}
}

func Dissectors() []*dissector.Dissector {
	return []*dissector.Dissector{NewInfo(), NewLibrary()}
}
