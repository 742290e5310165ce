// Package pe dissects Windows portable executables.
package pe

import (
	"context"
	"debug/pe"
	"fmt"
	"iter"
	"strings"
	"time"

	"plasma/dissector"
	"plasma/identify"
)

var tags = []dissector.Tag{dissector.TagWindows, dissector.TagExecutable}

func selectPE(ctx context.Context, root string) iter.Seq[string] {
	return dissector.ScanMatching(ctx, root, identify.IsPE)
}

var machines = map[uint16]string{
	pe.IMAGE_FILE_MACHINE_I386:  "i386",
	pe.IMAGE_FILE_MACHINE_AMD64: "amd64",
	pe.IMAGE_FILE_MACHINE_ARM:   "arm",
	pe.IMAGE_FILE_MACHINE_ARMNT: "armnt",
	pe.IMAGE_FILE_MACHINE_ARM64: "arm64",
	pe.IMAGE_FILE_MACHINE_IA64:  "ia64",
}

var subsystems = map[uint16]string{
	pe.IMAGE_SUBSYSTEM_NATIVE:                   "native",
	pe.IMAGE_SUBSYSTEM_WINDOWS_GUI:              "windows_gui",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CUI:              "windows_cui",
	pe.IMAGE_SUBSYSTEM_POSIX_CUI:                "posix_cui",
	pe.IMAGE_SUBSYSTEM_WINDOWS_CE_GUI:           "windows_ce_gui",
	pe.IMAGE_SUBSYSTEM_EFI_APPLICATION:          "efi_application",
	pe.IMAGE_SUBSYSTEM_EFI_BOOT_SERVICE_DRIVER:  "efi_boot_service_driver",
	pe.IMAGE_SUBSYSTEM_EFI_RUNTIME_DRIVER:       "efi_runtime_driver",
	pe.IMAGE_SUBSYSTEM_XBOX:                     "xbox",
	pe.IMAGE_SUBSYSTEM_WINDOWS_BOOT_APPLICATION: "windows_boot_application",
}

func lookup(names map[uint16]string, v uint16) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("0x%04x", v)
}

func subsystem(f *pe.File) string {
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return lookup(subsystems, oh.Subsystem)
	case *pe.OptionalHeader64:
		return lookup(subsystems, oh.Subsystem)
	}
	return ""
}

func NewInfo() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "pe_info",
		Tags:        tags,
		Description: "PE header information",
		Columns: dissector.Schema{
			{Name: "pe_machine", Type: dissector.TypeString},
			{Name: "pe_timestamp", Type: dissector.TypeString},
			{Name: "pe_subsystem", Type: dissector.TypeString},
			{Name: "pe_is_dll", Type: dissector.TypeBool},
			{Name: "pe_sections", Type: dissector.TypeInt},
		},
		Select:  selectPE,
		Dissect: dissectInfo,
	})
}

func dissectInfo(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		f, err := pe.Open(dc.Path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		yield(dissector.Record{
			"pe_machine":   lookup(machines, f.Machine),
			"pe_timestamp": time.Unix(int64(f.TimeDateStamp), 0).UTC().Format(time.RFC3339),
			"pe_subsystem": subsystem(f),
			"pe_is_dll":    f.Characteristics&pe.IMAGE_FILE_DLL != 0,
			"pe_sections":  len(f.Sections),
		}, nil)
	}
}

func NewImport() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "pe_import",
		Tags:        tags,
		Description: "PE imported symbols",
		Columns: dissector.Schema{
			{Name: "pe_library", Type: dissector.TypeString},
			{Name: "pe_symbol", Type: dissector.TypeString},
		},
		Select:  selectPE,
		Dissect: dissectImport,
	})
}

func dissectImport(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		f, err := pe.Open(dc.Path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		syms, err := f.ImportedSymbols()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, s := range syms {
			symbol, library, ok := strings.Cut(s, ":")
			if !ok {
				dc.RegisterErrorf("unexpected import entry %q", s)
				continue
			}
			if !yield(dissector.Record{"pe_library": library, "pe_symbol": symbol}, nil) {
				return
			}
		}
	}
}

func Dissectors() []*dissector.Dissector {
	return []*dissector.Dissector{NewInfo(), NewImport()}
}
