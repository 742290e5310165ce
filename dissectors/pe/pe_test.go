package pe

import (
	"bytes"
	"context"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"plasma/dissector"
)

const (
	sectionRVA    = 0x1000
	sectionOffset = 0x200
	sectionSize   = 0x200
)

// buildDLL assembles a minimal PE32+ DLL with one .idata section that
// imports CreateFileW from KERNEL32.dll.
func buildDLL(t *testing.T) []byte {
	t.Helper()
	var b bytes.Buffer
	le := binary.LittleEndian
	put := func(v any) {
		if err := binary.Write(&b, le, v); err != nil {
			t.Fatal(err)
		}
	}

	dos := make([]byte, 0x40)
	copy(dos, "MZ")
	le.PutUint32(dos[0x3c:], 0x40)
	b.Write(dos)
	b.WriteString("PE\x00\x00")

	put(pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     1,
		TimeDateStamp:        1700000000,
		SizeOfOptionalHeader: uint16(binary.Size(pe.OptionalHeader64{})),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_DLL,
	})
	oh := pe.OptionalHeader64{
		Magic:               0x20b,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         0x2000,
		SizeOfHeaders:       sectionOffset,
		Subsystem:           pe.IMAGE_SUBSYSTEM_WINDOWS_GUI,
		NumberOfRvaAndSizes: 16,
	}
	oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_IMPORT] = pe.DataDirectory{VirtualAddress: sectionRVA, Size: 40}
	put(oh)

	var name [8]uint8
	copy(name[:], ".idata")
	put(pe.SectionHeader32{
		Name:             name,
		VirtualSize:      sectionSize,
		VirtualAddress:   sectionRVA,
		SizeOfRawData:    sectionSize,
		PointerToRawData: sectionOffset,
		Characteristics:  pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
	})
	b.Write(make([]byte, sectionOffset-b.Len()))

	sec := make([]byte, sectionSize)
	// import descriptor followed by a null descriptor
	le.PutUint32(sec[0:], sectionRVA+0x40)
	le.PutUint32(sec[12:], sectionRVA+0x80)
	le.PutUint32(sec[16:], sectionRVA+0x40)
	// lookup table: one hint/name entry, then a terminator
	le.PutUint64(sec[0x40:], sectionRVA+0x60)
	copy(sec[0x62:], "CreateFileW\x00")
	copy(sec[0x80:], "KERNEL32.dll\x00")
	b.Write(sec)
	return b.Bytes()
}

func writeDLL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.dll")
	if err := os.WriteFile(path, buildDLL(t), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func collect(t *testing.T, d *dissector.Dissector, path string) []dissector.Record {
	t.Helper()
	dc := dissector.NewContext(d.Slug(), "host", path, path)
	var recs []dissector.Record
	for rec, err := range d.Dissect(context.Background(), dc) {
		if err != nil {
			t.Fatalf("%s: %v", d.Slug(), err)
		}
		recs = append(recs, rec)
	}
	return recs
}

func TestInfo(t *testing.T) {
	recs := collect(t, NewInfo(), writeDLL(t))
	want := []dissector.Record{{
		"pe_machine":   "amd64",
		"pe_timestamp": "2023-11-14T22:13:20Z",
		"pe_subsystem": "windows_gui",
		"pe_is_dll":    true,
		"pe_sections":  1,
	}}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("records = %v\nwant %v", recs, want)
	}
}

func TestImport(t *testing.T) {
	recs := collect(t, NewImport(), writeDLL(t))
	want := []dissector.Record{{"pe_library": "KERNEL32.dll", "pe_symbol": "CreateFileW"}}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("records = %v, want %v", recs, want)
	}
}

func TestSelect(t *testing.T) {
	path := writeDLL(t)
	root := filepath.Dir(path)
	if err := os.WriteFile(filepath.Join(root, "readme.txt"), []byte("MZ is not enough"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got []string
	for p := range NewImport().Select(context.Background(), root) {
		got = append(got, filepath.Base(p))
	}
	if !reflect.DeepEqual(got, []string{"sample.dll"}) {
		t.Errorf("selected = %v", got)
	}
}
