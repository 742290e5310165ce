// Package identify classifies artifact content by MIME type and magic bytes.
package identify

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

type Result struct {
	MIME      string
	Extension string
	Parent    string
}

// File detects the content type of the file at path.
func File(path string) (Result, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Result{}, err
	}
	return fromMIME(mt), nil
}

func Bytes(data []byte) Result {
	return fromMIME(mimetype.Detect(data))
}

func fromMIME(mt *mimetype.MIME) Result {
	res := Result{MIME: mt.String(), Extension: mt.Extension()}
	if p := mt.Parent(); p != nil {
		res.Parent = p.String()
	}
	return res
}

var (
	magicELF      = []byte{0x7f, 'E', 'L', 'F'}
	magicMZ       = []byte{'M', 'Z'}
	magicPE       = []byte{'P', 'E', 0, 0}
	magicPcapLE   = []byte{0xd4, 0xc3, 0xb2, 0xa1}
	magicPcapBE   = []byte{0xa1, 0xb2, 0xc3, 0xd4}
	magicPcapNsLE = []byte{0x4d, 0x3c, 0xb2, 0xa1}
	magicPcapNsBE = []byte{0xa1, 0xb2, 0x3c, 0x4d}
	magicPcapNG   = []byte{0x0a, 0x0d, 0x0d, 0x0a}
)

func head(path string, n int) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, n)
	read, _ := io.ReadFull(f, buf)
	return buf[:read]
}

func IsELF(path string) bool {
	return bytes.HasPrefix(head(path, 4), magicELF)
}

// IsPE reports an MZ header whose e_lfanew points at a PE signature.
func IsPE(path string) bool {
	h := head(path, 0x40)
	if len(h) < 0x40 || !bytes.HasPrefix(h, magicMZ) {
		return false
	}
	off := int64(binary.LittleEndian.Uint32(h[0x3c:]))
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sig := make([]byte, 4)
	if _, err := f.ReadAt(sig, off); err != nil {
		return false
	}
	return bytes.Equal(sig, magicPE)
}

// IsPcap reports a classic pcap (either byte order or nanosecond variant).
func IsPcap(path string) bool {
	h := head(path, 4)
	for _, m := range [][]byte{magicPcapLE, magicPcapBE, magicPcapNsLE, magicPcapNsBE} {
		if bytes.Equal(h, m) {
			return true
		}
	}
	return false
}

func IsPcapNG(path string) bool {
	return bytes.Equal(head(path, 4), magicPcapNG)
}
