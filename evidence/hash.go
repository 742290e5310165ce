package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Digest identifies the content of a produced or examined file.
type Digest struct {
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

func SHA256File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	return SHA256Reader(f)
}

func SHA256Reader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func DigestFile(path string) (Digest, error) {
	sum, n, err := SHA256File(path)
	if err != nil {
		return Digest{}, err
	}
	return Digest{SHA256: sum, SizeBytes: n}, nil
}
