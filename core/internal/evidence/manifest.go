package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"plasma/core/internal/dissect"
	"plasma/evidence"
)

const ManifestName = "manifest.json"

type Output struct {
	Dissector    string `json:"dissector"`
	Kind         string `json:"kind"`
	RelativePath string `json:"relative_path"`
	Rows         int64  `json:"rows"`
	SizeBytes    int64  `json:"size_bytes"`
	SHA256       string `json:"sha256"`
}

type Manifest struct {
	RunID      string            `json:"run_id"`
	Hostname   string            `json:"hostname"`
	Target     string            `json:"target"`
	StartedAt  string            `json:"started_at"`
	FinishedAt string            `json:"finished_at"`
	Outputs    []Output          `json:"outputs"`
	Failures   map[string]string `json:"failures,omitempty"`
}

// NewManifest hashes every output of a run. Dissectors that failed, or
// whose output cannot be read back, are listed under Failures.
func NewManifest(res dissect.Result) Manifest {
	m := Manifest{
		RunID:      res.RunID,
		Hostname:   res.Hostname,
		Target:     res.Target,
		StartedAt:  res.StartedAt.Format(time.RFC3339Nano),
		FinishedAt: res.StartedAt.Add(res.Elapsed).Format(time.RFC3339Nano),
	}

	fail := func(slug, msg string) {
		if m.Failures == nil {
			m.Failures = make(map[string]string)
		}
		if _, ok := m.Failures[slug]; !ok {
			m.Failures[slug] = msg
		}
	}

	for _, r := range res.Dissectors {
		if r.Err != nil {
			fail(r.Dissector, r.Err.Error())
		}
		for _, out := range []struct {
			kind string
			path string
			rows int64
		}{
			{"records", r.OutputPath, r.Records},
			{"errors", r.ErrorPath, r.ErrorRecords},
		} {
			d, err := evidence.DigestFile(out.path)
			if err != nil {
				fail(r.Dissector, err.Error())
				continue
			}
			rel, err := filepath.Rel(res.OutputDir, out.path)
			if err != nil {
				rel = out.path
			}
			m.Outputs = append(m.Outputs, Output{
				Dissector:    r.Dissector,
				Kind:         out.kind,
				RelativePath: filepath.ToSlash(rel),
				Rows:         out.rows,
				SizeBytes:    d.SizeBytes,
				SHA256:       d.SHA256,
			})
		}
	}
	return m
}

func WriteManifest(outputDir string, m Manifest) (string, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, ManifestName)
	return path, evidence.WriteFileAtomic(path, b, 0o600)
}

func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}
