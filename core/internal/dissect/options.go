package dissect

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"plasma/sinks"
)

var ErrNoDissectors = errors.New("no dissector selected")

var hostnameReplacer = regexp.MustCompile(`[^\w]+`)

type Options struct {
	Target    string
	OutputDir string
	Hostname  string
	// Prefix output file names with the sanitized hostname.
	Prefix bool

	Format      sinks.Format
	Compression sinks.Compression

	// ParallelExtractors is the number of extraction workers per dissector.
	ParallelExtractors int
	// ParallelDissectors is the number of dissectors running at once.
	ParallelDissectors int

	Logger *slog.Logger

	// OnDissectorDone is called once per dissector after its outputs are
	// closed. Calls never overlap.
	OnDissectorDone func(DissectorResult)
}

// DissectorResult describes one dissector's outputs for a run.
type DissectorResult struct {
	Dissector    string
	OutputPath   string
	ErrorPath    string
	Targets      int64
	Records      int64
	ErrorRecords int64
	Elapsed      time.Duration
	// Err is a fatal failure of the dissector's pipeline. Per-target
	// failures end up in ErrorPath instead.
	Err error
}

type Result struct {
	RunID      string
	Hostname   string
	Target     string
	OutputDir  string
	StartedAt  time.Time
	Elapsed    time.Duration
	Dissectors []DissectorResult
}

// SanitizeHostname turns a hostname into a file name prefix.
func SanitizeHostname(hostname string) string {
	return strings.ToUpper(hostnameReplacer.ReplaceAllString(hostname, "_"))
}

func (o Options) fileName(slug, suffix string) string {
	prefix := ""
	if o.Prefix {
		prefix = SanitizeHostname(o.Hostname) + "_"
	}
	return filepath.Join(o.OutputDir, prefix+slug+suffix+sinks.Extension(o.Format, o.Compression))
}

func (o Options) OutputPath(slug string) string { return o.fileName(slug, "") }

func (o Options) ErrorPath(slug string) string { return o.fileName(slug, "_error") }

func (o *Options) normalize() error {
	if o.Target == "" {
		return errors.New("no target given")
	}
	if o.OutputDir == "" {
		return errors.New("no output directory given")
	}
	if o.Hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			h = "unknown"
		}
		o.Hostname = h
	}
	if o.Format == "" {
		o.Format = sinks.FormatCSV
	}
	if _, err := sinks.ParseFormat(string(o.Format)); err != nil {
		return err
	}
	if o.Compression == "" {
		o.Compression = sinks.CompressionGzip
	}
	if _, err := sinks.ParseCompression(string(o.Compression)); err != nil {
		return err
	}
	o.ParallelExtractors = max(1, o.ParallelExtractors)
	o.ParallelDissectors = max(1, o.ParallelDissectors)
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return nil
}

func (o Options) String() string {
	return fmt.Sprintf("target=%s output=%s format=%s compression=%s extractors=%d dissectors=%d",
		o.Target, o.OutputDir, o.Format, o.Compression, o.ParallelExtractors, o.ParallelDissectors)
}
