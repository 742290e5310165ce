package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"plasma/core/internal/dissect"
	"plasma/core/internal/evidence"
	"plasma/dissector"
	"plasma/sinks"
)

func newDissectCmd(a *app) *cobra.Command {
	var filter string
	var fileFormat string
	var compression string
	var prefix bool
	var hostname string
	var parallelExtractors int
	var parallelDissectors int
	var noManifest bool
	var progress bool
	var format string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "dissect TARGET OUTPUT_DIR",
		Short: "Run dissectors against a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dc := a.cfg.Dissect
			flags := cmd.Flags()
			if flags.Changed("file-format") {
				dc.FileFormat = fileFormat
			}
			if flags.Changed("compression") {
				dc.Compression = compression
			}
			if flags.Changed("prefix") {
				dc.Prefix = prefix
			}
			if flags.Changed("hostname") {
				dc.Hostname = hostname
			}
			if flags.Changed("parallel-extractors") {
				dc.ParallelExtractors = parallelExtractors
			}
			if flags.Changed("parallel-dissectors") {
				dc.ParallelDissectors = parallelDissectors
			}
			if noManifest {
				dc.Manifest = false
			}

			fileFmt, err := sinks.ParseFormat(dc.FileFormat)
			if err != nil {
				return err
			}
			comp, err := sinks.ParseCompression(dc.Compression)
			if err != nil {
				return err
			}
			out, err := newOutput(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}

			selected, err := selectDissectors(a.registry, filter)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			opts := dissect.Options{
				Target:             args[0],
				OutputDir:          args[1],
				Hostname:           dc.Hostname,
				Prefix:             dc.Prefix,
				Format:             fileFmt,
				Compression:        comp,
				ParallelExtractors: dc.ParallelExtractors,
				ParallelDissectors: dc.ParallelDissectors,
				Logger:             a.logger,
			}
			if progress {
				bar := newProgressBar(cmd.ErrOrStderr(), len(selected))
				opts.OnDissectorDone = func(r dissect.DissectorResult) {
					bar.Describe(r.Dissector)
					_ = bar.Add(1)
				}
				defer func() { _ = bar.Finish() }()
			}

			res, runErr := dissect.Run(ctx, selected, opts)
			if res.RunID == "" {
				// configuration error, nothing ran
				return runErr
			}
			if dc.Manifest {
				path, err := evidence.WriteManifest(res.OutputDir, evidence.NewManifest(res))
				if err != nil {
					runErr = errors.Join(runErr, fmt.Errorf("write manifest: %w", err))
				} else {
					a.logger.Info("manifest written", "path", path)
				}
			}
			if err := out.results(res); err != nil {
				return err
			}
			return runErr
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter, "filter", "", "Dissector filter, ATTRIBUTE:VALUE[,VALUE...] (attributes: slug, tags)")
	f.StringVar(&fileFormat, "file-format", string(sinks.FormatCSV), "Output file format (csv|jsonl)")
	f.StringVar(&compression, "compression", string(sinks.CompressionGzip), "Output compression (gzip|zstd|lz4|none)")
	f.BoolVar(&prefix, "prefix", false, "Prefix output files with the sanitized hostname")
	f.StringVar(&hostname, "hostname", "", "Hostname recorded for this run (default: local hostname)")
	f.IntVar(&parallelExtractors, "parallel-extractors", 4, "Extraction workers per dissector")
	f.IntVar(&parallelDissectors, "parallel-dissectors", 1, "Dissectors running at once")
	f.BoolVar(&noManifest, "no-manifest", false, "Do not write manifest.json")
	f.BoolVar(&progress, "progress", false, "Show a progress bar on stderr")
	f.StringVar(&format, "format", formatRich, "Result display (rich|json)")
	f.DurationVar(&timeout, "timeout", 0, "Overall dissection timeout (0 = none)")
	return cmd
}

// selectDissectors applies the optional filter to the registry.
func selectDissectors(reg *dissector.Registry, spec string) ([]*dissector.Dissector, error) {
	all := reg.All()
	if spec == "" {
		return all, nil
	}
	f, err := dissector.ParseFilter(spec)
	if err != nil {
		return nil, err
	}
	return f.Apply(all), nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("dissecting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
