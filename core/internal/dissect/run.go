// Package dissect runs selected dissectors against a target and writes
// their records and per-target errors to the output directory.
package dissect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"plasma/dissector"
	"plasma/perfmeter"
)

// Run executes every dissector against opts.Target, running up to
// opts.ParallelDissectors of them at once. Configuration problems are
// returned before anything starts. Otherwise every dissector runs to
// completion and the returned error joins the fatal failures, if any.
func Run(ctx context.Context, ds []*dissector.Dissector, opts Options) (Result, error) {
	if err := opts.normalize(); err != nil {
		return Result{}, err
	}
	if len(ds) == 0 {
		return Result{}, ErrNoDissectors
	}
	info, err := os.Stat(opts.Target)
	if err != nil {
		return Result{}, fmt.Errorf("target: %w", err)
	}
	isDir := info.IsDir()
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("output directory: %w", err)
	}

	res := Result{
		RunID:     uuid.NewString(),
		Hostname:  opts.Hostname,
		Target:    opts.Target,
		OutputDir: opts.OutputDir,
		StartedAt: time.Now().UTC(),
	}
	logger := opts.Logger.With("run_id", res.RunID)
	opts.Logger = logger
	logger.Info("dissection started", "dissectors", len(ds), "options", opts.String())

	meter := perfmeter.Start()
	results := make([]DissectorResult, len(ds))

	queue := make(chan int, opts.ParallelDissectors)
	var notify sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < opts.ParallelDissectors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				r := runGuarded(ctx, ds[idx], isDir, opts)
				results[idx] = r
				meter.Tick()
				if opts.OnDissectorDone != nil {
					notify.Lock()
					opts.OnDissectorDone(r)
					notify.Unlock()
				}
			}
		}()
	}
	for i := range ds {
		queue <- i
	}
	close(queue)
	wg.Wait()

	res.Elapsed = meter.Stop()
	res.Dissectors = results
	logger.Info("dissection finished", "dissectors", meter.Count(), "elapsed", res.Elapsed)

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Dissector, r.Err))
		}
	}
	return res, errors.Join(errs...)
}

// runGuarded keeps a dissector worker alive whatever happens to one
// dissector, so the remaining queue is still consumed.
func runGuarded(ctx context.Context, d *dissector.Dissector, isDir bool, opts Options) (res DissectorResult) {
	defer func() {
		if r := recover(); r != nil {
			res = DissectorResult{
				Dissector:  d.Slug(),
				OutputPath: opts.OutputPath(d.Slug()),
				ErrorPath:  opts.ErrorPath(d.Slug()),
				Err:        fmt.Errorf("dissector pipeline panicked: %v", r),
			}
		}
	}()
	if err := ctx.Err(); err != nil {
		return DissectorResult{
			Dissector:  d.Slug(),
			OutputPath: opts.OutputPath(d.Slug()),
			ErrorPath:  opts.ErrorPath(d.Slug()),
			Err:        err,
		}
	}
	return runDissector(ctx, d, isDir, opts)
}
