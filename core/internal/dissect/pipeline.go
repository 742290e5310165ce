package dissect

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"plasma/dissector"
	"plasma/perfmeter"
	"plasma/sinks"
)

// recordQueueSize bounds the records buffered between extraction workers
// and the record sink.
const recordQueueSize = 50

const cancelledMessage = "dissection cancelled before this target was processed"

// runDissector drives one dissector through its four stages:
//
//	selection -> pending -> N extraction workers -> records -> record sink
//	                                             \-> completed -> error sink
//
// Every channel has a single closer, and each close happens on every exit
// path of the stage that owns it: pending by the selection stage, records
// once all extraction workers returned, completed once the record sink
// returned. Sinks keep draining their channel after a failure so no
// upstream stage can block forever.
func runDissector(ctx context.Context, d *dissector.Dissector, isDir bool, opts Options) DissectorResult {
	meter := perfmeter.Start()
	res := DissectorResult{
		Dissector:  d.Slug(),
		OutputPath: opts.OutputPath(d.Slug()),
		ErrorPath:  opts.ErrorPath(d.Slug()),
	}
	logger := opts.Logger.With("dissector", d.Slug())

	workers := opts.ParallelExtractors
	pending := make(chan *dissector.Context, workers)
	records := make(chan dissector.Record, recordQueueSize)
	completed := make(chan *dissector.Context, workers)

	var extracted atomic.Int64
	var written, errWritten int64

	g, gctx := errgroup.WithContext(dissector.WithLogger(ctx, logger))

	g.Go(func() (err error) {
		defer close(pending)
		defer recoverStage("selection", &err)

		for target := range targets(gctx, d, opts.Target, isDir) {
			dc := dissector.NewContext(d.Slug(), opts.Hostname, target, target)
			select {
			case pending <- dc:
				meter.Tick()
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var extractors sync.WaitGroup
	for i := 0; i < workers; i++ {
		extractors.Add(1)
		g.Go(func() error {
			defer extractors.Done()
			for dc := range pending {
				if gctx.Err() != nil {
					dc.RegisterError(cancelledMessage)
				} else {
					extracted.Add(extract(gctx, d, dc, records))
				}
				completed <- dc
			}
			return nil
		})
	}
	g.Go(func() error {
		extractors.Wait()
		close(records)
		return nil
	})

	recordSinkDone := make(chan struct{})
	g.Go(func() (err error) {
		defer close(recordSinkDone)
		defer drain(records)
		defer recoverStage("record sink", &err)

		written, err = sinks.Write(res.OutputPath, d.Schema().Names(), opts.Format, opts.Compression, receive(records))
		if err != nil {
			return fmt.Errorf("write records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-recordSinkDone
		close(completed)
		return nil
	})

	g.Go(func() (err error) {
		defer drain(completed)
		defer recoverStage("error sink", &err)

		errWritten, err = sinks.Write(res.ErrorPath, d.ErrorSchema().Names(), opts.Format, opts.Compression, errorRecords(completed))
		if err != nil {
			return fmt.Errorf("write errors: %w", err)
		}
		return nil
	})

	res.Err = g.Wait()
	if res.Err == nil && ctx.Err() != nil {
		res.Err = ctx.Err()
	}
	res.Elapsed = meter.Stop()
	res.Targets = meter.Count()
	res.Records = written
	res.ErrorRecords = errWritten

	if res.Err != nil {
		logger.Error("dissector failed", "targets", res.Targets, "records", written, "error", res.Err)
	} else if extracted.Load() != written {
		logger.Warn("record count mismatch", "extracted", extracted.Load(), "written", written)
	}
	logger.Info("dissector finished",
		"targets", res.Targets,
		"records", res.Records,
		"errors", res.ErrorRecords,
		"elapsed", res.Elapsed)
	return res
}

func targets(ctx context.Context, d *dissector.Dissector, root string, isDir bool) iter.Seq[string] {
	if !isDir {
		return func(yield func(string) bool) { yield(root) }
	}
	return d.Select(ctx, root)
}

// extract runs one target to completion and forwards its records. A yielded
// error or a panic ends the target and is registered on dc.
func extract(ctx context.Context, d *dissector.Dissector, dc *dissector.Context, out chan<- dissector.Record) (n int64) {
	defer func() {
		if r := recover(); r != nil {
			dc.RegisterErrorf("dissector panicked: %v", r)
		}
	}()

	for rec, err := range d.Dissect(ctx, dc) {
		if err != nil {
			dc.RegisterError(err.Error())
			return n
		}
		if rec == nil {
			continue
		}
		out <- rec
		n++
	}
	return n
}

func receive[T any](ch <-chan T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range ch {
			if !yield(v) {
				return
			}
		}
	}
}

func errorRecords(ch <-chan *dissector.Context) iter.Seq[dissector.Record] {
	return func(yield func(dissector.Record) bool) {
		for dc := range ch {
			for rec := range dc.ErrorRecords() {
				if !yield(rec) {
					return
				}
			}
		}
	}
}

func drain[T any](ch <-chan T) {
	for range ch {
	}
}

func recoverStage(stage string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s stage panicked: %v", stage, r)
	}
}
