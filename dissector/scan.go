package dissector

import (
	"context"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
)

type loggerKey struct{}

// WithLogger returns a context whose discovery and extraction helpers log
// through logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger carried by ctx, or slog.Default.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// openFile is swapped in tests to simulate unreadable files.
var openFile = func(path string) (*os.File, error) { return os.Open(path) }

// Scan walks root and yields regular, readable files whose base name
// matches the glob pattern. Unreadable files and directories are logged
// and skipped through the logger carried by ctx; the walk never aborts
// on them.
func Scan(ctx context.Context, root, pattern string) iter.Seq[string] {
	return ScanWithLogger(ctx, Logger(ctx), root, pattern)
}

func ScanWithLogger(ctx context.Context, logger *slog.Logger, root, pattern string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if walkErr != nil {
				logger.Error("cannot access path, skipping", "path", path, "error", walkErr)
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if ok, err := filepath.Match(pattern, d.Name()); err != nil || !ok {
				return nil
			}
			f, err := openFile(path)
			if err != nil {
				logger.Error("permission denied, skipping", "path", path, "error", err)
				return nil
			}
			_ = f.Close()
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// ScanAny yields files matching any of the patterns, each file at most once.
func ScanAny(ctx context.Context, root string, patterns ...string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for _, pattern := range patterns {
			for path := range Scan(ctx, root, pattern) {
				if _, ok := seen[path]; ok {
					continue
				}
				seen[path] = struct{}{}
				if !yield(path) {
					return
				}
			}
		}
	}
}

// ScanMatching yields files under root for which match returns true.
func ScanMatching(ctx context.Context, root string, match func(path string) bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		for path := range Scan(ctx, root, "*") {
			if !match(path) {
				continue
			}
			if !yield(path) {
				return
			}
		}
	}
}
