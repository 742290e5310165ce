package dissector

import (
	"bufio"
	"context"
	"iter"
	"os"
	"strings"
)

const maxLineBytes = 1 << 20

// Lines yields the lines of path without their trailing newline. An open
// or read failure is yielded once as the error and ends the sequence.
func Lines(ctx context.Context, path string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield("", err)
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		for sc.Scan() {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(strings.TrimSuffix(sc.Text(), "\r"), nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield("", err)
		}
	}
}
