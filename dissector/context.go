package dissector

import (
	"fmt"
	"iter"
	"slices"
)

// Context is the unit of work for one (dissector, target) pair. It is
// owned by a single extraction worker until handed to the error sink.
type Context struct {
	Dissector string
	Hostname  string
	Source    string
	Path      string

	errors []string
}

func NewContext(dissector, hostname, source, path string) *Context {
	return &Context{
		Dissector: dissector,
		Hostname:  hostname,
		Source:    source,
		Path:      path,
	}
}

// RegisterError records a non-fatal error for this target.
func (c *Context) RegisterError(msg string) {
	c.errors = append(c.errors, msg)
}

func (c *Context) RegisterErrorf(format string, args ...any) {
	c.RegisterError(fmt.Sprintf(format, args...))
}

func (c *Context) Errors() []string { return slices.Clone(c.errors) }

// ErrorRecords yields one error-schema record per registered error and
// nothing when no error was registered.
func (c *Context) ErrorRecords() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, msg := range c.errors {
			rec := Record{
				"dissector": c.Dissector,
				"source":    c.Source,
				"message":   msg,
			}
			if !yield(rec) {
				return
			}
		}
	}
}
