// Package dissector holds the plugin abstraction shared by the engine and
// every built-in or extension dissector: schemas, descriptors, the
// registry, selection filters and per-target dissection contexts.
package dissector

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
)

type Tag string

const (
	TagGeneric    Tag = "generic"
	TagLinux      Tag = "linux"
	TagWindows    Tag = "windows"
	TagDarwin     Tag = "darwin"
	TagAndroid    Tag = "android"
	TagIOS        Tag = "ios"
	TagPcap       Tag = "pcap"
	TagMemdump    Tag = "memdump"
	TagExecutable Tag = "executable"
)

// KnownTags lists the tags in display order.
var KnownTags = []Tag{
	TagGeneric, TagLinux, TagWindows, TagDarwin, TagAndroid, TagIOS,
	TagPcap, TagMemdump, TagExecutable,
}

// SelectFunc lazily enumerates target files found under root.
type SelectFunc func(ctx context.Context, root string) iter.Seq[string]

// DissectFunc lazily extracts records from the target referenced by dc.
// A non-nil error ends extraction for that target.
type DissectFunc func(ctx context.Context, dc *Context) iter.Seq2[Record, error]

type Config struct {
	Slug        string
	Tags        []Tag
	Columns     Schema
	Description string
	Select      SelectFunc
	Dissect     DissectFunc
}

// Dissector is an immutable plugin descriptor.
type Dissector struct {
	slug        string
	tags        []Tag
	schema      Schema
	description string
	selectFn    SelectFunc
	dissectFn   DissectFunc
}

// New builds a descriptor. Invalid configurations are programming errors
// and panic.
func New(cfg Config) *Dissector {
	if cfg.Slug == "" {
		panic("dissector: empty slug")
	}
	if cfg.Select == nil || cfg.Dissect == nil {
		panic(fmt.Sprintf("dissector %s: nil select or dissect func", cfg.Slug))
	}
	if err := cfg.Columns.validate(); err != nil {
		panic(fmt.Sprintf("dissector %s: %v", cfg.Slug, err))
	}

	tags := slices.Clone(cfg.Tags)
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	tags = slices.Compact(tags)

	return &Dissector{
		slug:        cfg.Slug,
		tags:        tags,
		schema:      slices.Clone(cfg.Columns),
		description: cfg.Description,
		selectFn:    cfg.Select,
		dissectFn:   cfg.Dissect,
	}
}

func (d *Dissector) Slug() string        { return d.slug }
func (d *Dissector) Description() string { return d.description }
func (d *Dissector) Tags() []Tag         { return slices.Clone(d.tags) }
func (d *Dissector) Schema() Schema      { return slices.Clone(d.schema) }
func (d *Dissector) ErrorSchema() Schema { return slices.Clone(errorSchema) }

func (d *Dissector) HasTag(t Tag) bool {
	return slices.Contains(d.tags, t)
}

// Select enumerates the targets of this dissector under a directory.
func (d *Dissector) Select(ctx context.Context, root string) iter.Seq[string] {
	return d.selectFn(ctx, root)
}

// Dissect extracts records from a single target.
func (d *Dissector) Dissect(ctx context.Context, dc *Context) iter.Seq2[Record, error] {
	return d.dissectFn(ctx, dc)
}
