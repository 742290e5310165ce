// Package extension loads line-oriented regexp dissectors described by
// YAML rule manifests.
//
// A manifest looks like:
//
//	slug: linux_hosts
//	description: static host table
//	tags: [linux]
//	pattern: hosts
//	regexp: '^(?P<host_addr>\S+)\s+(?P<host_name>\S+)'
//	columns:
//	  - name: host_addr
//	    type: inet
//	  - name: host_name
//	    type: str
package extension

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"plasma/dissector"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

type ColumnSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type Manifest struct {
	Slug        string       `yaml:"slug"`
	Description string       `yaml:"description,omitempty"`
	Tags        []string     `yaml:"tags"`
	Pattern     string       `yaml:"pattern"`
	Regexp      string       `yaml:"regexp"`
	Columns     []ColumnSpec `yaml:"columns"`
}

// rule is a validated manifest, ready to become a dissector.
type rule struct {
	manifest Manifest
	tags     []dissector.Tag
	re       *regexp.Regexp
	schema   dissector.Schema
	groups   []int
}

// ParseManifest decodes a manifest, rejecting unknown fields.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	return ParseManifest(data)
}

func (m Manifest) compile() (*rule, error) {
	if !slugPattern.MatchString(m.Slug) {
		return nil, fmt.Errorf("invalid slug %q", m.Slug)
	}
	if m.Pattern == "" {
		return nil, errors.New("missing pattern")
	}
	if _, err := filepath.Match(m.Pattern, ""); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", m.Pattern, err)
	}
	if len(m.Tags) == 0 {
		return nil, errors.New("missing tags")
	}
	if len(m.Columns) == 0 {
		return nil, errors.New("missing columns")
	}

	r := &rule{manifest: m}
	for _, t := range m.Tags {
		tag := dissector.Tag(t)
		if !slices.Contains(dissector.KnownTags, tag) {
			return nil, fmt.Errorf("unknown tag %q", t)
		}
		r.tags = append(r.tags, tag)
	}

	re, err := regexp.Compile(m.Regexp)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}
	r.re = re

	seen := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		typ, err := dissector.ParseType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		idx := re.SubexpIndex(c.Name)
		if idx < 0 {
			return nil, fmt.Errorf("column %q has no named group in regexp", c.Name)
		}
		r.schema = append(r.schema, dissector.Column{Name: c.Name, Type: typ})
		r.groups = append(r.groups, idx)
	}
	return r, nil
}
