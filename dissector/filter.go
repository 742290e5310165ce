package dissector

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownAttribute = errors.New("unknown filter attribute")

// FilterAttributes lists the attributes a filter can match on.
var FilterAttributes = []string{"slug", "tags"}

var attributeGetters = map[string]func(d *Dissector) []string{
	"slug": func(d *Dissector) []string { return []string{d.slug} },
	"tags": func(d *Dissector) []string {
		out := make([]string, len(d.tags))
		for i, t := range d.tags {
			out[i] = string(t)
		}
		return out
	},
}

// Filter accepts dissectors whose attribute values intersect Include.
type Filter struct {
	attribute string
	include   map[string]struct{}
	getter    func(d *Dissector) []string
}

func NewFilter(attribute string, values ...string) (Filter, error) {
	getter, ok := attributeGetters[attribute]
	if !ok {
		return Filter{}, fmt.Errorf("%w %q, available attributes are %s",
			ErrUnknownAttribute, attribute, strings.Join(FilterAttributes, ", "))
	}
	include := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			include[v] = struct{}{}
		}
	}
	return Filter{attribute: attribute, include: include, getter: getter}, nil
}

// ParseFilter parses "attribute:value1,value2", e.g. "tags:linux" or
// "slug:linux_resolv,pcap_dns_queries".
func ParseFilter(spec string) (Filter, error) {
	attribute, values, ok := strings.Cut(spec, ":")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q, expected attribute:value[,value...]", spec)
	}
	return NewFilter(strings.TrimSpace(attribute), strings.Split(values, ",")...)
}

func (f Filter) Attribute() string { return f.attribute }

func (f Filter) Accept(d *Dissector) bool {
	if f.getter == nil {
		return false
	}
	for _, v := range f.getter(d) {
		if _, ok := f.include[v]; ok {
			return true
		}
	}
	return false
}

// Apply keeps accepted dissectors, preserving order.
func (f Filter) Apply(ds []*Dissector) []*Dissector {
	var out []*Dissector
	for _, d := range ds {
		if f.Accept(d) {
			out = append(out, d)
		}
	}
	return out
}
