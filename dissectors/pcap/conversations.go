package pcap

import (
	"context"
	"iter"
	"time"

	"github.com/google/gopacket"

	"plasma/dissector"
)

func NewConversations() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "pcap_conversations",
		Tags:        []dissector.Tag{dissector.TagPcap},
		Description: "TCP and UDP conversations from PCAP",
		Columns: dissector.Schema{
			{Name: "conv_proto", Type: dissector.TypeString},
			{Name: "conv_src_ip", Type: dissector.TypeInet},
			{Name: "conv_src_port", Type: dissector.TypeInt},
			{Name: "conv_dst_ip", Type: dissector.TypeInet},
			{Name: "conv_dst_port", Type: dissector.TypeInt},
			{Name: "conv_packets", Type: dissector.TypeInt},
			{Name: "conv_bytes", Type: dissector.TypeInt},
			{Name: "conv_first", Type: dissector.TypeString},
			{Name: "conv_last", Type: dissector.TypeString},
		},
		Select:  selectCaptures,
		Dissect: dissectConversations,
	})
}

type convKey struct {
	proto    string
	src, dst endpoint
}

// conversation aggregates both directions between two endpoints. src is
// the endpoint that sent the first packet seen.
type conversation struct {
	key         convKey
	packets     int64
	bytes       int64
	first, last time.Time
}

func (c *conversation) add(pkt gopacket.Packet) {
	ts := pkt.Metadata().Timestamp
	if c.packets == 0 || ts.Before(c.first) {
		c.first = ts
	}
	if ts.After(c.last) {
		c.last = ts
	}
	c.packets++
	if tl := pkt.TransportLayer(); tl != nil {
		c.bytes += int64(len(tl.LayerPayload()))
	}
}

func (c *conversation) record() dissector.Record {
	return dissector.Record{
		"conv_proto":    c.key.proto,
		"conv_src_ip":   c.key.src.addr,
		"conv_src_port": c.key.src.port,
		"conv_dst_ip":   c.key.dst.addr,
		"conv_dst_port": c.key.dst.port,
		"conv_packets":  c.packets,
		"conv_bytes":    c.bytes,
		"conv_first":    c.first.UTC().Format(time.RFC3339Nano),
		"conv_last":     c.last.UTC().Format(time.RFC3339Nano),
	}
}

// dissectConversations emits conversations in the order they were first
// seen, once the whole capture has been read.
func dissectConversations(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		convs := make(map[convKey]*conversation)
		var order []*conversation

		for pkt, err := range packets(ctx, dc.Path) {
			if err != nil {
				yield(nil, err)
				return
			}
			proto, src, dst, ok := flow(pkt)
			if !ok {
				continue
			}
			key := convKey{proto: proto, src: src, dst: dst}
			c, found := convs[key]
			if !found {
				c, found = convs[convKey{proto: proto, src: dst, dst: src}]
			}
			if !found {
				c = &conversation{key: key}
				convs[key] = c
				order = append(order, c)
			}
			c.add(pkt)
		}

		for _, c := range order {
			if !yield(c.record(), nil) {
				return
			}
		}
	}
}
