package pcap

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"plasma/dissector"
)

func NewDNSQueries() *dissector.Dissector {
	return dissector.New(dissector.Config{
		Slug:        "pcap_dns_queries",
		Tags:        []dissector.Tag{dissector.TagPcap},
		Description: "DNS queries from PCAP",
		Columns: dissector.Schema{
			{Name: "pkt_time", Type: dissector.TypeString},
			{Name: "pkt_src_ip", Type: dissector.TypeInet},
			{Name: "pkt_src_port", Type: dissector.TypeInt},
			{Name: "pkt_dst_ip", Type: dissector.TypeInet},
			{Name: "pkt_dst_port", Type: dissector.TypeInt},
			{Name: "dns_r_name", Type: dissector.TypeString},
			{Name: "dns_r_type", Type: dissector.TypeString},
		},
		Select:  selectCaptures,
		Dissect: dissectDNSQueries,
	})
}

func dissectDNSQueries(ctx context.Context, dc *dissector.Context) iter.Seq2[dissector.Record, error] {
	return func(yield func(dissector.Record, error) bool) {
		undecodable := 0
		defer func() {
			if undecodable > 0 {
				dc.RegisterErrorf("skipped %d undecodable DNS packets", undecodable)
			}
		}()

		for pkt, err := range packets(ctx, dc.Path) {
			if err != nil {
				yield(nil, err)
				return
			}
			layer := pkt.Layer(layers.LayerTypeDNS)
			if layer == nil {
				if pkt.ErrorLayer() != nil && onDNSPort(pkt) {
					undecodable++
				}
				continue
			}
			msg := layer.(*layers.DNS)
			if msg.QR || len(msg.Questions) == 0 {
				continue
			}
			_, src, dst, ok := flow(pkt)
			if !ok {
				continue
			}
			for _, q := range msg.Questions {
				rec := dissector.Record{
					"pkt_time":     packetTime(pkt),
					"pkt_src_ip":   src.addr,
					"pkt_src_port": src.port,
					"pkt_dst_ip":   dst.addr,
					"pkt_dst_port": dst.port,
					"dns_r_name":   string(q.Name),
					"dns_r_type":   dnsType(q.Type),
				}
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

func dnsType(t layers.DNSType) string {
	if s := t.String(); s != "Unknown" {
		return s
	}
	return fmt.Sprintf("unknown type %d", uint16(t))
}

func onDNSPort(pkt gopacket.Packet) bool {
	_, src, dst, ok := flow(pkt)
	return ok && (src.port == 53 || dst.port == 53)
}
