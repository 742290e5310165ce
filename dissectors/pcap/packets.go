// Package pcap dissects network captures in pcap and pcapng format.
package pcap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/netip"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"plasma/dissector"
	"plasma/identify"
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

func isCapture(path string) bool {
	return identify.IsPcap(path) || identify.IsPcapNG(path)
}

func selectCaptures(ctx context.Context, root string) iter.Seq[string] {
	return dissector.ScanMatching(ctx, root, isCapture)
}

// packets yields the decoded packets of a capture. Read failures other
// than a clean end of file are yielded once and end the sequence.
func packets(ctx context.Context, path string) iter.Seq2[gopacket.Packet, error] {
	return func(yield func(gopacket.Packet, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		r, err := newPacketReader(bufio.NewReader(f), identify.IsPcapNG(path))
		if err != nil {
			yield(nil, fmt.Errorf("open capture: %w", err))
			return
		}
		opts := gopacket.DecodeOptions{Lazy: true, NoCopy: true}
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			data, ci, err := r.ReadPacketData()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("read packet: %w", err))
				return
			}
			pkt := gopacket.NewPacket(data, r.LinkType(), opts)
			pkt.Metadata().CaptureInfo = ci
			if !yield(pkt, nil) {
				return
			}
		}
	}
}

func newPacketReader(r io.Reader, ng bool) (packetReader, error) {
	if ng {
		return pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(r)
}

type endpoint struct {
	addr netip.Addr
	port uint16
}

// flow extracts the transport endpoints of pkt. ok is false for packets
// without an IP network layer or a TCP/UDP transport layer.
func flow(pkt gopacket.Packet) (proto string, src, dst endpoint, ok bool) {
	switch nl := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		src.addr, _ = netip.AddrFromSlice(nl.SrcIP)
		dst.addr, _ = netip.AddrFromSlice(nl.DstIP)
	case *layers.IPv6:
		src.addr, _ = netip.AddrFromSlice(nl.SrcIP)
		dst.addr, _ = netip.AddrFromSlice(nl.DstIP)
	default:
		return "", src, dst, false
	}
	src.addr, dst.addr = src.addr.Unmap(), dst.addr.Unmap()

	switch tl := pkt.TransportLayer().(type) {
	case *layers.TCP:
		src.port, dst.port = uint16(tl.SrcPort), uint16(tl.DstPort)
		return "tcp", src, dst, true
	case *layers.UDP:
		src.port, dst.port = uint16(tl.SrcPort), uint16(tl.DstPort)
		return "udp", src, dst, true
	}
	return "", src, dst, false
}

func packetTime(pkt gopacket.Packet) string {
	return pkt.Metadata().Timestamp.UTC().Format(time.RFC3339Nano)
}

func Dissectors() []*dissector.Dissector {
	return []*dissector.Dissector{
		NewDNSQueries(),
		NewConversations(),
	}
}
