package pcap

import (
	"context"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"plasma/dissector"
)

var (
	client = net.IPv4(10, 0, 0, 2).To4()
	server = net.IPv4(10, 0, 0, 1).To4()
	epoch  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type frame struct {
	at   time.Duration
	data []byte
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
}

func ipv4(src, dst net.IP, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: proto, SrcIP: src, DstIP: dst}
}

func dnsFrame(t *testing.T, src, dst net.IP, sport, dport layers.UDPPort, response bool, qs ...layers.DNSQuestion) []byte {
	t.Helper()
	ip := ipv4(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: sport, DstPort: dport}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}
	msg := &layers.DNS{ID: 7, QR: response, OpCode: layers.DNSOpCodeQuery, RD: true, Questions: qs}
	return serialize(t, ethernet(), ip, udp, msg)
}

func tcpFrame(t *testing.T, src, dst net.IP, sport, dport layers.TCPPort, payload string) []byte {
	t.Helper()
	ip := ipv4(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: sport, DstPort: dport, Seq: 1, ACK: true, PSH: true, Window: 1024}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatal(err)
	}
	return serialize(t, ethernet(), ip, tcp, gopacket.Payload(payload))
}

func question(name string, typ layers.DNSType) layers.DNSQuestion {
	return layers.DNSQuestion{Name: []byte(name), Type: typ, Class: layers.DNSClassIN}
}

func sampleFrames(t *testing.T) []frame {
	return []frame{
		{0, dnsFrame(t, client, server, 40000, 53, false, question("example.com", layers.DNSTypeA))},
		{time.Second, dnsFrame(t, server, client, 53, 40000, true, question("example.com", layers.DNSTypeA))},
		{2 * time.Second, dnsFrame(t, client, server, 40000, 53, false,
			question("example.org", layers.DNSTypeAAAA), question("odd.example", layers.DNSType(999)))},
		{3 * time.Second, tcpFrame(t, client, server, 50000, 443, "hello")},
		{4 * time.Second, tcpFrame(t, server, client, 443, 50000, "hi!")},
	}
}

func writePcap(t *testing.T, path string, frames []frame) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatal(err)
	}
	for _, fr := range frames {
		ci := gopacket.CaptureInfo{Timestamp: epoch.Add(fr.at), CaptureLength: len(fr.data), Length: len(fr.data)}
		if err := w.WritePacket(ci, fr.data); err != nil {
			t.Fatal(err)
		}
	}
}

func writePcapNG(t *testing.T, path string, frames []frame) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatal(err)
	}
	for _, fr := range frames {
		ci := gopacket.CaptureInfo{Timestamp: epoch.Add(fr.at), CaptureLength: len(fr.data), Length: len(fr.data)}
		if err := w.WritePacket(ci, fr.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
}

func run(t *testing.T, d *dissector.Dissector, path string) ([]dissector.Record, []string) {
	t.Helper()
	dc := dissector.NewContext(d.Slug(), "host", path, path)
	var recs []dissector.Record
	for rec, err := range d.Dissect(context.Background(), dc) {
		if err != nil {
			t.Fatalf("%s: %v", d.Slug(), err)
		}
		recs = append(recs, rec)
	}
	return recs, dc.Errors()
}

func TestSelect_ByMagic(t *testing.T) {
	root := t.TempDir()
	writePcap(t, filepath.Join(root, "capture.pcap"), sampleFrames(t))
	writePcapNG(t, filepath.Join(root, "renamed.bin"), sampleFrames(t))
	if err := os.WriteFile(filepath.Join(root, "fake.pcap"), []byte("not a capture"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got []string
	for p := range NewDNSQueries().Select(context.Background(), root) {
		got = append(got, filepath.Base(p))
	}
	if len(got) != 2 || got[0] != "capture.pcap" || got[1] != "renamed.bin" {
		t.Errorf("selected = %v", got)
	}
}

func TestDNSQueries(t *testing.T) {
	for _, tc := range []struct {
		name  string
		write func(*testing.T, string, []frame)
	}{
		{"pcap", writePcap},
		{"pcapng", writePcapNG},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "capture")
			tc.write(t, path, sampleFrames(t))

			recs, errs := run(t, NewDNSQueries(), path)
			if len(errs) != 0 {
				t.Errorf("errors = %v", errs)
			}
			if len(recs) != 3 {
				t.Fatalf("records = %d, want 3: %v", len(recs), recs)
			}
			first := recs[0]
			if first["dns_r_name"] != "example.com" || first["dns_r_type"] != "A" {
				t.Errorf("first = %v", first)
			}
			if first["pkt_src_ip"] != netip.MustParseAddr("10.0.0.2") || first["pkt_dst_port"] != uint16(53) {
				t.Errorf("first endpoints = %v", first)
			}
			if first["pkt_time"] != "2026-03-01T12:00:00Z" {
				t.Errorf("pkt_time = %v", first["pkt_time"])
			}
			if recs[1]["dns_r_type"] != "AAAA" || recs[2]["dns_r_type"] != "unknown type 999" {
				t.Errorf("types = %v, %v", recs[1]["dns_r_type"], recs[2]["dns_r_type"])
			}
		})
	}
}

func TestConversations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	writePcap(t, path, sampleFrames(t))

	recs, _ := run(t, NewConversations(), path)
	if len(recs) != 2 {
		t.Fatalf("conversations = %d, want 2: %v", len(recs), recs)
	}

	udp := recs[0]
	if udp["conv_proto"] != "udp" || udp["conv_packets"] != int64(3) {
		t.Errorf("udp = %v", udp)
	}
	if udp["conv_src_ip"] != netip.MustParseAddr("10.0.0.2") || udp["conv_src_port"] != uint16(40000) {
		t.Errorf("udp source = %v", udp)
	}
	if udp["conv_first"] != "2026-03-01T12:00:00Z" || udp["conv_last"] != "2026-03-01T12:00:02Z" {
		t.Errorf("udp times = %v .. %v", udp["conv_first"], udp["conv_last"])
	}

	tcp := recs[1]
	if tcp["conv_proto"] != "tcp" || tcp["conv_packets"] != int64(2) || tcp["conv_bytes"] != int64(8) {
		t.Errorf("tcp = %v", tcp)
	}
	if tcp["conv_dst_port"] != uint16(443) {
		t.Errorf("tcp destination = %v", tcp)
	}
}

func TestDNSQueries_TruncatedCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcap")
	writePcap(t, path, sampleFrames(t))
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-10); err != nil {
		t.Fatal(err)
	}

	d := NewDNSQueries()
	dc := dissector.NewContext(d.Slug(), "host", path, path)
	var n int
	var failed bool
	for _, err := range d.Dissect(context.Background(), dc) {
		if err != nil {
			failed = true
			break
		}
		n++
	}
	if !failed {
		t.Error("expected a read error for a truncated capture")
	}
	if n != 3 {
		t.Errorf("records before the error = %d, want 3", n)
	}
}
