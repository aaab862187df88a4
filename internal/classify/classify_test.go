package classify

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/capture"
	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/protocol"
)

type recordingDispatcher struct {
	arpCalls  int
	dhcpCalls int
	dnsCalls  int
	tlsCalls  int
	flowCalls int
}

func (r *recordingDispatcher) ARP(ctx context.Context, frame protocol.ARP, addrs netstate.Addresses) {
	r.arpCalls++
}
func (r *recordingDispatcher) DHCP(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, udp protocol.UDP, addrs netstate.Addresses) {
	r.dhcpCalls++
}
func (r *recordingDispatcher) DNS(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, udp protocol.UDP, addrs netstate.Addresses) {
	r.dnsCalls++
}
func (r *recordingDispatcher) TLSSNI(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, payload []byte, addrs netstate.Addresses) {
	r.tlsCalls++
}
func (r *recordingDispatcher) Flow(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, proto string, srcPort, dstPort int, tcpSeq *uint32, byteLen int, addrs netstate.Addresses) {
	r.flowCalls++
}

func buildARPFrame(t *testing.T) []byte {
	t.Helper()
	src, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	eth := layers.Ethernet{SrcMAC: src, DstMAC: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, EthernetType: layers.EthernetTypeARP}
	arp := layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: src, SourceProtAddress: net.ParseIP("10.0.0.9").To4(),
		DstHwAddress: net.HardwareAddr{0, 0, 0, 0, 0, 0}, DstProtAddress: net.ParseIP("10.0.0.1").To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, &eth, &arp); err != nil {
		t.Fatalf("serializing arp: %v", err)
	}
	return buf.Bytes()
}

func buildTCPFrame(t *testing.T, srcMAC, dstMAC, srcIP, dstIP string, srcPort, dstPort int) []byte {
	t.Helper()
	smac, _ := net.ParseMAC(srcMAC)
	dmac, _ := net.ParseMAC(dstMAC)
	eth := layers.Ethernet{SrcMAC: smac, DstMAC: dmac, EthernetType: layers.EthernetTypeIPv4}
	ip := layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.ParseIP(srcIP).To4(), DstIP: net.ParseIP(dstIP).To4()}
	tcp := layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), Seq: 100, DataOffset: 5}
	tcp.SetNetworkLayerForChecksum(&ip)
	payload := gopacket.Payload([]byte("x"))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &tcp, &payload); err != nil {
		t.Fatalf("serializing tcp: %v", err)
	}
	return buf.Bytes()
}

func testState() *netstate.State {
	st := netstate.New()
	st.SetAddresses(netstate.Addresses{HostIP: "10.0.0.5", HostMAC: "aa:bb:cc:dd:ee:ff"})
	return st
}

func TestDrain_DispatchesARP(t *testing.T) {
	q := capture.NewQueue(4)
	q.Push(buildARPFrame(t))
	d := &recordingDispatcher{}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go Drain(ctx, q, testState(), d, zap.NewNop())
	time.Sleep(20 * time.Millisecond)
	cancel()

	if d.arpCalls != 1 {
		t.Fatalf("expected 1 arp call, got %d", d.arpCalls)
	}
}

func TestDrain_DropsHostOriginatedTraffic(t *testing.T) {
	q := capture.NewQueue(4)
	// Traffic from the host itself must be dropped per spec §4.F step 3.
	q.Push(buildTCPFrame(t, "aa:bb:cc:dd:ee:ff", "11:22:33:44:55:66", "10.0.0.5", "10.0.0.9", 55001, 443))
	d := &recordingDispatcher{}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go Drain(ctx, q, testState(), d, zap.NewNop())
	time.Sleep(20 * time.Millisecond)
	cancel()

	if d.flowCalls != 0 {
		t.Fatalf("expected host-originated traffic to be dropped, got %d flow calls", d.flowCalls)
	}
}

func TestDrain_DispatchesFlowForThirdPartyTCP(t *testing.T) {
	q := capture.NewQueue(4)
	q.Push(buildTCPFrame(t, "99:99:99:99:99:99", "aa:bb:cc:dd:ee:ff", "10.0.0.9", "10.0.0.10", 55001, 443))
	d := &recordingDispatcher{}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go Drain(ctx, q, testState(), d, zap.NewNop())
	time.Sleep(20 * time.Millisecond)
	cancel()

	if d.flowCalls != 1 {
		t.Fatalf("expected 1 flow call, got %d", d.flowCalls)
	}
}
