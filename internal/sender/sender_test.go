package sender

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

type fakeWriter struct {
	written [][]byte
}

func (f *fakeWriter) WritePacketData(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.written = append(f.written, cp)
	return nil
}

func TestARP_RequestBroadcastsWhenNoTargetHW(t *testing.T) {
	w := &fakeWriter{}
	senderHW, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	senderIP := net.ParseIP("10.0.0.5")
	targetIP := net.ParseIP("10.0.0.1")

	if err := ARP(w, layers.ARPRequest, senderHW, senderIP, nil, targetIP); err != nil {
		t.Fatalf("ARP: %v", err)
	}
	if len(w.written) != 1 {
		t.Fatalf("expected one frame written, got %d", len(w.written))
	}

	pkt := gopacket.NewPacket(w.written[0], layers.LayerTypeEthernet, gopacket.Default)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		t.Fatalf("expected an ARP layer in the serialized frame")
	}
	arp := arpLayer.(*layers.ARP)
	if net.HardwareAddr(arp.DstHwAddress).String() != broadcastMAC.String() {
		t.Fatalf("expected broadcast dst hw, got %v", net.HardwareAddr(arp.DstHwAddress))
	}
	if net.IP(arp.DstProtAddress).String() != "10.0.0.1" {
		t.Fatalf("unexpected target ip: %v", net.IP(arp.DstProtAddress))
	}
}

func TestARP_ReplyRequiresTargetHW(t *testing.T) {
	w := &fakeWriter{}
	senderHW, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	senderIP := net.ParseIP("10.0.0.5")
	targetIP := net.ParseIP("10.0.0.1")

	err := ARP(w, layers.ARPReply, senderHW, senderIP, nil, targetIP)
	if err == nil {
		t.Fatalf("expected error when targetHW is nil for a reply")
	}
}

func TestARP_ReplyUnicastsToTarget(t *testing.T) {
	w := &fakeWriter{}
	senderHW, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	targetHW, _ := net.ParseMAC("11:22:33:44:55:66")
	senderIP := net.ParseIP("10.0.0.1")
	targetIP := net.ParseIP("10.0.0.5")

	if err := ARP(w, layers.ARPReply, senderHW, senderIP, targetHW, targetIP); err != nil {
		t.Fatalf("ARP: %v", err)
	}

	pkt := gopacket.NewPacket(w.written[0], layers.LayerTypeEthernet, gopacket.Default)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if eth.DstMAC.String() != targetHW.String() {
		t.Fatalf("expected unicast dst mac %v, got %v", targetHW, eth.DstMAC)
	}
}
