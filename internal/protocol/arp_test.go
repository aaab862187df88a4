package protocol

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func TestDecodeARP_RoundTrip(t *testing.T) {
	senHW, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	tarHW, _ := net.ParseMAC("11:22:33:44:55:66")
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   senHW,
		SourceProtAddress: net.ParseIP("10.0.0.1").To4(),
		DstHwAddress:      tarHW,
		DstProtAddress:    net.ParseIP("10.0.0.5").To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, &arp); err != nil {
		t.Fatalf("serializing: %v", err)
	}

	got, err := DecodeARP(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeARP: %v", err)
	}
	if got.Operation != ARPReply {
		t.Fatalf("expected reply op, got %d", got.Operation)
	}
	if got.SourceProtAddr.String() != "10.0.0.1" || got.DstProtAddr.String() != "10.0.0.5" {
		t.Fatalf("unexpected addrs: %+v", got)
	}
	if got.SourceHwAddr.String() != senHW.String() {
		t.Fatalf("unexpected source hw: %v", got.SourceHwAddr)
	}
}

func TestDecodeARP_RejectsNonEthernetIPv4(t *testing.T) {
	b := make([]byte, 28)
	b[1] = 1 // hwType=1
	b[3] = 0x08 // protoType garbage, not 0x0800
	b[4] = 6
	b[5] = 4
	if _, err := DecodeARP(b); err == nil {
		t.Fatalf("expected rejection of non-ipv4 arp")
	}
}
