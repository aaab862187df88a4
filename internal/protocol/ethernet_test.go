package protocol

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func TestDecodeEthernet_RoundTrip(t *testing.T) {
	src, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	dst, _ := net.ParseMAC("11:22:33:44:55:66")
	eth := layers.Ethernet{SrcMAC: src, DstMAC: dst, EthernetType: layers.EthernetTypeIPv4}
	payload := gopacket.Payload([]byte{1, 2, 3, 4})

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, &eth, &payload); err != nil {
		t.Fatalf("serializing: %v", err)
	}

	got, err := DecodeEthernet(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeEthernet: %v", err)
	}
	if got.SrcMAC.String() != src.String() || got.DstMAC.String() != dst.String() {
		t.Fatalf("unexpected macs: %+v", got)
	}
	if got.EtherType != EtherTypeIPv4 {
		t.Fatalf("expected ipv4 ethertype, got %#x", got.EtherType)
	}
	if string(got.Payload) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected payload: %v", got.Payload)
	}
}

func TestDecodeEthernet_Truncated(t *testing.T) {
	if _, err := DecodeEthernet([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error on truncated frame")
	}
}
