// Package sender builds and writes raw ARP frames to a pcap handle. It is
// the one place gopacket/layers is used to construct wire bytes (spec
// §4.G note: decoding is hand-rolled in internal/protocol, but
// construction of outbound ARP frames still leans on layers.Ethernet /
// layers.ARP + gopacket.SerializeLayers, the same as the teacher's
// SendArp).
package sender

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// Writer is the narrow pcap handle surface this package needs, so tests
// can supply a fake instead of opening a real NIC.
type Writer interface {
	WritePacketData(data []byte) error
}

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ARP serializes and writes a single ARP request or reply frame.
//
// For requests, targetHW may be nil (resolved via broadcast). For replies,
// targetHW is required — ARP replies are unicast.
func ARP(w Writer, op layers.ARPOperation, senderHW net.HardwareAddr, senderIP net.IP, targetHW net.HardwareAddr, targetIP net.IP) error {
	if targetHW == nil {
		if op == layers.ARPReply {
			return errors.New("arp replies require a target hardware address")
		}
		targetHW = broadcastMAC
	}

	eth := layers.Ethernet{
		SrcMAC:       senderHW,
		DstMAC:       targetHW,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         uint16(op),
		SourceHwAddress:   senderHW,
		SourceProtAddress: senderIP.To4(),
		DstHwAddress:      targetHW,
		DstProtAddress:    targetIP.To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return fmt.Errorf("serializing arp frame: %w", err)
	}
	if err := w.WritePacketData(buf.Bytes()); err != nil {
		return fmt.Errorf("writing arp frame: %w", err)
	}
	return nil
}

// OpenLive is a thin wrapper so callers depend on sender.Writer instead of
// pcap.Handle directly.
func OpenLive(iface string, snaplen int32, promisc bool) (*pcap.Handle, error) {
	return pcap.OpenLive(iface, snaplen, promisc, pcap.BlockForever)
}
