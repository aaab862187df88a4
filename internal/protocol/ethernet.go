// Package protocol hand-rolls the small set of header decoders this
// inspector needs: Ethernet, ARP, IPv4, TCP, UDP, DNS, and a minimal TLS
// ClientHello/SNI walker. None of it reaches for gopacket/layers — the
// classifier only ever needs a handful of fixed-offset fields out of each
// frame, not a full protocol stack (spec §9 REDESIGN FLAG: "re-implement
// as a small decoder targeting only the fields the classifier/handlers
// need").
package protocol

import (
	"encoding/binary"
	"errors"
	"net"
)

var errTruncated = errors.New("protocol: frame truncated")

const (
	EtherTypeIPv4 = 0x0800
	EtherTypeARP  = 0x0806
)

// Ethernet is the decoded 14-byte Ethernet II header.
type Ethernet struct {
	DstMAC    net.HardwareAddr
	SrcMAC    net.HardwareAddr
	EtherType uint16
	Payload   []byte
}

// DecodeEthernet parses the fixed 14-byte Ethernet header. It does not
// understand 802.1Q tags; none of this inspector's traffic is expected to
// carry them (LAN host traffic, not a trunk port).
func DecodeEthernet(b []byte) (Ethernet, error) {
	if len(b) < 14 {
		return Ethernet{}, errTruncated
	}
	return Ethernet{
		DstMAC:    net.HardwareAddr(append([]byte(nil), b[0:6]...)),
		SrcMAC:    net.HardwareAddr(append([]byte(nil), b[6:12]...)),
		EtherType: binary.BigEndian.Uint16(b[12:14]),
		Payload:   b[14:],
	}, nil
}
