package protocol

import (
	"encoding/binary"
	"errors"
	"net"
)

const (
	ARPRequest = 1
	ARPReply   = 2
)

// ARP is the decoded subset of an ARP packet body this inspector needs:
// Ethernet/IPv4 ARP only (hardware type 1, protocol type IPv4).
type ARP struct {
	Operation      uint16
	SourceHwAddr   net.HardwareAddr
	SourceProtAddr net.IP
	DstHwAddr      net.HardwareAddr
	DstProtAddr    net.IP
}

// DecodeARP parses the 28-byte Ethernet/IPv4 ARP body (the payload
// following the Ethernet header). Any other hardware/protocol combination
// is rejected, since this inspector only operates over Ethernet/IPv4.
func DecodeARP(b []byte) (ARP, error) {
	if len(b) < 28 {
		return ARP{}, errTruncated
	}
	hwType := binary.BigEndian.Uint16(b[0:2])
	protoType := binary.BigEndian.Uint16(b[2:4])
	hwLen := b[4]
	protoLen := b[5]
	if hwType != 1 || protoType != EtherTypeIPv4 || hwLen != 6 || protoLen != 4 {
		return ARP{}, errors.New("unsupported arp hardware/protocol combination")
	}
	return ARP{
		Operation:      binary.BigEndian.Uint16(b[6:8]),
		SourceHwAddr:   net.HardwareAddr(append([]byte(nil), b[8:14]...)),
		SourceProtAddr: net.IP(append([]byte(nil), b[14:18]...)),
		DstHwAddr:      net.HardwareAddr(append([]byte(nil), b[18:24]...)),
		DstProtAddr:    net.IP(append([]byte(nil), b[24:28]...)),
	}, nil
}
