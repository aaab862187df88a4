package protocol

import (
	"encoding/binary"
	"net"
)

const (
	ProtoTCP = 6
	ProtoUDP = 17
)

// IPv4 is the decoded subset of an IPv4 header this inspector needs. IHL
// options, if present, are skipped over; this inspector never inspects
// them.
type IPv4 struct {
	Protocol uint8
	SrcIP    net.IP
	DstIP    net.IP
	Payload  []byte
}

// DecodeIPv4 parses an IPv4 header (including variable-length options) and
// returns the payload starting at the transport layer.
func DecodeIPv4(b []byte) (IPv4, error) {
	if len(b) < 20 {
		return IPv4{}, errTruncated
	}
	version := b[0] >> 4
	if version != 4 {
		return IPv4{}, errTruncated
	}
	ihl := int(b[0]&0x0f) * 4
	if ihl < 20 || len(b) < ihl {
		return IPv4{}, errTruncated
	}
	totalLen := int(binary.BigEndian.Uint16(b[2:4]))
	end := len(b)
	if totalLen > 0 && totalLen <= len(b) {
		end = totalLen
	}
	return IPv4{
		Protocol: b[9],
		SrcIP:    net.IP(append([]byte(nil), b[12:16]...)),
		DstIP:    net.IP(append([]byte(nil), b[16:20]...)),
		Payload:  b[ihl:end],
	}, nil
}
