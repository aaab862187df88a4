package protocol

import "encoding/binary"

// TCP is the decoded subset of a TCP header this inspector needs: ports
// and the sequence number for flow min/max tracking (spec §4.G).
type TCP struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Payload []byte
}

// DecodeTCP parses a TCP header including variable-length options.
func DecodeTCP(b []byte) (TCP, error) {
	if len(b) < 20 {
		return TCP{}, errTruncated
	}
	dataOffset := int(b[12]>>4) * 4
	if dataOffset < 20 || len(b) < dataOffset {
		return TCP{}, errTruncated
	}
	return TCP{
		SrcPort: binary.BigEndian.Uint16(b[0:2]),
		DstPort: binary.BigEndian.Uint16(b[2:4]),
		Seq:     binary.BigEndian.Uint32(b[4:8]),
		Payload: b[dataOffset:],
	}, nil
}

// UDP is the decoded subset of a UDP header this inspector needs.
type UDP struct {
	SrcPort uint16
	DstPort uint16
	Payload []byte
}

// DecodeUDP parses the fixed 8-byte UDP header.
func DecodeUDP(b []byte) (UDP, error) {
	if len(b) < 8 {
		return UDP{}, errTruncated
	}
	length := int(binary.BigEndian.Uint16(b[4:6]))
	end := len(b)
	if length >= 8 && length <= len(b) {
		end = length
	}
	return UDP{
		SrcPort: binary.BigEndian.Uint16(b[0:2]),
		DstPort: binary.BigEndian.Uint16(b[2:4]),
		Payload: b[8:end],
	}, nil
}
