package protocol

import (
	"encoding/binary"
	"errors"
	"strings"
)

const (
	tlsContentTypeHandshake = 0x16
	tlsHandshakeClientHello = 0x01
	tlsExtensionSNI         = 0x0000
	tlsSNIHostName          = 0x00
)

var errNoSNI = errors.New("protocol: no SNI extension present")

// ClientHelloSNI walks a single TLS record looking for a ClientHello
// carrying a Server Name Indication extension, and returns the lowercased
// hostname if found. It does not attempt to reassemble a ClientHello split
// across multiple TCP segments: the classifier passes each segment on its
// own, and a record longer than the segment yields an error.
func ClientHelloSNI(b []byte) (string, error) {
	if len(b) < 5 {
		return "", errTruncated
	}
	if b[0] != tlsContentTypeHandshake {
		return "", errNoSNI
	}
	recordLen := int(binary.BigEndian.Uint16(b[3:5]))
	if len(b) < 5+recordLen {
		return "", errTruncated
	}
	hs := b[5 : 5+recordLen]

	if len(hs) < 4 || hs[0] != tlsHandshakeClientHello {
		return "", errNoSNI
	}
	hsLen := int(hs[1])<<16 | int(hs[2])<<8 | int(hs[3])
	body := hs[4:]
	if len(body) < hsLen {
		return "", errTruncated
	}
	body = body[:hsLen]

	off := 2 + 32 // client version + random
	if len(body) < off+1 {
		return "", errTruncated
	}
	sessionIDLen := int(body[off])
	off += 1 + sessionIDLen
	if len(body) < off+2 {
		return "", errTruncated
	}
	cipherSuitesLen := int(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2 + cipherSuitesLen
	if len(body) < off+1 {
		return "", errTruncated
	}
	compressionLen := int(body[off])
	off += 1 + compressionLen
	if len(body) < off+2 {
		return "", errNoSNI // no extensions present
	}
	extTotalLen := int(binary.BigEndian.Uint16(body[off : off+2]))
	off += 2
	if len(body) < off+extTotalLen {
		return "", errTruncated
	}
	exts := body[off : off+extTotalLen]

	for len(exts) >= 4 {
		extType := binary.BigEndian.Uint16(exts[0:2])
		extLen := int(binary.BigEndian.Uint16(exts[2:4]))
		if len(exts) < 4+extLen {
			return "", errTruncated
		}
		extData := exts[4 : 4+extLen]
		if extType == tlsExtensionSNI {
			name, err := parseSNIExtension(extData)
			if err != nil {
				return "", err
			}
			return strings.ToLower(name), nil
		}
		exts = exts[4+extLen:]
	}
	return "", errNoSNI
}

func parseSNIExtension(b []byte) (string, error) {
	if len(b) < 2 {
		return "", errTruncated
	}
	listLen := int(binary.BigEndian.Uint16(b[0:2]))
	if len(b) < 2+listLen {
		return "", errTruncated
	}
	entries := b[2 : 2+listLen]
	for len(entries) >= 3 {
		nameType := entries[0]
		nameLen := int(binary.BigEndian.Uint16(entries[1:3]))
		if len(entries) < 3+nameLen {
			return "", errTruncated
		}
		if nameType == tlsSNIHostName {
			return string(entries[3 : 3+nameLen]), nil
		}
		entries = entries[3+nameLen:]
	}
	return "", errNoSNI
}
