// Package classify implements the packet classifier: a continuous drain
// loop over the capture queue that dispatches each frame by first match
// (spec §4.F). This replaces the original's one-packet-per-wake-up design
// per the REDESIGN FLAG in spec §9.
package classify

import (
	"context"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/capture"
	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/protocol"
)

const broadcastMAC = "ff:ff:ff:ff:ff:ff"

// Dispatcher is implemented by internal/handlers.Handlers. It's an
// interface here so classify never imports the store package directly —
// everything it needs is reached through the one handler surface.
type Dispatcher interface {
	ARP(ctx context.Context, frame protocol.ARP, addrs netstate.Addresses)
	DHCP(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, udp protocol.UDP, addrs netstate.Addresses)
	DNS(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, udp protocol.UDP, addrs netstate.Addresses)
	TLSSNI(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, payload []byte, addrs netstate.Addresses)
	Flow(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, proto string, srcPort, dstPort int, tcpSeq *uint32, byteLen int, addrs netstate.Addresses)
}

// Drain reads frames off q until ctx is canceled, decoding and dispatching
// each one. Any decode/handler panic-worthy condition is instead just a
// dropped packet: classify never lets one bad frame stop the loop (spec
// §4.F: "any handler exception is caught, logged ... and the packet is
// discarded").
func Drain(ctx context.Context, q *capture.Queue, st *netstate.State, d Dispatcher, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-q.Chan():
			if !ok {
				return
			}
			classifyOne(ctx, frame, st, d, log)
		}
	}
}

func classifyOne(ctx context.Context, frame []byte, st *netstate.State, d Dispatcher, log *zap.Logger) {
	eth, err := protocol.DecodeEthernet(frame)
	if err != nil {
		log.Debug("dropping frame: ethernet decode failed", zap.Error(err))
		return
	}
	addrs := st.Addresses()

	if eth.EtherType == protocol.EtherTypeARP {
		arp, err := protocol.DecodeARP(eth.Payload)
		if err != nil {
			return
		}
		d.ARP(ctx, arp, addrs)
		return
	}

	if eth.EtherType != protocol.EtherTypeIPv4 {
		return
	}
	ip, err := protocol.DecodeIPv4(eth.Payload)
	if err != nil {
		return
	}

	if eth.DstMAC.String() == broadcastMAC {
		if ip.Protocol == protocol.ProtoUDP {
			udp, err := protocol.DecodeUDP(ip.Payload)
			if err == nil && (udp.DstPort == 67 || udp.DstPort == 68) {
				d.DHCP(ctx, eth, ip, udp, addrs)
				return
			}
		}
	}

	if ip.SrcIP.String() == addrs.HostIP || ip.DstIP.String() == addrs.HostIP {
		return
	}

	switch ip.Protocol {
	case protocol.ProtoUDP:
		udp, err := protocol.DecodeUDP(ip.Payload)
		if err != nil {
			return
		}
		if udp.SrcPort == 53 || udp.DstPort == 53 {
			d.DNS(ctx, eth, ip, udp, addrs)
			return
		}
		d.Flow(ctx, eth, ip, "udp", int(udp.SrcPort), int(udp.DstPort), nil, len(frame), addrs)

	case protocol.ProtoTCP:
		tcp, err := protocol.DecodeTCP(ip.Payload)
		if err != nil {
			return
		}
		if eth.DstMAC.String() == addrs.HostMAC && len(tcp.Payload) > 0 {
			if _, err := protocol.ClientHelloSNI(tcp.Payload); err == nil {
				d.TLSSNI(ctx, eth, ip, tcp.Payload, addrs)
			}
		}
		seq := tcp.Seq
		d.Flow(ctx, eth, ip, "tcp", int(tcp.SrcPort), int(tcp.DstPort), &seq, len(frame), addrs)
	}
}
