package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/protocol"
)

const broadcastMAC = "ff:ff:ff:ff:ff:ff"
const broadcastIP = "255.255.255.255"

// Flow aggregates one TCP or UDP packet into its one-second bucket (spec
// §4.G "Flow aggregator"). Exactly one of src/dst MAC is host_mac; that
// side is replaced with the real peer MAC resolved from the device table
// so flow rows never carry the host's own MAC. Lookup failure drops the
// packet rather than writing an unknown-MAC row.
func (h *Handlers) Flow(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, proto string, srcPort, dstPort int, tcpSeq *uint32, byteLen int, addrs netstate.Addresses) {
	srcMAC := eth.SrcMAC.String()
	dstMAC := eth.DstMAC.String()
	srcIP := ip.SrcIP.String()
	dstIP := ip.DstIP.String()

	if dstMAC == broadcastMAC || dstIP == broadcastIP {
		return
	}

	switch addrs.HostMAC {
	case srcMAC:
		peerMAC, ok, err := h.lookupMAC(ctx, srcIP)
		if err != nil || !ok {
			return
		}
		srcMAC = peerMAC
	case dstMAC:
		peerMAC, ok, err := h.lookupMAC(ctx, dstIP)
		if err != nil || !ok {
			return
		}
		dstMAC = peerMAC
	default:
		return
	}

	ts := h.now().Unix()

	h.Store.Lock()
	err := h.Store.UpsertFlow(ctx, ts, srcMAC, dstMAC, srcIP, dstIP, srcPort, dstPort, proto, byteLen, tcpSeq)
	h.Store.Unlock()
	if err != nil {
		h.Log.Warn("flow upsert failed", zap.String("src_mac", srcMAC), zap.String("dst_mac", dstMAC), zap.Error(err))
		return
	}

	h.maybeBackfillFlowHostnames(ctx)
}
