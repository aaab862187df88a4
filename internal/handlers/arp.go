package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/protocol"
)

// ARP learns a device's (mac, ip) pair from any observed ARP request or
// reply (spec §4.G "ARP learn"). Our own spoofed replies are excluded by
// the sender-mac-equals-host check, and 0.0.0.0 ARP probes are ignored.
func (h *Handlers) ARP(ctx context.Context, arp protocol.ARP, addrs netstate.Addresses) {
	if arp.Operation != protocol.ARPRequest && arp.Operation != protocol.ARPReply {
		return
	}
	senderMAC := arp.SourceHwAddr.String()
	senderIP := arp.SourceProtAddr.String()
	if senderMAC == addrs.HostMAC || senderIP == "0.0.0.0" {
		return
	}

	isGateway := senderIP == addrs.GatewayIP
	now := h.now().Unix()

	h.Store.Lock()
	err := h.Store.UpsertDeviceFromARP(ctx, senderMAC, senderIP, now, isGateway, h.InspectByDefault)
	if err == nil {
		err = h.Store.PatchMissingOUIVendors(ctx)
	}
	h.Store.Unlock()
	if err != nil {
		h.Log.Warn("arp learn failed", zap.String("mac", senderMAC), zap.String("ip", senderIP), zap.Error(err))
	}
}
