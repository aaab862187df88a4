package handlers

import (
	"context"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/protocol"
)

// DHCP learns a device's hostname from a broadcast DHCP frame (spec §4.G
// "DHCP"). classify only calls this for frames addressed to the broadcast
// MAC on port 67/68; the device's IP is the packet's IP-layer source
// address as-is, with no special-casing of 0.0.0.0 (grounded on the
// original's process_dhcp, which reads pkt[IP].src verbatim).
func (h *Handlers) DHCP(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, udp protocol.UDP, addrs netstate.Addresses) {
	deviceMAC := eth.SrcMAC.String()
	if deviceMAC == addrs.HostMAC {
		return
	}

	msg, err := dhcpv4.FromBytes(udp.Payload)
	if err != nil {
		return
	}
	opt := msg.Options.Get(dhcpv4.OptionHostName)
	if len(opt) == 0 {
		return
	}
	hostname := string(opt)

	now := h.now().Unix()
	patch := map[string]any{"dhcp_hostname": hostname}

	h.Store.Lock()
	err = h.Store.UpsertDeviceFromDHCP(ctx, deviceMAC, ip.SrcIP.String(), patch, now)
	h.Store.Unlock()
	if err != nil {
		h.Log.Warn("dhcp learn failed", zap.String("mac", deviceMAC), zap.Error(err))
	}
}
