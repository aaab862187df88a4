package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/protocol"
	"github.com/iotinspector/inspector/internal/store"
)

// DNS learns a device's hostname from any DNS query or response it
// originates or receives (spec §4.G "DNS"). The device is whichever side
// of (src_mac, dst_mac) isn't host_mac; frames involving neither, or the
// gateway itself, are dropped.
func (h *Handlers) DNS(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, udp protocol.UDP, addrs netstate.Addresses) {
	srcMAC := eth.SrcMAC.String()
	dstMAC := eth.DstMAC.String()

	var deviceMAC string
	switch addrs.HostMAC {
	case srcMAC:
		deviceMAC = dstMAC
	case dstMAC:
		deviceMAC = srcMAC
	default:
		return
	}

	gatewayMAC, ok, err := h.lookupMAC(ctx, addrs.GatewayIP)
	if err != nil || !ok {
		return
	}
	if deviceMAC == gatewayMAC {
		return
	}

	dns, err := protocol.DecodeDNS(udp.Payload)
	if err != nil {
		return
	}
	name := strings.ToLower(strings.TrimSuffix(dns.QueryName, "."))
	if name == "" {
		return
	}

	ips := []string{""}
	if dns.IsResponse && len(dns.Answers) > 0 {
		ips = ips[:0]
		for _, a := range dns.Answers {
			ips = append(ips, a.String())
		}
	}

	now := h.now().Unix()
	h.Store.Lock()
	defer h.Store.Unlock()
	for _, devIP := range ips {
		if err := h.Store.UpsertHostname(ctx, deviceMAC, devIP, name, store.SourceDNS, now); err != nil {
			h.Log.Warn("dns hostname upsert failed", zap.String("mac", deviceMAC), zap.Error(err))
		}
	}
}

// lookupMAC resolves an IP to a MAC through the devices table.
func (h *Handlers) lookupMAC(ctx context.Context, ip string) (string, bool, error) {
	h.Store.RLock()
	defer h.Store.RUnlock()
	return h.Store.GetMACByIP(ctx, ip)
}
