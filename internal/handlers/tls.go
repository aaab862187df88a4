package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/protocol"
	"github.com/iotinspector/inspector/internal/store"
)

// TLSSNI records the Server Name Indication from a redirected ClientHello
// (spec §4.G "TLS SNI"). classify only calls this once dst_mac==host_mac
// and a ClientHello SNI was found in payload, so this handler re-extracts
// the name and writes the hostname row; no partial writes if extraction
// fails here too (ClientHello fragmented across frames is dropped silently,
// spec §7 edge case).
func (h *Handlers) TLSSNI(ctx context.Context, eth protocol.Ethernet, ip protocol.IPv4, payload []byte, addrs netstate.Addresses) {
	sni, err := protocol.ClientHelloSNI(payload)
	if err != nil {
		return
	}
	name := strings.ToLower(sni)
	if name == "" {
		return
	}

	now := h.now().Unix()
	h.Store.Lock()
	err = h.Store.UpsertHostname(ctx, eth.SrcMAC.String(), ip.DstIP.String(), name, store.SourceSNI, now)
	h.Store.Unlock()
	if err != nil {
		h.Log.Warn("sni hostname upsert failed", zap.String("mac", eth.SrcMAC.String()), zap.Error(err))
	}
}
