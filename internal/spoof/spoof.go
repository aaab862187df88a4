// Package spoof implements the ARP poisoning cycle (spec §4.H): for every
// inspected, non-gateway device, send bidirectional forged ARP replies so
// traffic between it and the gateway is redirected through the host.
package spoof

import (
	"context"
	"net"

	"github.com/google/gopacket/layers"
	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/sender"
	"github.com/iotinspector/inspector/internal/store"
)

// Cycle runs one spoofing pass. It is a no-op unless st.IsInspecting is
// true, and re-checks that flag before every per-victim send pair — the
// "synchronous stop guarantee" from spec §4.H.
func Cycle(ctx context.Context, st *netstate.State, s *store.Store, w sender.Writer, log *zap.Logger) error {
	if !st.IsInspecting.Load() {
		return nil
	}

	addrs := st.Addresses()
	hostMAC := addrs.ParsedHostMAC()
	if hostMAC == nil {
		return nil
	}
	gatewayIP := net.ParseIP(addrs.GatewayIP)

	// Resolve the gateway's MAC via the store, not netstate (spec §4.H
	// step 1): if it hasn't been learned yet, abort this cycle and let
	// the ARP scanner/classifier populate it.
	s.RLock()
	gatewayMACStr, ok, err := s.GetMACByIP(ctx, addrs.GatewayIP)
	s.RUnlock()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	gatewayMAC, err := net.ParseMAC(gatewayMACStr)
	if err != nil {
		return nil
	}

	s.RLock()
	victims, err := s.ListSpoofVictims(ctx, addrs.GatewayIP, addrs.HostIP, addrs.HostMAC)
	s.RUnlock()
	if err != nil {
		return err
	}

	for _, v := range victims {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !st.IsInspecting.Load() {
			return nil
		}

		victimMAC, err := net.ParseMAC(v.MAC)
		if err != nil {
			log.Warn("skipping victim with unparsable mac", zap.String("mac", v.MAC), zap.Error(err))
			continue
		}
		victimIP := net.ParseIP(v.IP)

		// Tell the gateway that the host owns the victim's IP.
		if err := sender.ARP(w, layers.ARPReply, hostMAC, victimIP, gatewayMAC, gatewayIP); err != nil {
			log.Warn("failed to poison gateway", zap.String("victim", v.IP), zap.Error(err))
			continue
		}
		if !st.IsInspecting.Load() {
			return nil
		}
		// Tell the victim that the host owns the gateway's IP.
		if err := sender.ARP(w, layers.ARPReply, hostMAC, gatewayIP, victimMAC, victimIP); err != nil {
			log.Warn("failed to poison victim", zap.String("victim", v.IP), zap.Error(err))
			continue
		}
	}
	return nil
}
