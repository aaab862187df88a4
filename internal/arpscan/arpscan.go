// Package arpscan implements the periodic ARP who-has sweep of the local
// subnet (spec §4.D). It never inspects replies directly — those arrive
// through the capture/classify path and are learned by the ARP handler.
package arpscan

import (
	"context"
	"net"

	"github.com/google/gopacket/layers"
	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/sender"
)

// Scan broadcasts a who-has request for every address in state's current
// subnet (spec §4.D): snapshot subnet_ips/host_mac under the address-tuple
// lock, then send outside the lock per the "never hold a lock across a
// send" rule (spec §5).
func Scan(ctx context.Context, st *netstate.State, w sender.Writer, log *zap.Logger) error {
	addrs := st.Addresses()
	hostMAC := addrs.ParsedHostMAC()
	if hostMAC == nil || addrs.HostIP == "" {
		return nil // topology not resolved yet; nothing to do this tick
	}
	hostIP := net.ParseIP(addrs.HostIP)

	for _, ipStr := range addrs.SubnetIPs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if err := sender.ARP(w, layers.ARPRequest, hostMAC, hostIP, nil, ip); err != nil {
			log.Debug("arp scan send failed", zap.String("target", ipStr), zap.Error(err))
		}
	}
	return nil
}
