// Package mdns passively enriches the device table from mDNS/DNS-SD
// service announcements (spec §6 "mDNS / SSDP"), grounded on
// GoCortexa-heimdal's internal/discovery/mdns.go scan loop. Unlike that
// scanner, MAC resolution goes through the shared store instead of a
// best-effort ARP-cache read, since every device this inspector has ever
// ARP-learned is already there.
package mdns

import (
	"context"
	"strings"
	"time"

	hmdns "github.com/hashicorp/mdns"
	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/store"
)

// serviceTypes mirrors GoCortexa-heimdal's common IoT/LAN service list.
var serviceTypes = []string{
	"_workstation._tcp",
	"_device-info._tcp",
	"_http._tcp",
	"_ssh._tcp",
	"_smb._tcp",
	"_airplay._tcp",
	"_googlecast._tcp",
	"_hap._tcp",
	"_homekit._tcp",
	"_printer._tcp",
	"_ipp._tcp",
	"_scanner._tcp",
	"_raop._tcp",
}

// query is overridable in tests so a Scan can run without a real mDNS
// responder on the network.
var query = func(params *hmdns.QueryParam) error {
	return hmdns.Query(params)
}

// Enricher runs one mDNS discovery pass per Scan call and merges any
// resolvable results into the store.
type Enricher struct {
	Store *store.Store
	Log   *zap.Logger
}

func New(s *store.Store, log *zap.Logger) *Enricher {
	return &Enricher{Store: s, Log: log}
}

// Scan queries every known service type and merges each resolvable entry
// into devices.metadata_json.mdns_json, first-write-wins (spec §6).
func (e *Enricher) Scan(ctx context.Context) {
	entries := make(chan *hmdns.ServiceEntry, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			e.processEntry(ctx, entry)
		}
	}()

	for _, svc := range serviceTypes {
		if ctx.Err() != nil {
			break
		}
		params := &hmdns.QueryParam{
			Service:             svc,
			Domain:              "local",
			Timeout:             2 * time.Second,
			Entries:             entries,
			WantUnicastResponse: false,
		}
		if err := query(params); err != nil {
			e.Log.Debug("mdns query failed", zap.String("service", svc), zap.Error(err))
		}
	}
	close(entries)
	<-done
}

func (e *Enricher) processEntry(ctx context.Context, entry *hmdns.ServiceEntry) {
	if entry == nil {
		return
	}
	var ip string
	switch {
	case entry.AddrV4 != nil:
		ip = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		ip = entry.AddrV6.String()
	default:
		return
	}

	e.Store.RLock()
	mac, ok, err := e.Store.GetMACByIP(ctx, ip)
	e.Store.RUnlock()
	if err != nil || !ok {
		return
	}

	name := cleanServiceName(entry.Name)
	value := map[string]any{
		"device_name":       name,
		"device_properties": entry.InfoFields,
	}

	e.Store.Lock()
	err = e.Store.MergeDeviceMetadataIfAbsent(ctx, mac, "mdns_json", value)
	e.Store.Unlock()
	if err != nil {
		e.Log.Warn("mdns metadata merge failed", zap.String("mac", mac), zap.Error(err))
	}
}

func cleanServiceName(name string) string {
	name = strings.TrimSuffix(name, ".local.")
	name = strings.TrimSuffix(name, ".local")
	for _, svc := range serviceTypes {
		name = strings.TrimSuffix(name, "."+svc)
	}
	return strings.Trim(name, ".")
}
