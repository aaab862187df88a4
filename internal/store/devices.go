package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Device mirrors one row of the devices table (spec §3).
type Device struct {
	MAC         string
	IP          string
	IsInspected bool
	IsGateway   bool
	UpdatedTS   int64
	Metadata    map[string]any
}

func withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, 10*time.Second)
}

// UpsertDeviceFromARP applies the ARP upsert policy from spec §4.B: ip,
// updated_ts, and is_gateway are overwritten; is_inspected and
// metadata_json are preserved. is_gateway is monotone (spec §3): once a
// MAC is marked as the gateway it is never unmarked by a later upsert.
func (s *Store) UpsertDeviceFromARP(ctx context.Context, mac, ip string, updatedTS int64, isGateway, inspectByDefault bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO devices (mac_address, ip_address, is_inspected, is_gateway, updated_ts)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(mac_address) DO UPDATE SET
    ip_address = excluded.ip_address,
    updated_ts = excluded.updated_ts,
    is_gateway = devices.is_gateway | excluded.is_gateway
`, mac, ip, boolToInt(inspectByDefault), boolToInt(isGateway), updatedTS)
	if err != nil {
		return fmt.Errorf("upserting device from arp: %w", err)
	}
	return nil
}

// UpsertDeviceFromDHCP applies the DHCP upsert policy from spec §4.B: ip
// is overwritten, metadata_json is merged by shallow patch (new keys
// win).
func (s *Store) UpsertDeviceFromDHCP(ctx context.Context, mac, ip string, patch map[string]any, updatedTS int64) error {
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshaling dhcp metadata patch: %w", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO devices (mac_address, ip_address, metadata_json, updated_ts)
VALUES (?, ?, ?, ?)
ON CONFLICT(mac_address) DO UPDATE SET
    ip_address = excluded.ip_address,
    metadata_json = json_patch(devices.metadata_json, excluded.metadata_json)
`, mac, ip, string(patchJSON), updatedTS)
	if err != nil {
		return fmt.Errorf("upserting device from dhcp: %w", err)
	}
	return nil
}

// MergeDeviceMetadataIfAbsent patches key into mac's metadata_json only
// when that key is not already present, implementing the first-write-wins
// rule used by the mDNS/SSDP enrichers (spec §6).
func (s *Store) MergeDeviceMetadataIfAbsent(ctx context.Context, mac, key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling metadata value: %w", err)
	}
	patch, err := json.Marshal(map[string]json.RawMessage{key: valueJSON})
	if err != nil {
		return fmt.Errorf("marshaling metadata patch: %w", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
UPDATE devices
SET metadata_json = json_patch(metadata_json, ?)
WHERE mac_address = ? AND json_extract(metadata_json, '$.' || ?) IS NULL
`, string(patch), mac, key)
	if err != nil {
		return fmt.Errorf("merging device metadata: %w", err)
	}
	return nil
}

// PatchMissingOUIVendors fills metadata_json.oui_vendor for every device
// row that lacks it, using the oui_vendor SQL scalar function registered
// in store.go (spec §4.G, ARP handler).
func (s *Store) PatchMissingOUIVendors(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
UPDATE devices
SET metadata_json = json_patch(metadata_json, json_object('oui_vendor', oui_vendor(mac_address)))
WHERE json_extract(metadata_json, '$.oui_vendor') IS NULL
`)
	if err != nil {
		return fmt.Errorf("patching oui vendors: %w", err)
	}
	return nil
}

// GetIPByMAC resolves a device's current IP. It returns ok=false on a
// miss; this is the corrected hit/miss contract called out in spec §9 (the
// original's inverted None-on-hit/raise-on-miss behavior).
func (s *Store) GetIPByMAC(ctx context.Context, mac string) (ip string, ok bool, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	err = s.db.QueryRowContext(ctx, `SELECT ip_address FROM devices WHERE mac_address = ? AND ip_address != ''`, mac).Scan(&ip)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up ip by mac: %w", err)
	}
	return ip, true, nil
}

// GetMACByIP resolves a device's MAC address by its currently known IP.
// Returns ok=false on a miss (see GetIPByMAC).
func (s *Store) GetMACByIP(ctx context.Context, ip string) (mac string, ok bool, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	err = s.db.QueryRowContext(ctx, `SELECT mac_address FROM devices WHERE ip_address = ? LIMIT 1`, ip).Scan(&mac)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up mac by ip: %w", err)
	}
	return mac, true, nil
}

// GetDevice fetches a single device row by MAC. ok is false when the
// device hasn't been seen.
func (s *Store) GetDevice(ctx context.Context, mac string) (d Device, ok bool, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var metaRaw string
	var inspected, gateway int
	err = s.db.QueryRowContext(ctx, `
SELECT mac_address, ip_address, is_inspected, is_gateway, updated_ts, metadata_json
FROM devices WHERE mac_address = ?`, mac).
		Scan(&d.MAC, &d.IP, &inspected, &gateway, &d.UpdatedTS, &metaRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, false, nil
	}
	if err != nil {
		return Device{}, false, fmt.Errorf("fetching device: %w", err)
	}
	d.IsInspected = inspected != 0
	d.IsGateway = gateway != 0
	d.Metadata = map[string]any{}
	_ = json.Unmarshal([]byte(metaRaw), &d.Metadata)
	return d, true, nil
}

// InspectionVictim is a device row eligible for ARP poisoning (spec §4.H,
// step 2).
type InspectionVictim struct {
	MAC string
	IP  string
}

// ListSpoofVictims returns every inspected, non-gateway device, excluding
// rows whose IP matches gatewayIP/hostIP or whose MAC matches hostMAC
// (spec §4.H step 2; the gateway exclusion via is_gateway=0 is the
// REDESIGN FLAG fix noted in spec §9).
func (s *Store) ListSpoofVictims(ctx context.Context, gatewayIP, hostIP, hostMAC string) ([]InspectionVictim, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
SELECT mac_address, ip_address
FROM devices
WHERE is_inspected = 1 AND ip_address != '' AND mac_address != '' AND is_gateway = 0
  AND ip_address NOT IN (?, ?) AND mac_address != ?
`, gatewayIP, hostIP, hostMAC)
	if err != nil {
		return nil, fmt.Errorf("listing spoof victims: %w", err)
	}
	defer rows.Close()

	var out []InspectionVictim
	for rows.Next() {
		var v InspectionVictim
		if err := rows.Scan(&v.MAC, &v.IP); err != nil {
			return nil, fmt.Errorf("scanning spoof victim: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
