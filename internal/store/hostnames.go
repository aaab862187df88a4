package store

import (
	"context"
	"fmt"
)

// Hostname mirrors one row of the hostnames table (spec §3).
type Hostname struct {
	DeviceMAC  string
	IP         string
	Name       string
	DataSource string
	UpdatedTS  int64
}

// DataSource values recognized by the hostnames table (spec §3).
const (
	SourceDNS  = "dns"
	SourceSNI  = "sni"
	SourceDHCP = "dhcp"
	SourceMDNS = "mdns"
	SourceSSDP = "ssdp"
)

// UpsertHostname inserts a (device, ip, hostname) row, ignoring the call
// if the composite key already exists so the first-seen updated_ts is
// preserved (spec §3 invariant).
func (s *Store) UpsertHostname(ctx context.Context, deviceMAC, ip, hostname, dataSource string, updatedTS int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO hostnames (device_mac_address, ip_address, hostname, data_source, updated_ts)
VALUES (?, ?, ?, ?, ?)
`, deviceMAC, ip, hostname, dataSource, updatedTS)
	if err != nil {
		return fmt.Errorf("upserting hostname: %w", err)
	}
	return nil
}

// CountHostnames returns the number of hostname rows, used by tests to
// assert the composite-key uniqueness invariant.
func (s *Store) CountHostnames(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hostnames`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting hostnames: %w", err)
	}
	return n, nil
}

// ListHostnames returns every hostname row for a device, newest first.
// Used by tests and potential future inspection tooling.
func (s *Store) ListHostnames(ctx context.Context, deviceMAC string) ([]Hostname, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
SELECT device_mac_address, ip_address, hostname, data_source, updated_ts
FROM hostnames WHERE device_mac_address = ?
ORDER BY updated_ts DESC
`, deviceMAC)
	if err != nil {
		return nil, fmt.Errorf("listing hostnames: %w", err)
	}
	defer rows.Close()

	var out []Hostname
	for rows.Next() {
		var h Hostname
		if err := rows.Scan(&h.DeviceMAC, &h.IP, &h.Name, &h.DataSource, &h.UpdatedTS); err != nil {
			return nil, fmt.Errorf("scanning hostname: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
