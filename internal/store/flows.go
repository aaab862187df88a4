package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Flow mirrors one row of the network_flows table (spec §3): a one-second
// bucketed accumulator, not a connection record.
type Flow struct {
	Timestamp    int64
	SrcMAC       string
	DestMAC      string
	SrcIP        string
	DestIP       string
	SrcPort      int
	DestPort     int
	Protocol     string
	SrcHostname  *string
	DestHostname *string
	ByteCount    int64
	PacketCount  int64
	TCPSeqMin    *uint32
	TCPSeqMax    *uint32
}

// UpsertFlow accumulates byte_count and packet_count for the one-second
// bucket keyed by (timestamp, src/dest mac, src/dest ip, src/dest port,
// protocol), taking MIN/MAX of the TCP sequence number across the bucket
// (spec §4.B, §4.G flow aggregator). tcpSeq is nil for UDP flows.
func (s *Store) UpsertFlow(ctx context.Context, ts int64, srcMAC, destMAC, srcIP, destIP string, srcPort, destPort int, protocol string, byteLen int, tcpSeq *uint32) error {
	var seqMin, seqMax any
	if tcpSeq != nil {
		seqMin, seqMax = *tcpSeq, *tcpSeq
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO network_flows (
    timestamp, src_mac_address, dest_mac_address, src_ip_address, dest_ip_address,
    src_port, dest_port, protocol, byte_count, packet_count, metadata_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, json_object('tcp_seq_min', ?, 'tcp_seq_max', ?))
ON CONFLICT (timestamp, src_mac_address, dest_mac_address, src_ip_address, dest_ip_address, src_port, dest_port, protocol)
DO UPDATE SET
    byte_count = network_flows.byte_count + excluded.byte_count,
    packet_count = network_flows.packet_count + excluded.packet_count,
    metadata_json = json_patch(
        network_flows.metadata_json,
        json_object(
            'tcp_seq_min', MIN(COALESCE(json_extract(network_flows.metadata_json, '$.tcp_seq_min'), json_extract(excluded.metadata_json, '$.tcp_seq_min')), COALESCE(json_extract(excluded.metadata_json, '$.tcp_seq_min'), json_extract(network_flows.metadata_json, '$.tcp_seq_min'))),
            'tcp_seq_max', MAX(COALESCE(json_extract(network_flows.metadata_json, '$.tcp_seq_max'), json_extract(excluded.metadata_json, '$.tcp_seq_max')), COALESCE(json_extract(excluded.metadata_json, '$.tcp_seq_max'), json_extract(network_flows.metadata_json, '$.tcp_seq_max')))
        )
    )
`, ts, srcMAC, destMAC, srcIP, destIP, srcPort, destPort, protocol, byteLen, seqMin, seqMax)
	if err != nil {
		return fmt.Errorf("upserting flow: %w", err)
	}
	return nil
}

// BackfillFlowHostnames fills src_hostname/dest_hostname on flow rows
// where they are still null and a matching hostname row now exists (spec
// §4.G). Callers are responsible for the "at most every 2s" cadence
// (Handlers.Flow enforces it through maybeBackfillFlowHostnames); this
// method is just the statement.
func (s *Store) BackfillFlowHostnames(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `
UPDATE network_flows
SET
    src_hostname = COALESCE(src_hostname, (
        SELECT hostname FROM hostnames WHERE hostnames.ip_address = network_flows.src_ip_address LIMIT 1
    )),
    dest_hostname = COALESCE(dest_hostname, (
        SELECT hostname FROM hostnames WHERE hostnames.ip_address = network_flows.dest_ip_address LIMIT 1
    ))
WHERE
    (src_hostname IS NULL AND EXISTS (SELECT 1 FROM hostnames WHERE hostnames.ip_address = network_flows.src_ip_address)) OR
    (dest_hostname IS NULL AND EXISTS (SELECT 1 FROM hostnames WHERE hostnames.ip_address = network_flows.dest_ip_address))
`)
	if err != nil {
		return 0, fmt.Errorf("backfilling flow hostnames: %w", err)
	}
	return res.RowsAffected()
}

// GetFlow fetches a single flow row by its composite key, used by tests.
func (s *Store) GetFlow(ctx context.Context, ts int64, srcMAC, destMAC, srcIP, destIP string, srcPort, destPort int, protocol string) (f Flow, ok bool, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var metaRaw string
	row := s.db.QueryRowContext(ctx, `
SELECT timestamp, src_mac_address, dest_mac_address, src_ip_address, dest_ip_address,
       src_port, dest_port, protocol, src_hostname, dest_hostname, byte_count, packet_count, metadata_json
FROM network_flows
WHERE timestamp=? AND src_mac_address=? AND dest_mac_address=? AND src_ip_address=? AND dest_ip_address=?
  AND src_port=? AND dest_port=? AND protocol=?
`, ts, srcMAC, destMAC, srcIP, destIP, srcPort, destPort, protocol)

	err = row.Scan(&f.Timestamp, &f.SrcMAC, &f.DestMAC, &f.SrcIP, &f.DestIP, &f.SrcPort, &f.DestPort,
		&f.Protocol, &f.SrcHostname, &f.DestHostname, &f.ByteCount, &f.PacketCount, &metaRaw)
	if err != nil {
		return Flow{}, false, nil
	}
	var meta struct {
		TCPSeqMin *uint32 `json:"tcp_seq_min"`
		TCPSeqMax *uint32 `json:"tcp_seq_max"`
	}
	if json.Unmarshal([]byte(metaRaw), &meta) == nil {
		f.TCPSeqMin, f.TCPSeqMax = meta.TCPSeqMin, meta.TCPSeqMax
	}
	return f, true, nil
}
