// Package ssdp passively enriches the device table via SSDP M-SEARCH
// (spec §6 "mDNS / SSDP"). No pack example ships an SSDP/UPnP client, so
// this is a small hand-rolled implementation against net and net/http,
// justified in DESIGN.md as a stdlib-only concern.
package ssdp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/store"
)

const (
	multicastAddr = "239.255.255.250:1900"
	searchRequest = "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: ssdp:all\r\n\r\n"
)

// Entry is one device's SSDP response, keyed by the source IP it replied
// from.
type Entry struct {
	SourceIP string
	Location string
	Server   string
}

// search sends one M-SEARCH broadcast and collects replies for timeout.
// Overridable in tests so Scan doesn't need a real UPnP responder on the
// network.
var search = func(ctx context.Context, timeout time.Duration) ([]Entry, error) {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving ssdp multicast address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("opening ssdp socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP([]byte(searchRequest), addr); err != nil {
		return nil, fmt.Errorf("sending ssdp m-search: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	byIP := map[string]Entry{}
	buf := make([]byte, 2048)
	for ctx.Err() == nil {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // read deadline reached, or socket closed
		}
		entry, ok := parseResponse(buf[:n])
		if !ok {
			continue
		}
		entry.SourceIP = src.IP.String()
		byIP[entry.SourceIP] = entry
	}

	out := make([]Entry, 0, len(byIP))
	for _, e := range byIP {
		out = append(out, e)
	}
	return out, nil
}

// parseResponse parses an SSDP reply, which is wire-compatible with a
// minimal HTTP/1.1 response (status line + headers, no body).
func parseResponse(b []byte) (Entry, bool) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return Entry{}, false
	}
	defer resp.Body.Close()
	return Entry{Location: resp.Header.Get("Location"), Server: resp.Header.Get("Server")}, true
}

// Enricher runs one SSDP discovery pass per Scan call and merges any
// resolvable results into the store.
type Enricher struct {
	Store   *store.Store
	Log     *zap.Logger
	Timeout time.Duration
}

func New(s *store.Store, log *zap.Logger) *Enricher {
	return &Enricher{Store: s, Log: log, Timeout: 2 * time.Second}
}

// Scan discovers devices via SSDP and merges each resolvable result into
// devices.metadata_json.ssdp_json, first-write-wins (spec §6).
func (e *Enricher) Scan(ctx context.Context) {
	entries, err := search(ctx, e.Timeout)
	if err != nil {
		e.Log.Debug("ssdp search failed", zap.Error(err))
		return
	}

	for _, entry := range entries {
		e.Store.RLock()
		mac, ok, err := e.Store.GetMACByIP(ctx, entry.SourceIP)
		e.Store.RUnlock()
		if err != nil || !ok {
			continue
		}

		value := map[string]any{"location": entry.Location, "server": entry.Server}
		e.Store.Lock()
		err = e.Store.MergeDeviceMetadataIfAbsent(ctx, mac, "ssdp_json", value)
		e.Store.Unlock()
		if err != nil {
			e.Log.Warn("ssdp metadata merge failed", zap.String("mac", mac), zap.Error(err))
		}
	}
}
