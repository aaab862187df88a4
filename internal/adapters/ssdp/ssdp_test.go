package ssdp

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScan_MergesFirstWriteWinsForResolvableDevice(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	if err := s.UpsertDeviceFromARP(ctx, "11:22:33:44:55:66", "192.168.1.30", 1, false, true); err != nil {
		t.Fatalf("seed device: %v", err)
	}

	orig := search
	defer func() { search = orig }()
	search = func(ctx context.Context, timeout time.Duration) ([]Entry, error) {
		return []Entry{{SourceIP: "192.168.1.30", Location: "http://192.168.1.30:80/desc.xml", Server: "Linux/UPnP"}}, nil
	}

	e := New(s, zap.NewNop())
	e.Scan(ctx)

	d, ok, err := s.GetDevice(ctx, "11:22:33:44:55:66")
	if err != nil || !ok {
		t.Fatalf("GetDevice: ok=%v err=%v", ok, err)
	}
	ssdpJSON, ok := d.Metadata["ssdp_json"].(map[string]any)
	if !ok {
		t.Fatalf("expected ssdp_json metadata, got %+v", d.Metadata)
	}
	if ssdpJSON["server"] != "Linux/UPnP" {
		t.Fatalf("unexpected ssdp_json: %+v", ssdpJSON)
	}
}

func TestScan_SkipsUnresolvableIP(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	orig := search
	defer func() { search = orig }()
	search = func(ctx context.Context, timeout time.Duration) ([]Entry, error) {
		return []Entry{{SourceIP: "192.168.1.250", Location: "http://192.168.1.250/desc.xml"}}, nil
	}

	e := New(s, zap.NewNop())
	e.Scan(ctx) // must not panic

	n, err := s.CountHostnames(ctx)
	if err != nil {
		t.Fatalf("CountHostnames: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no rows written, got %d", n)
	}
}

func TestParseResponse_ExtractsLocationAndServer(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=100\r\n" +
		"LOCATION: http://192.168.1.30:80/desc.xml\r\n" +
		"SERVER: Linux/UPnP\r\n" +
		"ST: ssdp:all\r\n\r\n"

	entry, ok := parseResponse([]byte(raw))
	if !ok {
		t.Fatalf("expected parseResponse to succeed")
	}
	if entry.Location != "http://192.168.1.30:80/desc.xml" || entry.Server != "Linux/UPnP" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}
