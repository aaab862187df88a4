package netstate

import "testing"

func TestNew_StartsRunningNotInspecting(t *testing.T) {
	s := New()
	if !s.IsRunning.Load() {
		t.Fatalf("expected IsRunning to start true")
	}
	if s.IsInspecting.Load() {
		t.Fatalf("expected IsInspecting to start false")
	}
}

func TestSetAddresses_RoundTrips(t *testing.T) {
	s := New()
	s.SetAddresses(Addresses{GatewayIP: "10.0.0.1", HostIP: "10.0.0.5", HostMAC: "aa:bb:cc:dd:ee:ff"})

	got := s.Addresses()
	if got.GatewayIP != "10.0.0.1" || got.HostIP != "10.0.0.5" {
		t.Fatalf("unexpected addresses: %+v", got)
	}
	if !got.IsHostAddr("10.0.0.5") {
		t.Fatalf("expected IsHostAddr to recognize the host ip")
	}
	if got.ParsedHostMAC() == nil {
		t.Fatalf("expected host mac to parse")
	}
}
