package oui

import (
	"strings"
	"testing"
)

const sampleDB = `# comment line, ignored
AA:BB:CC	Acme Corp
AA:BB:CC:00:00/36	Acme Corp Sub-Unit
`

func TestVendor_PrefersLongestMatchingPrefix(t *testing.T) {
	db := parse(strings.NewReader(sampleDB))

	if got := db.Vendor("aa:bb:cc:00:00:01"); got != "Acme Corp Sub-Unit" {
		t.Fatalf("expected longest-prefix match, got %q", got)
	}
	if got := db.Vendor("aa:bb:cc:11:22:33"); got != "Acme Corp" {
		t.Fatalf("expected 3-byte OUI fallback match, got %q", got)
	}
}

func TestVendor_MissReturnsEmptyString(t *testing.T) {
	db := parse(strings.NewReader(sampleDB))
	if got := db.Vendor("11:22:33:44:55:66"); got != "" {
		t.Fatalf("expected empty string on miss, got %q", got)
	}
}

func TestVendor_IgnoresCommentsAndMalformedLines(t *testing.T) {
	db := parse(strings.NewReader("# just a comment\nnotabbed\n\n"))
	if got := db.Vendor("aa:bb:cc:11:22:33"); got != "" {
		t.Fatalf("expected empty database to miss, got %q", got)
	}
}

func TestLoad_MissingFileYieldsAlwaysMissDatabase(t *testing.T) {
	db := Load("/nonexistent/path/to/oui.txt")
	if got := db.Vendor("aa:bb:cc:11:22:33"); got != "" {
		t.Fatalf("expected miss on missing file, got %q", got)
	}
}
