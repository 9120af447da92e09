package mail

import (
	"testing"
	"time"
)

func TestParseFrom_NameAndAddress(t *testing.T) {
	tests := []struct {
		header      string
		wantName    string
		wantAddress string
	}{
		{"Lenny Rachitsky <lenny@substack.com>", "Lenny Rachitsky", "lenny@substack.com"},
		{`"Rachitsky, Lenny" <lenny@substack.com>`, "Rachitsky, Lenny", "lenny@substack.com"},
		{"<noreply@mail.beehiiv.com>", "", "noreply@mail.beehiiv.com"},
		{"digest@example.com", "", "digest@example.com"},
		{"Digest <Digest@Example.COM>", "Digest", "digest@example.com"},
		{"  spaced@example.com  ", "", "spaced@example.com"},
		{"", "", ""},
	}

	for _, tt := range tests {
		name, address := ParseFrom(tt.header)
		if name != tt.wantName {
			t.Errorf("ParseFrom(%q) name = %q, want %q", tt.header, name, tt.wantName)
		}
		if address != tt.wantAddress {
			t.Errorf("ParseFrom(%q) address = %q, want %q", tt.header, address, tt.wantAddress)
		}
	}
}

func TestParseFrom_BareAddressIsLowercased(t *testing.T) {
	_, address := ParseFrom("NEWS@Example.com")
	if address != "news@example.com" {
		t.Errorf("Expected lower-cased address, got %q", address)
	}
}

func TestParseDate_RFC5322(t *testing.T) {
	parsed, ok := ParseDate("Mon, 02 Jan 2006 15:04:05 -0700")
	if !ok {
		t.Fatal("Expected RFC 5322 date to parse")
	}
	if parsed.UTC().Format(time.RFC3339) != "2006-01-02T22:04:05Z" {
		t.Errorf("Unexpected parsed time: %v", parsed)
	}
}

func TestParseDate_RFC3339Fallback(t *testing.T) {
	parsed, ok := ParseDate("2024-06-01T08:30:00Z")
	if !ok {
		t.Fatal("Expected RFC 3339 date to parse")
	}
	if parsed.Hour() != 8 || parsed.Minute() != 30 {
		t.Errorf("Unexpected parsed time: %v", parsed)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	if _, ok := ParseDate("yesterday-ish"); ok {
		t.Error("Expected unparseable date to report false")
	}
	if _, ok := ParseDate(""); ok {
		t.Error("Expected empty date to report false")
	}
}
