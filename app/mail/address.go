package mail

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

var fromPattern = regexp.MustCompile(`^(.*?)\s*<([^<>]+)>\s*$`)

// ParseFrom splits a From header into a display name and a lower-cased email
// address. Accepted shapes are "Name <addr>" and a bare "addr"; surrounding
// quotes are stripped from the name.
func ParseFrom(header string) (name, address string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}

	if m := fromPattern.FindStringSubmatch(header); m != nil {
		name = strings.Trim(strings.TrimSpace(m[1]), `"`)
		address = strings.ToLower(strings.TrimSpace(m[2]))
		return name, address
	}

	return "", strings.ToLower(header)
}

// ParseDate parses a message date header, reporting false when the header is
// absent or unparseable so callers can fall back to the current time.
func ParseDate(header string) (time.Time, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return time.Time{}, false
	}

	if t, err := mail.ParseDate(header); err == nil {
		return t, true
	}

	// Some providers emit RFC 3339 instead of RFC 5322
	if t, err := time.Parse(time.RFC3339, header); err == nil {
		return t, true
	}

	return time.Time{}, false
}
