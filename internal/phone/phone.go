package phone

import "strings"

// Normalize converts a locally-dialed Ugandan number into E.164 (+256...).
// Pure function, idempotent: already-canonical input passes through
// unchanged. Empty input stays empty so callers can treat it as absent.
func Normalize(raw string) string {
	p := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if p == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(p, "0"):
		return "+256" + p[1:]
	case strings.HasPrefix(p, "256"):
		return "+" + p
	case strings.HasPrefix(p, "+256"):
		return p
	default:
		return "+256" + p
	}
}
