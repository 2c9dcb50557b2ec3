package zoom

import (
	"strings"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// friendlyMessage maps a raw connection/transport error string to a
// human-readable one, adapted from the teacher's friendlyError. The
// diagnostic code itself comes from FromZOOMConnect (wrapConnect) or
// FromZOOM (wrapOther); this only improves the AddInfo text.
func friendlyMessage(target string, err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "i/o timeout"):
		return "connection to " + target + " timed out"
	case strings.Contains(msg, "connection refused"):
		return target + " refused the connection"
	case strings.Contains(msg, "no such host"):
		return "could not resolve hostname for " + target
	case strings.Contains(msg, "server rejected connection"):
		return target + " rejected the connection (invalid credentials or options)"
	case strings.Contains(msg, "reset by peer"):
		return target + " closed the connection unexpectedly"
	default:
		return msg
	}
}

// wrapConnect turns a transport-level connect failure into a
// diag.Error carrying the friendly message (spec §7's "ZOOM CONNECT
// failure maps to 109" rule).
func wrapConnect(target string, err error) *diag.Error {
	if err == nil {
		return nil
	}
	return diag.FromZOOMConnect(friendlyMessage(target, err))
}

// wrapOther turns any other ZOOM-layer failure into a diag.Error (spec
// §7's "other ZOOM ⇒ 100 with the provider's message" rule).
func wrapOther(target string, err error) *diag.Error {
	if err == nil {
		return nil
	}
	return diag.FromZOOM(friendlyMessage(target, err))
}
