package driver

import (
	"context"
	"errors"
	"strings"
)

// FailureKind tags an error thrown by the browser driver.
type FailureKind string

const (
	// FailureDeliberateClosure means a human closed the automation
	// window, tab, or browser. Not a bug: callers pause ongoing tasks
	// instead of reporting an error.
	FailureDeliberateClosure FailureKind = "deliberate_closure"
	// FailureTimeout covers explicit wait/navigation timeouts.
	FailureTimeout FailureKind = "timeout"
	// FailureNetwork covers connectivity loss at the browser level.
	FailureNetwork FailureKind = "network"
	// FailureUnknown is everything else; surfaced as a plain failure.
	FailureUnknown FailureKind = "unknown"
)

// closureSignatures are the driver-level messages emitted when the
// target, context, or browser is gone. Matched case-insensitively.
var closureSignatures = []string{
	"target page, context or browser has been closed",
	"browser has been closed",
	"context has been closed",
	"target closed",
	"page closed",
	"session closed",
	"browser closed",
	"websocket: close",
	"connection refused",
	"pipe closed",
}

var timeoutSignatures = []string{
	"timeout",
	"timed out",
}

var networkSignatures = []string{
	"net::err_internet_disconnected",
	"net::err_name_not_resolved",
	"net::err_proxy_connection_failed",
	"net::err_connection",
	"net::err_network",
	"net::err_address_unreachable",
}

// Classify inspects an error from the browser driver and tags it.
// Precedence: closure before timeout, since a closed browser surfaces
// as a timeout in some driver code paths but must be treated as an
// intentional act.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	msg := strings.ToLower(err.Error())

	for _, sig := range closureSignatures {
		if strings.Contains(msg, sig) {
			return FailureDeliberateClosure
		}
	}
	for _, sig := range networkSignatures {
		if strings.Contains(msg, sig) {
			return FailureNetwork
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	for _, sig := range timeoutSignatures {
		if strings.Contains(msg, sig) {
			return FailureTimeout
		}
	}
	return FailureUnknown
}
