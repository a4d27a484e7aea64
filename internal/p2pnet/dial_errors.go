package p2pnet

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// classifyDialErr maps a raw libp2p/net dial error onto the DialError
// taxonomy the reconnection supervisor branches on.
func classifyDialErr(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &DialError{Kind: Timeout, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DialError{Kind: Timeout, Cause: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		return &DialError{Kind: Refused, Cause: err}
	}
	return &DialError{Kind: Unreachable, Cause: err}
}
