package p2pnet

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "i/o timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return false }

var _ net.Error = fakeTimeoutErr{}

func TestClassifyDialErrTimeout(t *testing.T) {
	err := classifyDialErr(fakeTimeoutErr{})
	var de *DialError
	require.True(t, errors.As(err, &de))
	require.Equal(t, Timeout, de.Kind)
}

func TestClassifyDialErrDeadlineExceeded(t *testing.T) {
	err := classifyDialErr(context.DeadlineExceeded)
	var de *DialError
	require.True(t, errors.As(err, &de))
	require.Equal(t, Timeout, de.Kind)
}

func TestClassifyDialErrRefused(t *testing.T) {
	err := classifyDialErr(errors.New("dial tcp 127.0.0.1:4001: connection refused"))
	var de *DialError
	require.True(t, errors.As(err, &de))
	require.Equal(t, Refused, de.Kind)
}

func TestClassifyDialErrUnreachableFallback(t *testing.T) {
	err := classifyDialErr(errors.New("no route to host"))
	var de *DialError
	require.True(t, errors.As(err, &de))
	require.Equal(t, Unreachable, de.Kind)
}
