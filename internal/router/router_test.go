package router

import (
	"context"
	"errors"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

type fakeDirect struct {
	ok      bool
	calls   int
	lastPID peer.ID
}

func (f *fakeDirect) SendDirect(_ context.Context, target peer.ID, _ []byte) bool {
	f.calls++
	f.lastPID = target
	return f.ok
}

type fakeBroadcast struct {
	err   error
	calls int
}

func (f *fakeBroadcast) Publish(context.Context, []byte) error {
	f.calls++
	return f.err
}

func TestSendPrefersDirectWhenAvailable(t *testing.T) {
	d := &fakeDirect{ok: true}
	b := &fakeBroadcast{}
	r := New(Config{DirectMessagingEnabled: true, FallbackToGossipsub: true}, d, b)

	err := r.Send(context.Background(), wireproto.RoleQuoteAccepted, []byte("x"), peer.ID("p1"))
	require.NoError(t, err)
	require.Equal(t, 1, d.calls)
	require.Equal(t, 0, b.calls)
}

func TestSendFallsBackOnDirectFailure(t *testing.T) {
	d := &fakeDirect{ok: false}
	b := &fakeBroadcast{}
	r := New(Config{DirectMessagingEnabled: true, FallbackToGossipsub: true}, d, b)

	err := r.Send(context.Background(), wireproto.RoleContractCreated, []byte("x"), peer.ID("p1"))
	require.NoError(t, err)
	require.Equal(t, 1, d.calls)
	require.Equal(t, 1, b.calls)
}

func TestSendFailsWhenFallbackDisabledAndNoDirect(t *testing.T) {
	b := &fakeBroadcast{}
	r := New(Config{DirectMessagingEnabled: false, FallbackToGossipsub: false}, nil, b)

	err := r.Send(context.Background(), wireproto.RoleQuoteRequest, []byte("x"), "")
	var df *DeliveryFailed
	require.ErrorAs(t, err, &df)
	require.Equal(t, 0, b.calls)
}

func TestSendBroadcastsWhenNoTargetGiven(t *testing.T) {
	d := &fakeDirect{ok: true}
	b := &fakeBroadcast{}
	r := New(Config{DirectMessagingEnabled: true, FallbackToGossipsub: true}, d, b)

	err := r.Send(context.Background(), wireproto.RoleQuoteRequest, []byte("x"), "")
	require.NoError(t, err)
	require.Equal(t, 0, d.calls)
	require.Equal(t, 1, b.calls)
}

func TestSendPropagatesBroadcastError(t *testing.T) {
	b := &fakeBroadcast{err: errors.New("no peers and zero-peer disabled")}
	r := New(Config{FallbackToGossipsub: true}, nil, b)

	err := r.Send(context.Background(), wireproto.RoleListModels, []byte("x"), "")
	require.Error(t, err)
}
