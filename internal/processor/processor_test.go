package processor

import (
	"context"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/Diiisco-Inc/diiisco-node/internal/auction"
	"github.com/Diiisco-Inc/diiisco-node/internal/ledger"
	"github.com/Diiisco-Inc/diiisco-node/internal/model"
	"github.com/Diiisco-Inc/diiisco-node/internal/rendezvous"
	"github.com/Diiisco-Inc/diiisco-node/internal/router"
	"github.com/Diiisco-Inc/diiisco-node/internal/session"
	"github.com/Diiisco-Inc/diiisco-node/internal/wireproto"
)

type fakeRouterSender struct {
	sent []wireproto.Role
}

func (f *fakeRouterSender) record(data []byte) {
	if env, err := wireproto.Unpack(data); err == nil {
		f.sent = append(f.sent, env.Role)
	}
}

func (f *fakeRouterSender) SendDirect(_ context.Context, _ peer.ID, data []byte) bool {
	f.record(data)
	return true
}

func (f *fakeRouterSender) Publish(_ context.Context, data []byte) error {
	f.record(data)
	return nil
}

func newTestProcessor(t *testing.T) (*Processor, *ledger.SimClient, *fakeRouterSender) {
	t.Helper()

	ledgerClient, err := ledger.NewSimClient()
	require.NoError(t, err)
	acct := ledgerClient.Account

	sender := &fakeRouterSender{}
	r := router.New(router.Config{DirectMessagingEnabled: true, FallbackToGossipsub: true}, sender, sender)

	bus := rendezvous.New()
	auctionEngine, err := auction.New(auction.Config{SelectionPolicy: "cheapest"}, ledgerClient, bus)
	require.NoError(t, err)

	sessions := session.New()
	accum := model.NewAccumulator(0, busPublisher{bus})

	cfg := Config{OwnWalletAddr: acct.Address(), ChargePerMillion: 1.0, ServedModels: map[string]bool{"gpt-test": true}}
	return New(cfg, ledgerClient, &fakeModelClient{}, r, auctionEngine, sessions, accum, bus, "self"), ledgerClient, sender
}

type busPublisher struct{ b *rendezvous.Bus }

func (p busPublisher) Publish(key string, value interface{}) { p.b.Publish(key, value) }

type fakeModelClient struct{}

func (fakeModelClient) GetResponse(context.Context, string, []model.ChatMessage) (string, error) {
	return "ok", nil
}
func (fakeModelClient) GetModels(context.Context) ([]model.Info, error) {
	return []model.Info{{ID: "gpt-test"}}, nil
}
func (fakeModelClient) CountEmbeddings(context.Context, string, []model.ChatMessage) (int, error) {
	return 10, nil
}

func signedEnvelope(t *testing.T, acct *ledger.Account, role wireproto.Role, id string, payload map[string]interface{}) *wireproto.Envelope {
	t.Helper()
	env := &wireproto.Envelope{
		Role:           role,
		ID:             id,
		Timestamp:      1,
		FromWalletAddr: acct.Address(),
		Payload:        payload,
	}
	require.NoError(t, wireproto.Sign(env, acct))
	return env
}

func TestProcessRejectsUnsigned(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	acct, err := ledger.GenerateAccount()
	require.NoError(t, err)

	env := &wireproto.Envelope{Role: wireproto.RoleListModels, FromWalletAddr: acct.Address()}
	err = p.Process(context.Background(), env, "peer1")

	var unsigned *Unsigned
	require.ErrorAs(t, err, &unsigned)
}

func TestProcessRejectsBadSignature(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	acct, err := ledger.GenerateAccount()
	require.NoError(t, err)

	env := signedEnvelope(t, acct, wireproto.RoleListModels, "", nil)
	env.Timestamp = 999999 // mutate after signing to invalidate

	err = p.Process(context.Background(), env, "peer1")
	var badSig *BadSignature
	require.ErrorAs(t, err, &badSig)
}

func TestProcessRejectsBadSender(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	acct, err := ledger.GenerateAccount()
	require.NoError(t, err)

	env := signedEnvelope(t, acct, wireproto.RoleListModels, "", nil)
	env.FromWalletAddr = "not-a-valid-address"

	err = p.Process(context.Background(), env, "peer1")
	var badSender *BadSender
	require.ErrorAs(t, err, &badSender)
}

func TestProcessUnknownRole(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	acct, err := ledger.GenerateAccount()
	require.NoError(t, err)

	env := signedEnvelope(t, acct, wireproto.Role("bogus"), "", nil)

	err = p.Process(context.Background(), env, "peer1")
	var unknown *UnknownRole
	require.ErrorAs(t, err, &unknown)
}

func TestProcessListModelsReplies(t *testing.T) {
	p, _, sender := newTestProcessor(t)
	acct, err := ledger.GenerateAccount()
	require.NoError(t, err)

	env := signedEnvelope(t, acct, wireproto.RoleListModels, "", nil)
	require.NoError(t, p.Process(context.Background(), env, "peer1"))
	require.Equal(t, []wireproto.Role{wireproto.RoleListModelsResponse}, sender.sent)
}

func TestProcessQuoteRequestDropsUnservedModel(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	acct, err := ledger.GenerateAccount()
	require.NoError(t, err)

	env := signedEnvelope(t, acct, wireproto.RoleQuoteRequest, "s1", map[string]interface{}{
		"model":  "unserved-model",
		"inputs": []interface{}{},
	})
	require.NoError(t, p.Process(context.Background(), env, "peer1"))
}

func TestProcessQuoteAcceptedStartsProviderSession(t *testing.T) {
	p, ledgerClient, _ := newTestProcessor(t)
	customer, err := ledger.GenerateAccount()
	require.NoError(t, err)
	ledgerClient.SetBalance(customer.Address(), 0, 1000)

	env := signedEnvelope(t, customer, wireproto.RoleQuoteAccepted, "sess-1", map[string]interface{}{
		"quote": map[string]interface{}{
			"totalPrice": 2.5,
			"model":      "gpt-test",
			"addr":       customer.Address(),
		},
	})
	require.NoError(t, p.Process(context.Background(), env, "peer1"))
}
