package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	acct, err := GenerateAccount()
	require.NoError(t, err)
	require.True(t, IsValidAddress(acct.Address()))
	require.Len(t, acct.Address(), addressLen)
}

func TestDecodeAddressRejectsBadChecksum(t *testing.T) {
	acct, err := GenerateAccount()
	require.NoError(t, err)

	addr := []byte(acct.Address())
	// Flip a character inside the payload region to corrupt the checksum.
	if addr[0] == 'A' {
		addr[0] = 'B'
	} else {
		addr[0] = 'A'
	}

	require.False(t, IsValidAddress(string(addr)))
}

func TestSimClientFundingLifecycle(t *testing.T) {
	sim, err := NewSimClient()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sim.CreateQuote(ctx, "q1", "CUSTOMER", 1_000_000))

	status, err := sim.VerifyQuoteFunded(ctx, "q1")
	require.NoError(t, err)
	require.False(t, status.Funded)

	require.NoError(t, sim.FundQuote(ctx, "q1", 1_000_000))

	status, err = sim.VerifyQuoteFunded(ctx, "q1")
	require.NoError(t, err)
	require.True(t, status.Funded)

	conf, err := sim.CompleteQuote(ctx, "q1", "PROVIDER")
	require.NoError(t, err)
	require.NotEmpty(t, conf.TxID)
}
