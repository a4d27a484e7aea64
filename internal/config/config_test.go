package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validArgs() []string {
	return []string{
		"--node.url=1.2.3.4",
		"--algorand.addr=ALGOADDR",
		"--algorand.mnemonic=word word word",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(validArgs())
	require.NoError(t, err)

	require.Equal(t, 4001, cfg.Node.Port)
	require.Equal(t, 2, cfg.Node.MinConnections)
	require.Equal(t, 100, cfg.Node.MaxConnections)
	require.Equal(t, "cheapest", cfg.QuoteEngine.QuoteSelectionFunction)
	require.Equal(t, 5*time.Second, cfg.QuoteEngine.WaitTime)
	require.Equal(t, int64(10485760), cfg.DirectMessaging.MaxMessageSize)
	require.Equal(t, 10*time.Second, cfg.DirectMessaging.Timeout)
	require.True(t, cfg.DirectMessaging.FallbackToGossipsub)
	require.True(t, cfg.API.Enabled)
}

func TestLoadMissingRequiredFields(t *testing.T) {
	_, err := Load([]string{})
	require.Error(t, err)
}

func TestValidateRejectsBearerAuthWithoutKeys(t *testing.T) {
	cfg, err := Load(validArgs())
	require.NoError(t, err)

	cfg.API.BearerAuthentication = true
	err = cfg.Validate()
	require.Error(t, err)
	var mc *MissingConfig
	require.ErrorAs(t, err, &mc)
	require.Equal(t, "api.keys", mc.Field)
}

func TestValidateRejectsUnknownSelectionPolicy(t *testing.T) {
	cfg, err := Load(validArgs())
	require.NoError(t, err)

	cfg.QuoteEngine.QuoteSelectionFunction = "nonsense"
	require.Error(t, cfg.Validate())
}

func TestLoadBootstrapServersSplitOnComma(t *testing.T) {
	args := append(validArgs(), "--libp2pBootstrapServers=/ip4/1.2.3.4/tcp/4001,/ip4/5.6.7.8/tcp/4001")
	cfg, err := Load(args)
	require.NoError(t, err)
	require.Len(t, cfg.Bootstrap, 2)
}
