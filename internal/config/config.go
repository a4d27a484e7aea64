// Package config defines the daemon's single configuration struct and its
// go-flags-based CLI/environment loader, covering every key in the
// node's configuration contract. Nothing constructs its own config
// beyond this package; every other package receives an already-loaded
// value explicitly.
package config

import (
	"fmt"
	"time"

	flags "github.com/jessevdk/go-flags"
)

// NodeConfig controls the peer network's listen/advertise behavior and
// connection pool bounds.
type NodeConfig struct {
	Port int    `long:"port" env:"NODE_PORT" default:"4001" description:"libp2p listen port"`
	URL  string `long:"url" env:"NODE_URL" description:"advertised host, used to build this node's public multiaddr"`

	MinConnections int `long:"minConnections" env:"NODE_MIN_CONNECTIONS" default:"2" description:"connection manager low-water mark"`
	MaxConnections int `long:"maxConnections" env:"NODE_MAX_CONNECTIONS" default:"100" description:"connection manager high-water mark"`
}

// RelayConfig controls circuit-relay and hole-punch participation.
type RelayConfig struct {
	EnableRelayServer bool `long:"enableRelayServer" env:"RELAY_ENABLE_SERVER" description:"advertise relay-server capability if publicly reachable"`
	EnableRelayClient bool `long:"enableRelayClient" env:"RELAY_ENABLE_CLIENT" description:"accept being dialed through relays"`
	EnableDCUtR       bool `long:"enableDCUtR" env:"RELAY_ENABLE_DCUTR" description:"enable hole-punch upgrade of relayed streams"`

	MaxRelayedConnections int           `long:"maxRelayedConnections" env:"RELAY_MAX_CONNECTIONS" default:"128" description:"relay-server reservation cap"`
	MaxDataPerConnection  int64         `long:"maxDataPerConnection" env:"RELAY_MAX_DATA_PER_CONNECTION" default:"0" description:"relay-server per-connection byte cap, 0 for unlimited"`
	MaxRelayDuration      time.Duration `long:"maxRelayDuration" env:"RELAY_MAX_DURATION" default:"2m" description:"relay-server per-reservation duration cap"`
}

// DirectMessagingConfig controls the direct stream protocol.
type DirectMessagingConfig struct {
	Enabled             bool          `long:"enabled" env:"DIRECT_MESSAGING_ENABLED" description:"gate on the direct protocol"`
	Timeout             time.Duration `long:"timeout" env:"DIRECT_MESSAGING_TIMEOUT" default:"10s" description:"per-stream abort timeout"`
	FallbackToGossipsub bool          `long:"fallbackToGossipsub" env:"DIRECT_MESSAGING_FALLBACK" default:"true" description:"broadcast fallback on direct failure"`
	Protocol            string        `long:"protocol" env:"DIRECT_MESSAGING_PROTOCOL" default:"/diiisco/direct/1.0.0" description:"direct stream protocol id"`
	MaxMessageSize      int64         `long:"maxMessageSize" env:"DIRECT_MESSAGING_MAX_MESSAGE_SIZE" default:"10485760" description:"frame cap in bytes"`
}

// QuoteEngineConfig controls the auction window and its pricing/selection
// policies.
type QuoteEngineConfig struct {
	WaitTime               time.Duration `long:"waitTime" env:"QUOTE_ENGINE_WAIT_TIME" default:"5s" description:"auction window"`
	QuoteSelectionFunction string        `long:"quoteSelectionFunction" env:"QUOTE_ENGINE_SELECTION" default:"cheapest" description:"policy tag: cheapest, first, random, highest-stake"`
	QuoteCreationFunction  []string      `long:"quoteCreationFunction" env:"QUOTE_ENGINE_CREATION" description:"ordered pricing pipeline tags; not read by the daemon, which always prices at the flat chargePer1MTokens rate"`
}

// ModelsConfig controls whether this node serves inference and at what
// rate.
type ModelsConfig struct {
	Enabled           bool    `long:"enabled" env:"MODELS_ENABLED" description:"whether this node acts as a provider"`
	BaseURL           string  `long:"baseURL" env:"MODELS_BASE_URL" default:"http://127.0.0.1:8000" description:"local model runtime base URL"`
	Port              int     `long:"port" env:"MODELS_PORT" default:"8000" description:"local model runtime port, informational when baseURL is set explicitly"`
	APIKey            string  `long:"apiKey" env:"MODELS_API_KEY" description:"bearer token for the local model runtime, if it requires one"`
	ChargePer1MTokens float64 `long:"chargePer1MTokens" env:"MODELS_CHARGE_PER_1M_TOKENS" default:"1.0" description:"flat USDC rate per million tokens"`
}

// AlgorandClientConfig addresses the algod REST endpoint.
type AlgorandClientConfig struct {
	Host  string `long:"host" env:"ALGORAND_CLIENT_HOST" default:"http://127.0.0.1" description:"algod host"`
	Port  int    `long:"port" env:"ALGORAND_CLIENT_PORT" default:"4001" description:"algod port"`
	Token string `long:"token" env:"ALGORAND_CLIENT_TOKEN" description:"algod API token"`
}

// AlgorandConfig carries this node's ledger identity and endpoint.
type AlgorandConfig struct {
	Addr     string               `long:"addr" env:"ALGORAND_ADDR" description:"this node's ledger address"`
	Mnemonic string               `long:"mnemonic" env:"ALGORAND_MNEMONIC" description:"this node's ledger account mnemonic"`
	Network  string               `long:"network" env:"ALGORAND_NETWORK" default:"testnet" description:"algorand network name"`
	Client   AlgorandClientConfig `group:"Algorand Client" namespace:"client"`

	// ProtocolAssetID is the asset a quote-request's sender must be opted
	// in to before a provider answers it. Not part of the enumerated CLI/
	// environment table but required to call checkIfOptedInToAsset.
	ProtocolAssetID uint64 `long:"protocolAssetId" env:"ALGORAND_PROTOCOL_ASSET_ID" description:"asset id a quote-request sender must be opted in to"`
}

// APIConfig controls the HTTP façade surface.
type APIConfig struct {
	Enabled              bool     `long:"enabled" env:"API_ENABLED" default:"true" description:"serve the HTTP façade"`
	Port                 int      `long:"port" env:"API_PORT" default:"8080" description:"façade listen port"`
	BearerAuthentication bool     `long:"bearerAuthentication" env:"API_BEARER_AUTH" description:"require a bearer token on /v1/* and /peers"`
	Keys                 []string `long:"keys" env:"API_KEYS" env-delim:"," description:"allowlisted bearer tokens"`
}

// Config is the daemon's single configuration value, loaded once at
// startup and passed explicitly to every component constructor.
type Config struct {
	Node            NodeConfig            `group:"Node" namespace:"node"`
	Bootstrap       []string              `long:"libp2pBootstrapServers" env:"LIBP2P_BOOTSTRAP_SERVERS" env-delim:"," description:"bootstrap multiaddrs or ledger-resolvable aliases"`
	Relay           RelayConfig           `group:"Relay" namespace:"relay"`
	DirectMessaging DirectMessagingConfig `group:"Direct Messaging" namespace:"directMessaging"`
	QuoteEngine     QuoteEngineConfig     `group:"Quote Engine" namespace:"quoteEngine"`
	Models          ModelsConfig          `group:"Models" namespace:"models"`
	Algorand        AlgorandConfig        `group:"Algorand" namespace:"algorand"`
	API             APIConfig             `group:"API" namespace:"api"`

	// IdentityPath is the node's persisted identity key file. Not part of
	// the enumerated CLI/environment table but required to locate the
	// one artifact the daemon persists to disk.
	IdentityPath string `long:"identityPath" env:"IDENTITY_PATH" default:"identity.key" description:"path to the persisted libp2p identity key"`

	LogLevel string `long:"logLevel" env:"LOG_LEVEL" default:"info" description:"level for the daemon's own (DAEM) logger; other subsystems log at info"`
}

// Load parses args (typically os.Args[1:]) plus environment overrides
// into a Config.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, err
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
