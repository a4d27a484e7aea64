package p2pnet

import "time"

// Config configures one Host. Values mirror the daemon's node.*/relay.*
// configuration keys.
type Config struct {
	// ListenAddrs are the multiaddrs to listen on, e.g.
	// "/ip4/0.0.0.0/tcp/4001".
	ListenAddrs []string

	// Bootstrap lists multiaddrs (or ledger-resolvable aliases) dialed at
	// startup and by the reconnection supervisor's bootstrap recovery.
	Bootstrap []string

	MinConnections            int
	MaxConnections            int
	InboundConnectionThreshold int

	EnableRelayServer    bool
	EnableRelayClient    bool
	EnableDCUtR          bool
	MaxRelayedConnections int

	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinConnections <= 0 {
		c.MinConnections = 2
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 100
	}
	if c.InboundConnectionThreshold <= 0 {
		c.InboundConnectionThreshold = c.MaxConnections
	}
	if c.MaxRelayedConnections <= 0 {
		c.MaxRelayedConnections = 128
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = 30 * time.Second
	}
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = 10 * time.Second
	}
	return c
}
