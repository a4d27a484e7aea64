package config

import "fmt"

// MissingConfig is returned at start-up when a field that has no safe
// default is left unset. It is fatal: the daemon does not start without it.
type MissingConfig struct {
	Field string
}

func (e *MissingConfig) Error() string { return fmt.Sprintf("missing required config: %s", e.Field) }

// Validate checks the fields Load cannot safely default. It is also
// exported so a caller that assembles a Config by hand (tests, embedding)
// can re-run the same checks.
func (c *Config) Validate() error {
	if c.Node.URL == "" {
		return &MissingConfig{Field: "node.url"}
	}
	if c.Algorand.Addr == "" {
		return &MissingConfig{Field: "algorand.addr"}
	}
	if c.Algorand.Mnemonic == "" {
		return &MissingConfig{Field: "algorand.mnemonic"}
	}
	if c.API.BearerAuthentication && len(c.API.Keys) == 0 {
		return &MissingConfig{Field: "api.keys"}
	}
	switch c.QuoteEngine.QuoteSelectionFunction {
	case "cheapest", "first", "random", "highest-stake":
	default:
		return fmt.Errorf("quoteEngine.quoteSelectionFunction: unknown policy %q", c.QuoteEngine.QuoteSelectionFunction)
	}
	return nil
}
