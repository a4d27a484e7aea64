package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AlgodClient drives the on-chain calls over HTTP against the node's
// configured Algorand-compatible endpoint. The transport is a plain
// stdlib *http.Client against a small REST shim the deployment's
// smart-contract service is expected to expose; local signing/
// verification still happens against the embedded Account, never sent to
// the remote endpoint.
type AlgodClient struct {
	*Account

	baseURL string
	hc      *http.Client
}

// NewAlgodClient builds a client against baseURL using acct as the node's
// own ledger identity.
func NewAlgodClient(baseURL string, acct *Account, timeout time.Duration) *AlgodClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlgodClient{
		Account: acct,
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *AlgodClient) post(ctx context.Context, path string, body, out interface{}) error {
	buf := &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("ledger call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ledger call %s: status %d", path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

func (c *AlgodClient) CreateQuote(ctx context.Context, quoteID, customerAddr string, usdcBaseUnits int64) error {
	return c.post(ctx, "/v1/quotes/create", map[string]interface{}{
		"quoteId":       quoteID,
		"customerAddr":  customerAddr,
		"usdcBaseUnits": usdcBaseUnits,
	}, nil)
}

func (c *AlgodClient) FundQuote(ctx context.Context, quoteID string, usdcBaseUnits int64) error {
	return c.post(ctx, "/v1/quotes/fund", map[string]interface{}{
		"quoteId":       quoteID,
		"usdcBaseUnits": usdcBaseUnits,
	}, nil)
}

func (c *AlgodClient) VerifyQuoteFunded(ctx context.Context, quoteID string) (FundedStatus, error) {
	var out FundedStatus
	err := c.post(ctx, "/v1/quotes/funded-status", map[string]interface{}{"quoteId": quoteID}, &out)
	return out, err
}

func (c *AlgodClient) CompleteQuote(ctx context.Context, quoteID, provider string) (Confirmation, error) {
	var out Confirmation
	err := c.post(ctx, "/v1/quotes/complete", map[string]interface{}{
		"quoteId":  quoteID,
		"provider": provider,
	}, &out)
	return out, err
}

func (c *AlgodClient) RefundQuote(ctx context.Context, quoteID string) error {
	return c.post(ctx, "/v1/quotes/refund", map[string]interface{}{"quoteId": quoteID}, nil)
}

func (c *AlgodClient) CheckIfOptedInToAsset(ctx context.Context, addr string, assetID uint64) (OptInStatus, error) {
	var out OptInStatus
	err := c.post(ctx, "/v1/assets/opted-in", map[string]interface{}{
		"addr":    addr,
		"assetId": assetID,
	}, &out)
	return out, err
}

func (c *AlgodClient) OptInToAsset(ctx context.Context, addr string, assetID uint64) error {
	return c.post(ctx, "/v1/assets/opt-in", map[string]interface{}{
		"addr":    addr,
		"assetId": assetID,
	}, nil)
}

func (c *AlgodClient) ResolveBootstrapAlias(ctx context.Context, alias string) (string, bool, error) {
	if !hasBootstrapSuffix(alias) {
		return "", false, nil
	}

	var out struct {
		Multiaddr string `json:"multiaddr"`
	}
	if err := c.post(ctx, "/v1/bootstrap/resolve", map[string]interface{}{"alias": alias}, &out); err != nil {
		return "", false, err
	}
	return out.Multiaddr, true, nil
}

func hasBootstrapSuffix(alias string) bool {
	return len(alias) > len(bootstrapAliasSuffix) &&
		alias[len(alias)-len(bootstrapAliasSuffix):] == bootstrapAliasSuffix
}
