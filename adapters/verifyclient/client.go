// Package verifyclient calls a remote VeriGate verification endpoint.
package verifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

// DefaultTimeout bounds a single verification round trip
const DefaultTimeout = 10 * time.Second

type verifyRequest struct {
	Token   string `json:"token"`
	SiteKey string `json:"siteKey"`
}

type verifyResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Reason  core.Reason  `json:"reason"`
	Data    *core.Claims `json:"data"`
}

// Client posts tokens to the /verify endpoint. Failures are never retried.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a client for endpoint, the full URL of the verify handler.
// A nil httpClient gets a client with DefaultTimeout.
func New(endpoint string, httpClient *http.Client) ports.RemoteVerifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		endpoint: endpoint,
		http:     httpClient,
	}
}

// Verify submits token for siteKey
func (c *Client) Verify(ctx context.Context, token, siteKey string) (core.Verdict, error) {
	body, err := json.Marshal(verifyRequest{Token: token, SiteKey: siteKey})
	if err != nil {
		return core.Verdict{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return core.Verdict{}, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return core.Verdict{}, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.Verdict{}, fmt.Errorf("%w: unreadable response (status %d): %v", core.ErrTransport, resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK && out.Success && out.Data != nil:
		return core.Verdict{Accepted: true, Claims: *out.Data}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && out.Reason != "":
		return core.Reject(out.Reason), nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return core.Verdict{}, fmt.Errorf("%w: %s", core.ErrInvalidInput, out.Error)
	default:
		return core.Verdict{}, fmt.Errorf("%w: unexpected response (status %d): %s", core.ErrTransport, resp.StatusCode, out.Error)
	}
}
