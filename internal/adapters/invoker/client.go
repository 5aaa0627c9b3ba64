// Package invoker posts execution requests to running function services.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"faas-engine/internal/core/engine"

	"github.com/rs/zerolog"
)

var _ engine.Invoker = (*Client)(nil)

// maxResponseBytes caps how much of a function reply is read.
const maxResponseBytes = 8 << 20

type Client struct {
	http *http.Client
	lg   zerolog.Logger
}

// New returns a client whose requests time out after timeout. A zero timeout
// relies on the caller's context only.
func New(timeout time.Duration, lg zerolog.Logger) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
		lg:   lg.With().Str("adapter", "invoker").Logger(),
	}
}

// Invoke posts req to <serviceURL>/execute and decodes the JSON object it
// returns.
func (c *Client) Invoke(ctx context.Context, serviceURL string, req engine.InvokeRequest) (map[string]any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(serviceURL, "/") + "/execute"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.lg.Debug().Str("url", url).Str("execution_id", req.ExecutionID).Msg("invoking function service")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read function response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("function returned non-2xx status: %s - %s", resp.Status, string(bodyBytes))
	}

	var reply map[string]any
	if err := json.Unmarshal(bodyBytes, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMalformedResponse, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: empty body", engine.ErrMalformedResponse)
	}
	return reply, nil
}
