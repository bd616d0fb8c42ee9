package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/xvierd/notetime/internal/logging"
	"github.com/xvierd/notetime/internal/ports"
)

// Client pushes sync payloads with an OAuth2-authenticated HTTP client.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Ensure Client implements ports.SyncBackend.
var _ ports.SyncBackend = (*Client)(nil)

// NewClient creates a client from the cached token. Refreshed tokens are
// written back to cfg.TokenPath.
func NewClient(ctx context.Context, cfg Config, logger logging.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	tok, err := LoadToken(cfg.TokenPath)
	if err != nil {
		return nil, err
	}
	ts := cfg.oauth2Config("").TokenSource(ctx, tok)
	return &Client{
		endpoint: cfg.Endpoint,
		httpClient: oauth2.NewClient(ctx, &savingTokenSource{
			ts:     ts,
			path:   cfg.TokenPath,
			last:   tok.AccessToken,
			logger: logger,
		}),
	}, nil
}

// savingTokenSource wraps a TokenSource and persists refreshed tokens.
type savingTokenSource struct {
	ts     oauth2.TokenSource
	path   string
	last   string
	logger logging.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil {
			s.logger.Warn("could not save refreshed token", "error", err)
		}
	}
	return tok, nil
}

// Push POSTs the payload as JSON to the sync endpoint.
func (c *Client) Push(ctx context.Context, payload ports.SyncPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding sync payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sync endpoint error %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
