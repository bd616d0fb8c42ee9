// Package remote pushes exported tracking data to a remote sync endpoint,
// authenticating with OAuth2 authorization code + PKCE.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrNotLoggedIn is returned when no cached token exists.
var ErrNotLoggedIn = errors.New("not logged in: run `notetime sync login`")

// Config holds the OAuth2 client and endpoint settings.
type Config struct {
	ClientID     string
	AuthURL      string
	TokenURL     string
	Endpoint     string
	RedirectPort int
	Scopes       []string
	TokenPath    string
}

// Validate reports missing settings.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return errors.New("sync.client_id is not configured")
	case c.AuthURL == "" || c.TokenURL == "":
		return errors.New("sync.auth_url and sync.token_url must be configured")
	case c.Endpoint == "":
		return errors.New("sync.endpoint is not configured")
	case c.TokenPath == "":
		return errors.New("token path is not set")
	}
	return nil
}

func (c Config) oauth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.ClientID,
		Scopes:      c.Scopes,
		RedirectURL: redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// LoadToken loads a previously saved token. It returns ErrNotLoggedIn when
// none exists.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", path, err)
	}
	return &tok, nil
}

// SaveToken atomically persists tok with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// Login runs the authorization code flow with a loopback redirect on
// 127.0.0.1:RedirectPort. open is handed the URL the user must visit.
func Login(ctx context.Context, cfg Config, open func(authURL string) error) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.RedirectPort))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for redirect: %w", err)
	}
	return LoginWithListener(ctx, cfg, ln, open)
}

// LoginWithListener is Login on an existing listener, which it closes.
func LoginWithListener(ctx context.Context, cfg Config, ln net.Listener, open func(authURL string) error) (*oauth2.Token, error) {
	defer ln.Close()

	redirectURL := fmt.Sprintf("http://%s/callback", ln.Addr().String())
	oc := cfg.oauth2Config(redirectURL)
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("state") != state:
			res.err = errors.New("state mismatch in authorization callback")
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("authorization callback without code")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "notetime is authorized. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	authURL := oc.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	if err := open(authURL); err != nil {
		return nil, fmt.Errorf("failed to open authorization URL: %w", err)
	}

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := oc.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if cfg.TokenPath != "" {
		if err := SaveToken(cfg.TokenPath, tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}
