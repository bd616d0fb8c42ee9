package remote

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/ports"
)

// fakeProvider is an OAuth2 token endpoint that verifies PKCE.
type fakeProvider struct {
	challenge string
	verified  bool
}

func (p *fakeProvider) tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		sum := sha256.Sum256([]byte(r.Form.Get("code_verifier")))
		p.verified = base64.RawURLEncoding.EncodeToString(sum[:]) == p.challenge
		if r.Form.Get("code") != "the-code" || !p.verified {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"at-1","token_type":"Bearer","refresh_token":"rt-1","expires_in":3600}`)
	}
}

func testConfig(t *testing.T, tokenURL string) Config {
	return Config{
		ClientID:  "notetime-cli",
		AuthURL:   "https://auth.example.com/authorize",
		TokenURL:  tokenURL,
		Endpoint:  "https://sync.example.com/push",
		TokenPath: filepath.Join(t.TempDir(), "sync-token.json"),
	}
}

func TestLoginWithListener(t *testing.T) {
	provider := &fakeProvider{}
	ts := httptest.NewServer(provider.tokenHandler(t))
	defer ts.Close()
	cfg := testConfig(t, ts.URL)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	browser := func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.Equal(t, "notetime-cli", q.Get("client_id"))
		provider.challenge = q.Get("code_challenge")

		cb := q.Get("redirect_uri") + "?code=the-code&state=" + url.QueryEscape(q.Get("state"))
		resp, err := http.Get(cb)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tok, err := LoginWithListener(ctx, cfg, ln, browser)
	require.NoError(t, err)
	assert.True(t, provider.verified)
	assert.Equal(t, "at-1", tok.AccessToken)

	saved, err := LoadToken(cfg.TokenPath)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", saved.RefreshToken)
}

func TestLoginWithListener_StateMismatch(t *testing.T) {
	ts := httptest.NewServer((&fakeProvider{}).tokenHandler(t))
	defer ts.Close()
	cfg := testConfig(t, ts.URL)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	browser := func(authURL string) error {
		u, _ := url.Parse(authURL)
		resp, err := http.Get(u.Query().Get("redirect_uri") + "?code=the-code&state=forged")
		require.NoError(t, err)
		resp.Body.Close()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = LoginWithListener(ctx, cfg, ln, browser)
	assert.ErrorContains(t, err, "state mismatch")
}

func TestLoadToken_Missing(t *testing.T) {
	_, err := LoadToken(filepath.Join(t.TempDir(), "none.json"))
	assert.True(t, errors.Is(err, ErrNotLoggedIn))
}

func TestClient_Push(t *testing.T) {
	var got ports.SyncPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/token")
	cfg.Endpoint = srv.URL + "/push"
	require.NoError(t, SaveToken(cfg.TokenPath, &oauth2.Token{
		AccessToken: "at-1",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))

	client, err := NewClient(context.Background(), cfg, nil)
	require.NoError(t, err)

	payload := ports.SyncPayload{
		Entries:  []domain.TimeEntry{{ID: "e1", FilePath: "a.md", Duration: 1000, EndTime: 1000}},
		Snapshot: domain.NewTrackerData(),
	}
	require.NoError(t, client.Push(context.Background(), payload))
	assert.Equal(t, "Bearer at-1", auth)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "e1", got.Entries[0].ID)
}

func TestClient_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/token")
	cfg.Endpoint = srv.URL
	require.NoError(t, SaveToken(cfg.TokenPath, &oauth2.Token{AccessToken: "x", Expiry: time.Now().Add(time.Hour)}))

	client, err := NewClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	err = client.Push(context.Background(), ports.SyncPayload{Snapshot: domain.NewTrackerData()})
	assert.ErrorContains(t, err, "429")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestNewClient_RequiresLogin(t *testing.T) {
	cfg := testConfig(t, "https://auth.example.com/token")
	_, err := NewClient(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	cfg.ClientID = ""
	_, err = NewClient(context.Background(), cfg, nil)
	assert.Error(t, err)
}
