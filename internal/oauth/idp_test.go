package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"estategate/internal/session"
	"estategate/pkg/oauth"
)

// fakeIdP is a token endpoint that records the grants it serves.
type fakeIdP struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []map[string]string

	calls       atomic.Int32
	issued      atomic.Int32
	rejectGrant atomic.Bool // answer refresh_token with invalid_grant
	failServer  atomic.Bool // answer every request with 500
	omitRefresh atomic.Bool // don't rotate refresh tokens

	// beforeIssue runs before a successful token response is written.
	beforeIssue func()
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	idp := &fakeIdP{}
	idp.server = httptest.NewServer(http.HandlerFunc(idp.serveToken))
	t.Cleanup(idp.server.Close)
	return idp
}

func (f *fakeIdP) TokenURL() string { return f.server.URL + "/token" }
func (f *fakeIdP) AuthURL() string  { return f.server.URL + "/auth" }

func (f *fakeIdP) lastRequest() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeIdP) serveToken(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, _, _ := r.BasicAuth()
	req := map[string]string{"client_id": user}
	for k := range r.PostForm {
		req[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.failServer.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "server_error"})
		return
	}

	switch req["grant_type"] {
	case "refresh_token":
		if f.rejectGrant.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
	case "authorization_code":
		if req["code"] != "good-code" || req["code_verifier"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
	case "client_credentials":
	default:
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unsupported_grant_type"})
		return
	}

	if f.beforeIssue != nil {
		f.beforeIssue()
	}

	n := f.issued.Add(1)
	resp := map[string]any{
		"access_token": fmt.Sprintf("access-%d", n),
		"token_type":   "Bearer",
		"expires_in":   3600,
		"scope":        "openid profile",
	}
	if !f.omitRefresh.Load() && req["grant_type"] != "client_credentials" {
		resp["refresh_token"] = fmt.Sprintf("refresh-%d", n)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeIdP) registration(id string, grant oauth.GrantType) oauth.Registration {
	return oauth.Registration{
		ID:           id,
		ClientID:     "estate-web",
		ClientSecret: "s3cret",
		AuthURL:      f.AuthURL(),
		TokenURL:     f.TokenURL(),
		RedirectURL:  "http://gateway.test/login/oauth2/code/" + id,
		Scopes:       []string{"openid", "profile"},
		GrantType:    grant,
	}
}

// newTestSession creates a session in a fresh memory store.
func newTestSession(t *testing.T) (*session.MemoryStore, string) {
	t.Helper()
	store := session.NewMemoryStore(time.Hour)
	t.Cleanup(store.Stop)
	s, err := store.Create(context.Background())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return store, s.ID
}

// storeClient saves an authorized client directly.
func storeClient(t *testing.T, repo *ClientRepository, sessionID string, client *oauth.AuthorizedClient) {
	t.Helper()
	if err := repo.Save(context.Background(), sessionID, client); err != nil {
		t.Fatalf("failed to save client: %v", err)
	}
}
