package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"estategate/internal/session"
	"estategate/pkg/oauth"
)

type providerFixture struct {
	idp       *fakeIdP
	store     *session.MemoryStore
	sessionID string
	repo      *ClientRepository
	provider  *Provider
}

func newProviderFixture(t *testing.T) *providerFixture {
	t.Helper()
	idp := newFakeIdP(t)
	store, sessionID := newTestSession(t)
	repo := NewClientRepository(store)
	registry := NewRegistry([]oauth.Registration{
		idp.registration("keycloak", oauth.GrantAuthorizationCode),
		idp.registration("service", oauth.GrantClientCredentials),
	}, "keycloak")

	return &providerFixture{
		idp:       idp,
		store:     store,
		sessionID: sessionID,
		repo:      repo,
		provider:  NewProvider(registry, repo, WithHTTPClient(idp.server.Client())),
	}
}

func (f *providerFixture) request(registration string) *oauth.AuthorizationRequest {
	return &oauth.AuthorizationRequest{RegistrationID: registration, SessionID: f.sessionID}
}

func TestProvider_ReturnsValidStoredClient(t *testing.T) {
	f := newProviderFixture(t)
	storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
		RegistrationID: "keycloak",
		Token:          &oauth.Token{AccessToken: "stored", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour)},
	})

	client, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
	require.NoError(t, err)
	assert.Equal(t, "stored", client.AccessToken())
	assert.Zero(t, f.idp.calls.Load(), "valid token must not hit the token endpoint")
}

func TestProvider_RefreshesExpiredClient(t *testing.T) {
	f := newProviderFixture(t)
	storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
		RegistrationID: "keycloak",
		Principal:      "alice",
		Token:          &oauth.Token{AccessToken: "old", RefreshToken: "rt-old", ExpiresAt: time.Now().Add(-time.Minute)},
	})

	client, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
	require.NoError(t, err)
	assert.Equal(t, "access-1", client.AccessToken())
	assert.Equal(t, "refresh-1", client.Token.RefreshToken)
	assert.Equal(t, "alice", client.Principal)

	last := f.idp.lastRequest()
	assert.Equal(t, "refresh_token", last["grant_type"])
	assert.Equal(t, "rt-old", last["refresh_token"])
	assert.Equal(t, "estate-web", last["client_id"])

	stored, err := f.repo.Load(context.Background(), f.sessionID, "keycloak")
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken(), "refreshed client is saved")
}

func TestProvider_RefreshesWithinClockSkew(t *testing.T) {
	f := newProviderFixture(t)
	storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
		RegistrationID: "keycloak",
		Token:          &oauth.Token{AccessToken: "old", RefreshToken: "rt", ExpiresAt: time.Now().Add(30 * time.Second)},
	})

	client, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
	require.NoError(t, err)
	assert.Equal(t, "access-1", client.AccessToken())
}

func TestProvider_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	f := newProviderFixture(t)
	f.idp.omitRefresh.Store(true)
	storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
		RegistrationID: "keycloak",
		Token:          &oauth.Token{AccessToken: "old", RefreshToken: "rt-keep", ExpiresAt: time.Now().Add(-time.Minute)},
	})

	client, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
	require.NoError(t, err)
	assert.Equal(t, "rt-keep", client.Token.RefreshToken)
}

func TestProvider_AuthorizationRequired(t *testing.T) {
	f := newProviderFixture(t)

	t.Run("nothing stored", func(t *testing.T) {
		_, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
		assert.ErrorIs(t, err, oauth.ErrAuthorizationRequired)
	})

	t.Run("no session", func(t *testing.T) {
		_, err := f.provider.Authorize(context.Background(), &oauth.AuthorizationRequest{RegistrationID: "keycloak"})
		assert.ErrorIs(t, err, oauth.ErrAuthorizationRequired)
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
			RegistrationID: "keycloak",
			Token:          &oauth.Token{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Minute)},
		})
		_, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
		assert.ErrorIs(t, err, oauth.ErrAuthorizationRequired)
		assert.ErrorIs(t, err, oauth.ErrNoRefreshToken)
	})

	assert.Zero(t, f.idp.calls.Load())
}

func TestProvider_RejectedRefreshTokenRemovesClient(t *testing.T) {
	f := newProviderFixture(t)
	f.idp.rejectGrant.Store(true)
	storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
		RegistrationID: "keycloak",
		Token:          &oauth.Token{AccessToken: "old", RefreshToken: "revoked", ExpiresAt: time.Now().Add(-time.Minute)},
	})

	_, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
	require.Error(t, err)
	assert.ErrorIs(t, err, oauth.ErrAuthorizationRequired)

	var retrieveErr *oauth2.RetrieveError
	require.True(t, errors.As(err, &retrieveErr))
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)

	stored, err := f.repo.Load(context.Background(), f.sessionID, "keycloak")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestProvider_SessionEndedDuringRefresh(t *testing.T) {
	f := newProviderFixture(t)
	storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
		RegistrationID: "keycloak",
		Token:          &oauth.Token{AccessToken: "old", RefreshToken: "rt-old", ExpiresAt: time.Now().Add(-time.Minute)},
	})
	f.idp.beforeIssue = func() {
		_ = f.store.Delete(context.Background(), f.sessionID)
	}

	_, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
	require.Error(t, err)
	assert.ErrorIs(t, err, oauth.ErrAuthorizationRequired)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, int32(1), f.idp.issued.Load())
}

func TestProvider_ServerErrorKeepsClient(t *testing.T) {
	f := newProviderFixture(t)
	f.idp.failServer.Store(true)
	storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
		RegistrationID: "keycloak",
		Token:          &oauth.Token{AccessToken: "old", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute)},
	})

	_, err := f.provider.Authorize(context.Background(), f.request("keycloak"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, oauth.ErrAuthorizationRequired)

	var retrieveErr *oauth2.RetrieveError
	assert.True(t, errors.As(err, &retrieveErr), "upstream error is wrapped, not replaced")

	stored, err := f.repo.Load(context.Background(), f.sessionID, "keycloak")
	require.NoError(t, err)
	assert.NotNil(t, stored, "transient failures keep the stored client")
}

func TestProvider_ClientCredentials(t *testing.T) {
	f := newProviderFixture(t)

	client, err := f.provider.Authorize(context.Background(), f.request("service"))
	require.NoError(t, err)
	assert.Equal(t, "access-1", client.AccessToken())
	assert.Equal(t, "client_credentials", f.idp.lastRequest()["grant_type"])

	again, err := f.provider.Authorize(context.Background(), f.request("service"))
	require.NoError(t, err)
	assert.Equal(t, "access-1", again.AccessToken(), "stored token reused while valid")
	assert.Equal(t, int32(1), f.idp.calls.Load())
}

func TestProvider_ClientCredentialsWithoutSession(t *testing.T) {
	f := newProviderFixture(t)

	for i := 1; i <= 2; i++ {
		_, err := f.provider.Authorize(context.Background(), &oauth.AuthorizationRequest{RegistrationID: "service"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), f.idp.calls.Load(), "nothing to cache in without a session")
}

func TestProvider_SessionFromContext(t *testing.T) {
	f := newProviderFixture(t)
	storeClient(t, f.repo, f.sessionID, &oauth.AuthorizedClient{
		RegistrationID: "keycloak",
		Token:          &oauth.Token{AccessToken: "stored", ExpiresAt: time.Now().Add(time.Hour)},
	})

	ctx := session.NewContext(context.Background(), &session.Session{ID: f.sessionID})
	client, err := f.provider.Authorize(ctx, &oauth.AuthorizationRequest{})
	require.NoError(t, err, "empty registration resolves to the default")
	assert.Equal(t, "stored", client.AccessToken())
}

func TestProvider_UnknownRegistration(t *testing.T) {
	f := newProviderFixture(t)
	_, err := f.provider.Authorize(context.Background(), f.request("okta"))
	assert.ErrorIs(t, err, oauth.ErrUnknownRegistration)
}
