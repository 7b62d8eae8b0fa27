// Package oauth holds the OAuth 2.0 types shared by the estategate
// components: client registrations, tokens, authorized clients and the
// Authorizer contract.
//
// An Authorizer turns an AuthorizationRequest into an AuthorizedClient.
// The concrete implementation lives in internal/oauth (stored-token lookup,
// refresh, client credentials); internal/refresh wraps any Authorizer to
// collapse concurrent requests for the same session and registration.
//
//	var a oauth.Authorizer = provider
//	client, err := a.Authorize(ctx, &oauth.AuthorizationRequest{
//	    RegistrationID: "keycloak",
//	    SessionID:      sessionID,
//	})
//	if errors.Is(err, oauth.ErrAuthorizationRequired) {
//	    // redirect the browser to the login endpoint
//	}
package oauth
