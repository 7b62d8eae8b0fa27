package oauth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"estategate/pkg/oauth"
)

// principalClaims are tried in order to name the logged-in user.
var principalClaims = []string{"preferred_username", "email", "sub"}

// PrincipalFromToken extracts a display name for the user from the ID token,
// falling back to the access token when it is a JWT. The signature is not
// verified: the token came straight from the token endpoint over TLS and the
// result is only used for attribution.
func PrincipalFromToken(tok *oauth.Token) string {
	if tok == nil {
		return ""
	}
	for _, raw := range []string{tok.IDToken, tok.AccessToken} {
		if raw == "" {
			continue
		}
		claims, err := unverifiedClaims(raw)
		if err != nil {
			continue
		}
		for _, name := range principalClaims {
			if v, ok := claims[name].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

func unverifiedClaims(raw string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}
