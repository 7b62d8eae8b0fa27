package oauth

import "errors"

var (
	// ErrAuthorizationRequired is returned when no usable credential exists
	// and the user must complete an interactive login first.
	ErrAuthorizationRequired = errors.New("authorization required")

	// ErrUnknownRegistration is returned for a registration id that is not configured.
	ErrUnknownRegistration = errors.New("unknown client registration")

	// ErrNoRefreshToken is returned when an expired client carries no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
)
