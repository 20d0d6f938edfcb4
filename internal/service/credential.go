package service

import (
	"github.com/golang-jwt/jwt/v5"

	"feedsync/internal/errors"
)

// TenantScopeFromCredential extracts the default tenant scope claim from a
// bearer JWT without verifying the signature. Verification is the server's
// job on every call; the client only needs the claim to pick its initial
// room and cache scope. Platform administrators carry no scope claim and
// get the empty scope, the platform-wide view.
func TenantScopeFromCredential(credential string) (string, error) {
	if credential == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "empty credential")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(credential, claims); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "malformed credential")
	}

	scope, ok := claims["tenantScope"].(string)
	if !ok {
		return "", nil
	}
	return scope, nil
}
