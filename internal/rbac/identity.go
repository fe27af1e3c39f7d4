package rbac

import (
	"context"
	"fmt"
	"strings"
)

// Identity is the verified, decoded result of a request's credential. It is
// created once per request and never mutated afterwards.
type Identity struct {
	SubjectID string
	Email     string
	Role      Role
}

// Verifier validates an opaque credential and returns the claims carried by
// it. Cryptographic verification lives behind this interface.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}

// BearerToken extracts the token from an Authorization header value. An
// absent header maps to ErrNoCredential, anything other than
// "Bearer <token>" to ErrMalformedCredential.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoCredential
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: expected bearer scheme", ErrMalformedCredential)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrMalformedCredential)
	}
	return token, nil
}
