package rbac

import "errors"

var (
	// ErrUnknownRole indicates a role identifier outside the hierarchy.
	// This is a deployment or data-integrity bug; it must never be masked
	// by defaulting to some rank.
	ErrUnknownRole = errors.New("rbac: unknown role")

	// ErrNoCredential indicates the request carried no authorization header.
	ErrNoCredential = errors.New("rbac: no credential")
	// ErrMalformedCredential indicates the header was not a bearer token.
	ErrMalformedCredential = errors.New("rbac: malformed credential")
	// ErrInvalidCredential indicates the verifier rejected the token.
	ErrInvalidCredential = errors.New("rbac: invalid credential")
)
