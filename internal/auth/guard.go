package auth

import "context"

// Guard validates an inbound credential and resolves the caller's identity.
type Guard struct {
	signer    *Signer
	denylist  Denylist
	directory Directory
}

// NewGuard wires the three collaborators together.
func NewGuard(signer *Signer, denylist Denylist, directory Directory) *Guard {
	return &Guard{signer: signer, denylist: denylist, directory: directory}
}

// Authenticate checks the raw token and returns the resolved principal.
// The denylist is consulted before the signature so a revoked credential
// fails closed even when its claims cannot be parsed. Failure kinds:
// ErrNoCredentials (empty token), ErrTokenRevoked, ErrInvalidToken
// (bad signature or expired), ErrUserNotFound (unknown subject).
func (g *Guard) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrNoCredentials
	}

	revoked, err := g.denylist.IsRevoked(ctx, token)
	if err != nil {
		return Principal{}, err
	}
	if revoked {
		return Principal{}, ErrTokenRevoked
	}

	claims, err := g.signer.ParseAndValidate(token)
	if err != nil {
		return Principal{}, err
	}

	user, err := g.directory.Find(ctx, claims.Subject)
	if err != nil {
		return Principal{}, err
	}

	return Principal{User: user, Roles: claims.Roles}, nil
}

// Revoke invalidates the credential before its natural expiry. Idempotent.
func (g *Guard) Revoke(ctx context.Context, token string) error {
	return g.denylist.Revoke(ctx, token)
}
