package account

import (
	"context"

	"github.com/kailas-cloud/creditgate/internal/auth"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Repository defines the identity store contract.
type Repository interface {
	CreatePrincipal(ctx context.Context, p principal.Principal) error
	GetPrincipal(ctx context.Context, id string) (principal.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// TokenIssuer signs and verifies access and reset tokens.
type TokenIssuer interface {
	Issue(p principal.Principal) (auth.AccessToken, error)
	Verify(token string) (string, error)
	IssueReset(p principal.Principal) (string, error)
	VerifyReset(token string) (auth.ResetClaims, error)
}

// IdentityVerifier validates tokens from an external identity provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Notifier delivers password reset tokens.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}
