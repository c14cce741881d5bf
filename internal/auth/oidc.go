package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Identity is the subset of an external ID token used to resolve a principal.
type Identity struct {
	Subject string
	Issuer  string
	Email   string
}

// OIDCVerifier validates ID tokens from an external provider.
type OIDCVerifier struct {
	issuerURL string
	verifier  *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at issuerURL and verifies tokens
// whose audience contains audience.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	return &OIDCVerifier{
		issuerURL: issuerURL,
		verifier:  provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

// NewOIDCVerifierFromKeySet builds a verifier without discovery.
func NewOIDCVerifierFromKeySet(issuerURL, audience string, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{
		issuerURL: issuerURL,
		verifier:  oidc.NewVerifier(issuerURL, keys, &oidc.Config{ClientID: audience}),
	}
}

// HealthCheck re-runs provider discovery.
func (v *OIDCVerifier) HealthCheck(ctx context.Context) error {
	if _, err := oidc.NewProvider(ctx, v.issuerURL); err != nil {
		return fmt.Errorf("oidc provider discovery: %w", err)
	}
	return nil
}

// Verify validates token and extracts the identity. Tokens without an email
// claim cannot be mapped to a principal and are rejected.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: token verification failed: %w", domain.ErrUnauthorized, err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: parse claims: %w", domain.ErrUnauthorized, err)
	}
	if claims.Email == "" {
		return Identity{}, fmt.Errorf("%w: token has no email claim", domain.ErrUnauthorized)
	}

	return Identity{
		Subject: idToken.Subject,
		Issuer:  idToken.Issuer,
		Email:   principal.NormalizeEmail(claims.Email),
	}, nil
}
