// Package auth issues and verifies credentials: bcrypt password hashes,
// HS256 access and reset tokens, and optional OIDC identity tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// ResetAudience is the audience of password reset tokens. It never equals
// the access audience, so one kind of token cannot stand in for the other.
const ResetAudience = "creditgate:reset"

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	ResetTTL time.Duration
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

// NewTokenIssuer validates cfg and creates an issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if cfg.Audience == ResetAudience {
		return nil, fmt.Errorf("access audience must differ from %q", ResetAudience)
	}
	if cfg.TTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenIssuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		resetTTL: cfg.ResetTTL,
		now:      time.Now,
	}, nil
}

// WithClock overrides the time source. Used by tests.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// AccessToken is a signed bearer token.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Issue signs an access token for p.
func (t *TokenIssuer) Issue(p principal.Principal) (AccessToken, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   p.ID(),
		Issuer:    t.issuer,
		Audience:  jwt.ClaimStrings{t.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign access token: %w", err)
	}
	return AccessToken{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks an access token and returns its subject (the principal id).
// Failures wrap domain.ErrUnauthorized.
func (t *TokenIssuer) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	if err := t.parse(token, t.audience, &claims); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}

type resetClaims struct {
	PasswordFingerprint string `json:"pwd_fp"`
	jwt.RegisteredClaims
}

// IssueReset signs a password reset token for p, bound to its current password hash.
func (t *TokenIssuer) IssueReset(p principal.Principal) (string, error) {
	now := t.now()
	claims := resetClaims{
		PasswordFingerprint: Fingerprint(p.PasswordHash()),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID(),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{ResetAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.resetTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

// ResetClaims is the verified content of a reset token.
type ResetClaims struct {
	Subject     string
	Fingerprint string
}

// Matches reports whether the token was issued for p's current password.
func (c ResetClaims) Matches(p principal.Principal) bool {
	return c.Subject == p.ID() && c.Fingerprint == Fingerprint(p.PasswordHash())
}

// VerifyReset checks a reset token. Failures wrap domain.ErrInvalidToken.
func (t *TokenIssuer) VerifyReset(token string) (ResetClaims, error) {
	var claims resetClaims
	if err := t.parse(token, ResetAudience, &claims); err != nil {
		return ResetClaims{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.PasswordFingerprint == "" {
		return ResetClaims{}, fmt.Errorf("%w: incomplete reset token", domain.ErrInvalidToken)
	}
	return ResetClaims{Subject: claims.Subject, Fingerprint: claims.PasswordFingerprint}, nil
}

func (t *TokenIssuer) parse(token, audience string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("token verification failed: %w", err)
	}
	return nil
}
