// Package account implements registration, login and password management.
package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/auth"
	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	"github.com/kailas-cloud/creditgate/internal/logger"
)

// Service handles identity operations.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	tokens   TokenIssuer
	external IdentityVerifier
	notifier Notifier
}

// New creates an account service.
func New(repo Repository, hasher PasswordHasher, tokens TokenIssuer, notifier Notifier) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens, notifier: notifier}
}

// WithExternalIdentity accepts tokens from an external provider, resolved by email.
func (s *Service) WithExternalIdentity(v IdentityVerifier) *Service {
	s.external = v
	return s
}

// Register creates an active, unverified, non-admin principal.
// No balance is created here.
func (s *Service) Register(ctx context.Context, email, password string) (principal.Principal, error) {
	email = principal.NormalizeEmail(email)
	if err := principal.ValidateEmail(email); err != nil {
		return principal.Principal{}, domain.NewValidationError("email", err.Error())
	}
	if err := principal.ValidatePassword(password, email); err != nil {
		return principal.Principal{}, domain.NewValidationError("password", err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return principal.Principal{}, err
	}
	p, err := principal.New(email, hash)
	if err != nil {
		return principal.Principal{}, domain.NewValidationError("email", err.Error())
	}
	if err := s.repo.CreatePrincipal(ctx, p); err != nil {
		return principal.Principal{}, fmt.Errorf("create principal: %w", err)
	}

	logger.FromContext(ctx).Info("Principal registered", zap.String("principal_id", p.ID()))
	return p, nil
}

// Login checks the password and issues an access token. Unknown emails,
// wrong passwords and inactive principals are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (auth.AccessToken, error) {
	p, err := s.repo.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return auth.AccessToken{}, domain.ErrInvalidCredentials
		}
		return auth.AccessToken{}, fmt.Errorf("get principal by email: %w", err)
	}
	if !s.hasher.Verify(p.PasswordHash(), password) || !p.IsActive() {
		return auth.AccessToken{}, domain.ErrInvalidCredentials
	}
	return s.tokens.Issue(p)
}

// IssueToken issues an access token for email without a password.
// Reserved for the operator CLI.
func (s *Service) IssueToken(ctx context.Context, email string) (auth.AccessToken, error) {
	p, err := s.repo.GetPrincipalByEmail(ctx, email)
	if err != nil {
		return auth.AccessToken{}, fmt.Errorf("get principal by email: %w", err)
	}
	if !p.IsActive() {
		return auth.AccessToken{}, fmt.Errorf("%w: principal is inactive", domain.ErrForbidden)
	}
	return s.tokens.Issue(p)
}

// Authenticate resolves a bearer token to an active principal.
func (s *Service) Authenticate(ctx context.Context, token string) (principal.Principal, error) {
	if token == "" {
		return principal.Principal{}, domain.ErrUnauthorized
	}

	id, err := s.tokens.Verify(token)
	if err != nil {
		if s.external == nil {
			return principal.Principal{}, err
		}
		return s.authenticateExternal(ctx, token)
	}

	p, err := s.repo.GetPrincipal(ctx, id)
	return s.resolved(p, err)
}

func (s *Service) authenticateExternal(ctx context.Context, token string) (principal.Principal, error) {
	identity, err := s.external.Verify(ctx, token)
	if err != nil {
		return principal.Principal{}, err
	}
	p, err := s.repo.GetPrincipalByEmail(ctx, identity.Email)
	return s.resolved(p, err)
}

func (s *Service) resolved(p principal.Principal, err error) (principal.Principal, error) {
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return principal.Principal{}, fmt.Errorf("%w: unknown principal", domain.ErrUnauthorized)
		}
		return principal.Principal{}, fmt.Errorf("get principal: %w", err)
	}
	if !p.IsActive() {
		return principal.Principal{}, fmt.Errorf("%w: principal is inactive", domain.ErrUnauthorized)
	}
	return p, nil
}

// ChangePassword replaces the password of p after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, p principal.Principal, current, next string) error {
	fresh, err := s.repo.GetPrincipal(ctx, p.ID())
	if err != nil {
		return fmt.Errorf("get principal: %w", err)
	}
	if !s.hasher.Verify(fresh.PasswordHash(), current) {
		return domain.ErrInvalidCredentials
	}
	return s.setPassword(ctx, fresh, next)
}

// ForgotPassword hands a reset token for email to the notifier. It reports
// success whether or not the email is registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	p, err := s.repo.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get principal by email: %w", err)
	}
	if !p.IsActive() {
		return nil
	}

	token, err := s.tokens.IssueReset(p)
	if err != nil {
		return err
	}
	if err := s.notifier.SendPasswordReset(ctx, p.Email(), token); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	logger.FromContext(ctx).Info("Password reset requested", zap.String("principal_id", p.ID()))
	return nil
}

// ResetPassword sets a new password using a reset token. A token stops
// working once the password it was issued for has changed.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	claims, err := s.tokens.VerifyReset(token)
	if err != nil {
		return err
	}
	p, err := s.repo.GetPrincipal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: unknown principal", domain.ErrInvalidToken)
		}
		return fmt.Errorf("get principal: %w", err)
	}
	if !p.IsActive() || !claims.Matches(p) {
		return fmt.Errorf("%w: token no longer valid", domain.ErrInvalidToken)
	}
	return s.setPassword(ctx, p, password)
}

func (s *Service) setPassword(ctx context.Context, p principal.Principal, password string) error {
	if err := principal.ValidatePassword(password, p.Email()); err != nil {
		return domain.NewValidationError("password", err.Error())
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.repo.SetPasswordHash(ctx, p.ID(), hash); err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}
