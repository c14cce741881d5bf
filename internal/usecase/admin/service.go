// Package admin implements the privileged ledger and account operations.
// Every call takes the acting principal explicitly and checks policy first.
package admin

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/policy"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	"github.com/kailas-cloud/creditgate/internal/metrics"
)

// Defaults for ListBalances paging.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service handles admin operations.
type Service struct {
	repo            Repository
	defaultPageSize int
	maxPageSize     int
}

// New creates an admin service.
func New(repo Repository) *Service {
	return &Service{repo: repo, defaultPageSize: DefaultPageSize, maxPageSize: MaxPageSize}
}

// WithPagination overrides the page size bounds.
func (s *Service) WithPagination(defaultSize, maxSize int) *Service {
	if defaultSize > 0 {
		s.defaultPageSize = defaultSize
	}
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
	return s
}

// SetCredits overwrites the balance of targetID with value.
func (s *Service) SetCredits(
	ctx context.Context, actor principal.Principal, targetID string, value int64,
) (b balance.Balance, err error) {
	defer func() { record("set_credits", err) }()

	if !policy.CanModifyCredits(actor, targetID) {
		return balance.Balance{}, domain.ErrForbidden
	}
	if value < 0 {
		return balance.Balance{}, domain.NewValidationError("credits", "must be >= 0")
	}
	target, err := s.target(ctx, targetID)
	if err != nil {
		return balance.Balance{}, err
	}

	b, err = s.repo.SetAbsolute(ctx, target.ID(), value)
	if err != nil {
		return balance.Balance{}, fmt.Errorf("set balance: %w", err)
	}
	return b, nil
}

// ListBalances returns one page of accounts ordered by email, then id.
// page starts at 1; zero values select the first page and the default size.
func (s *Service) ListBalances(
	ctx context.Context, actor principal.Principal, page, pageSize int,
) (out account.Page, err error) {
	defer func() { record("list_balances", err) }()

	if !policy.CanAdminister(actor) {
		return account.Page{}, domain.ErrForbidden
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = s.defaultPageSize
	}
	if page < 1 {
		return account.Page{}, domain.NewValidationError("page", "must be >= 1")
	}
	if pageSize < 1 || pageSize > s.maxPageSize {
		return account.Page{}, domain.NewValidationError("page_size",
			fmt.Sprintf("must be between 1 and %d", s.maxPageSize))
	}
	if page > math.MaxInt/pageSize+1 {
		return account.Page{}, domain.NewValidationError("page", "too large")
	}

	items, total, err := s.repo.ListAccounts(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return account.Page{}, fmt.Errorf("list accounts: %w", err)
	}
	return account.Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// DeleteAccount removes targetID and its balance. Admins cannot delete themselves.
func (s *Service) DeleteAccount(ctx context.Context, actor principal.Principal, targetID string) (err error) {
	defer func() { record("delete_account", err) }()

	if !policy.CanDeleteAccount(actor, canonical(targetID)) {
		return domain.ErrForbidden
	}
	id, err := parseTarget(targetID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// GetAccount reads targetID with its balance. A missing balance is reported,
// not created.
func (s *Service) GetAccount(
	ctx context.Context, actor principal.Principal, targetID string,
) (a account.Account, err error) {
	defer func() { record("get_account", err) }()

	if !policy.CanAdminister(actor) {
		return account.Account{}, domain.ErrForbidden
	}
	id, err := parseTarget(targetID)
	if err != nil {
		return account.Account{}, err
	}
	a, err = s.repo.GetAccount(ctx, id)
	if err != nil {
		return account.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// FindAccount reads the account registered under email.
func (s *Service) FindAccount(
	ctx context.Context, actor principal.Principal, email string,
) (a account.Account, err error) {
	defer func() { record("find_account", err) }()

	if !policy.CanAdminister(actor) {
		return account.Account{}, domain.ErrForbidden
	}
	p, err := s.repo.GetPrincipalByEmail(ctx, email)
	if err != nil {
		return account.Account{}, fmt.Errorf("get principal by email: %w", err)
	}
	a, err = s.repo.GetAccount(ctx, p.ID())
	if err != nil {
		return account.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// UpdateAccount applies patch to targetID. Credits are not patchable.
func (s *Service) UpdateAccount(
	ctx context.Context, actor principal.Principal, targetID string, patch account.Patch,
) (a account.Account, err error) {
	defer func() { record("update_account", err) }()

	revokesAdmin := patch.Admin != nil && !*patch.Admin
	deactivates := patch.Active != nil && !*patch.Active
	if !policy.CanUpdateAccount(actor, canonical(targetID), revokesAdmin, deactivates) {
		return account.Account{}, domain.ErrForbidden
	}

	target, err := s.target(ctx, targetID)
	if err != nil {
		return account.Account{}, err
	}
	if !patch.IsEmpty() {
		patch, err = patch.Normalize()
		if err != nil {
			return account.Account{}, domain.NewValidationError("email", err.Error())
		}
		if _, err = s.repo.PatchPrincipal(ctx, target.ID(), patch); err != nil {
			return account.Account{}, fmt.Errorf("patch principal: %w", err)
		}
	}

	a, err = s.repo.GetAccount(ctx, target.ID())
	if err != nil {
		return account.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *Service) target(ctx context.Context, targetID string) (principal.Principal, error) {
	id, err := parseTarget(targetID)
	if err != nil {
		return principal.Principal{}, err
	}
	p, err := s.repo.GetPrincipal(ctx, id)
	if err != nil {
		return principal.Principal{}, fmt.Errorf("get principal: %w", err)
	}
	return p, nil
}

// parseTarget canonicalizes an id. A malformed id cannot name a principal.
func parseTarget(targetID string) (string, error) {
	id, err := principal.ParseID(targetID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return id, nil
}

// canonical returns the canonical form of targetID, or targetID itself when
// it is not a UUID, so self-checks cannot be sidestepped by spelling.
func canonical(targetID string) string {
	if id, err := principal.ParseID(targetID); err == nil {
		return id
	}
	return targetID
}

func record(operation string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrForbidden):
		result = "forbidden"
	case errors.Is(err, domain.ErrValidation):
		result = "invalid"
	case errors.Is(err, domain.ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	metrics.AdminOperationsTotal.WithLabelValues(operation, result).Inc()
}
