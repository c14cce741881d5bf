package creditgate

import (
	"context"

	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
	adminuc "github.com/kailas-cloud/creditgate/internal/usecase/admin"
)

// AdminService manages accounts and balances on behalf of one actor.
type AdminService struct {
	svc   *adminuc.Service
	actor principal.Principal
	obs   *observer
}

// SetCredits overwrites the balance of id and returns the stored value.
func (s *AdminService) SetCredits(ctx context.Context, id string, credits int64) (_ int64, err error) {
	done := s.obs.track("admin.set_credits")
	defer func() { done(err) }()

	b, err := s.svc.SetCredits(ctx, s.actor, id, credits)
	if err != nil {
		return 0, err
	}
	return b.Credits(), nil
}

// List returns one page of accounts. Zero values select the first page and
// the default page size.
func (s *AdminService) List(ctx context.Context, page, pageSize int) (_ AccountPage, err error) {
	done := s.obs.track("admin.list")
	defer func() { done(err) }()

	out, err := s.svc.ListBalances(ctx, s.actor, page, pageSize)
	if err != nil {
		return AccountPage{}, err
	}
	items := make([]Account, 0, len(out.Items))
	for _, a := range out.Items {
		items = append(items, accountFromDomain(a))
	}
	return AccountPage{
		Items:    items,
		Total:    out.Total,
		Page:     out.Page,
		PageSize: out.PageSize,
		Pages:    out.Pages(),
	}, nil
}

// Get reads an account by principal id.
func (s *AdminService) Get(ctx context.Context, id string) (_ Account, err error) {
	done := s.obs.track("admin.get")
	defer func() { done(err) }()

	a, err := s.svc.GetAccount(ctx, s.actor, id)
	if err != nil {
		return Account{}, err
	}
	return accountFromDomain(a), nil
}

// Find reads an account by email.
func (s *AdminService) Find(ctx context.Context, email string) (_ Account, err error) {
	done := s.obs.track("admin.find")
	defer func() { done(err) }()

	a, err := s.svc.FindAccount(ctx, s.actor, email)
	if err != nil {
		return Account{}, err
	}
	return accountFromDomain(a), nil
}

// Update applies u to the account id.
func (s *AdminService) Update(ctx context.Context, id string, u AccountUpdate) (_ Account, err error) {
	done := s.obs.track("admin.update")
	defer func() { done(err) }()

	a, err := s.svc.UpdateAccount(ctx, s.actor, id, account.Patch{
		Email:    u.Email,
		Active:   u.Active,
		Verified: u.Verified,
		Admin:    u.Admin,
	})
	if err != nil {
		return Account{}, err
	}
	return accountFromDomain(a), nil
}

// Delete removes the account id and its balance. Deleting a missing account
// succeeds; an admin cannot delete themselves.
func (s *AdminService) Delete(ctx context.Context, id string) (err error) {
	done := s.obs.track("admin.delete")
	defer func() { done(err) }()

	return s.svc.DeleteAccount(ctx, s.actor, id)
}
