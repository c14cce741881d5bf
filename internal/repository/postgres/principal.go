package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// CreatePrincipal stores a new principal. A taken email yields ErrAlreadyExists.
func (r *Repo) CreatePrincipal(ctx context.Context, p principal.Principal) error {
	row := principalModelFromEntity(p)
	return classify("create principal", r.db.WithContext(ctx).Create(&row).Error)
}

// GetPrincipal loads a principal by id.
func (r *Repo) GetPrincipal(ctx context.Context, id string) (principal.Principal, error) {
	var row principalModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return principal.Principal{}, classify("get principal", err)
	}
	return row.toEntity(), nil
}

// GetPrincipalByEmail loads a principal by email, case-insensitively.
func (r *Repo) GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error) {
	var row principalModel
	err := r.db.WithContext(ctx).
		Where("lower(email) = ?", principal.NormalizeEmail(email)).
		Take(&row).Error
	if err != nil {
		return principal.Principal{}, classify("get principal by email", err)
	}
	return row.toEntity(), nil
}

// SetPasswordHash replaces the credential hash and nothing else.
func (r *Repo) SetPasswordHash(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&principalModel{}).
		Where("id = ?", id).
		Update("password_hash", hash)
	if res.Error != nil {
		return classify("set password hash", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// PatchPrincipal writes only the columns patch sets and returns the stored row.
func (r *Repo) PatchPrincipal(ctx context.Context, id string, patch account.Patch) (principal.Principal, error) {
	cols := patchColumns(patch)
	if len(cols) == 0 {
		return r.GetPrincipal(ctx, id)
	}
	var out principalModel
	res := r.db.WithContext(ctx).Model(&out).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(cols)
	if res.Error != nil {
		return principal.Principal{}, classify("patch principal", res.Error)
	}
	if res.RowsAffected == 0 {
		return principal.Principal{}, domain.ErrNotFound
	}
	return out.toEntity(), nil
}

func patchColumns(patch account.Patch) map[string]any {
	cols := make(map[string]any, 4)
	if patch.Email != nil {
		cols["email"] = *patch.Email
	}
	if patch.Active != nil {
		cols["is_active"] = *patch.Active
	}
	if patch.Verified != nil {
		cols["is_verified"] = *patch.Verified
	}
	if patch.Admin != nil {
		cols["is_admin"] = *patch.Admin
	}
	return cols
}

// DeleteAccount removes the balance and then the principal in one transaction.
func (r *Repo) DeleteAccount(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("principal_id = ?", id).Delete(&balanceModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&principalModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	return classify("delete account", err)
}

const selectAccount = `
	SELECT p.id, p.email, p.password_hash, p.is_active, p.is_verified, p.is_admin, p.created_at,
	       b.credits AS b_credits, b.created_at AS b_created_at, b.updated_at AS b_updated_at
	FROM principals p
	LEFT JOIN balances b ON b.principal_id = p.id`

// GetAccount loads a principal with its balance, without materializing one.
func (r *Repo) GetAccount(ctx context.Context, id string) (account.Account, error) {
	var rows []accountRow
	if err := r.db.WithContext(ctx).Raw(selectAccount+` WHERE p.id = ?`, id).Scan(&rows).Error; err != nil {
		return account.Account{}, classify("get account", err)
	}
	if len(rows) == 0 {
		return account.Account{}, domain.ErrNotFound
	}
	return rows[0].toEntity(), nil
}

// ListAccounts returns one page ordered by email (bytewise), then id, and the total count.
func (r *Repo) ListAccounts(ctx context.Context, offset, limit int) ([]account.Account, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&principalModel{}).Count(&total).Error; err != nil {
		return nil, 0, classify("count principals", err)
	}

	var rows []accountRow
	err := r.db.WithContext(ctx).
		Raw(selectAccount+` ORDER BY p.email COLLATE "C", p.id LIMIT ? OFFSET ?`, limit, offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, classify("list accounts", err)
	}

	items := make([]account.Account, len(rows))
	for i, row := range rows {
		items[i] = row.toEntity()
	}
	return items, int(total), nil
}
