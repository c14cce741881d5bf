package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
)

// GetOrCreate returns the balance of id, inserting defaultCredits if none exists.
func (r *Repo) GetOrCreate(ctx context.Context, id string, defaultCredits int64) (balance.Balance, bool, error) {
	var (
		out     balanceModel
		created bool
	)
	now := r.now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := balanceModel{PrincipalID: id, Credits: defaultCredits, CreatedAt: now, UpdatedAt: now}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "principal_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		return tx.Where("principal_id = ?", id).Take(&out).Error
	})
	if err != nil {
		return balance.Balance{}, false, classify("get or create balance", err)
	}
	return out.toEntity(), created, nil
}

// Get returns the balance of id without creating it.
func (r *Repo) Get(ctx context.Context, id string) (balance.Balance, error) {
	var out balanceModel
	if err := r.db.WithContext(ctx).Where("principal_id = ?", id).Take(&out).Error; err != nil {
		return balance.Balance{}, classify("get balance", err)
	}
	return out.toEntity(), nil
}

// Adjust adds delta to the stored credits in one statement.
func (r *Repo) Adjust(ctx context.Context, id string, delta int64) (balance.Balance, error) {
	var out balanceModel
	res := r.db.WithContext(ctx).Model(&out).
		Clauses(clause.Returning{}).
		Where("principal_id = ?", id).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits + ?", delta),
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return balance.Balance{}, classify("adjust balance", res.Error)
	}
	if res.RowsAffected == 0 {
		return balance.Balance{}, domain.ErrNotFound
	}
	return out.toEntity(), nil
}

// Spend subtracts amount only if the balance covers it.
func (r *Repo) Spend(ctx context.Context, id string, amount int64) (balance.Balance, error) {
	var out balanceModel
	res := r.db.WithContext(ctx).Model(&out).
		Clauses(clause.Returning{}).
		Where("principal_id = ? AND credits >= ?", id, amount).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits - ?", amount),
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return balance.Balance{}, classify("spend balance", res.Error)
	}
	if res.RowsAffected == 1 {
		return out.toEntity(), nil
	}
	// Nothing updated: either no balance or not enough credits.
	if _, err := r.Get(ctx, id); err != nil {
		return balance.Balance{}, err
	}
	return balance.Balance{}, domain.ErrInsufficientCredits
}

// SetAbsolute overwrites the credits of id, creating the balance if absent.
func (r *Repo) SetAbsolute(ctx context.Context, id string, value int64) (balance.Balance, error) {
	now := r.now()
	row := balanceModel{PrincipalID: id, Credits: value, CreatedAt: now, UpdatedAt: now}
	err := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "principal_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"credits":    value,
				"updated_at": now,
			}),
		},
		clause.Returning{},
	).Create(&row).Error
	if err != nil {
		return balance.Balance{}, classify("set balance", err)
	}
	return row.toEntity(), nil
}

// Delete removes the balance of id. Deleting a missing balance is a no-op.
func (r *Repo) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("principal_id = ?", id).Delete(&balanceModel{}).Error
	if err != nil && !isInvalidText(err) {
		return classify("delete balance", err)
	}
	return nil
}
