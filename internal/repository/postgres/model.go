package postgres

import (
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

// Timestamps are unix millis managed by the repository, not by gorm.
type principalModel struct {
	ID           string `gorm:"column:id;type:uuid;primaryKey"`
	Email        string `gorm:"column:email"`
	PasswordHash string `gorm:"column:password_hash"`
	IsActive     bool   `gorm:"column:is_active"`
	IsVerified   bool   `gorm:"column:is_verified"`
	IsAdmin      bool   `gorm:"column:is_admin"`
	CreatedAt    int64  `gorm:"column:created_at;autoCreateTime:false"`
}

func (principalModel) TableName() string { return "principals" }

func principalModelFromEntity(p principal.Principal) principalModel {
	return principalModel{
		ID:           p.ID(),
		Email:        p.Email(),
		PasswordHash: p.PasswordHash(),
		IsActive:     p.IsActive(),
		IsVerified:   p.IsVerified(),
		IsAdmin:      p.IsAdmin(),
		CreatedAt:    p.CreatedAt(),
	}
}

func (m principalModel) toEntity() principal.Principal {
	return principal.Reconstruct(m.ID, m.Email, m.PasswordHash, m.IsActive, m.IsVerified, m.IsAdmin, m.CreatedAt)
}

type balanceModel struct {
	PrincipalID string `gorm:"column:principal_id;type:uuid;primaryKey"`
	Credits     int64  `gorm:"column:credits"`
	CreatedAt   int64  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt   int64  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (balanceModel) TableName() string { return "balances" }

func (m balanceModel) toEntity() balance.Balance {
	return balance.Reconstruct(m.PrincipalID, m.Credits, m.CreatedAt, m.UpdatedAt)
}

// accountRow is one row of principals LEFT JOIN balances.
type accountRow struct {
	principalModel
	BalanceCredits   *int64 `gorm:"column:b_credits"`
	BalanceCreatedAt *int64 `gorm:"column:b_created_at"`
	BalanceUpdatedAt *int64 `gorm:"column:b_updated_at"`
}

func (r accountRow) toEntity() account.Account {
	p := r.principalModel.toEntity()
	if r.BalanceCredits == nil {
		return account.WithoutBalance(p)
	}
	var created, updated int64
	if r.BalanceCreatedAt != nil {
		created = *r.BalanceCreatedAt
	}
	if r.BalanceUpdatedAt != nil {
		updated = *r.BalanceUpdatedAt
	}
	return account.New(p, balance.Reconstruct(p.ID(), *r.BalanceCredits, created, updated))
}
