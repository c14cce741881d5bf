package balance

import "fmt"

// Balance is the stored credit count of one principal (immutable value object).
type Balance struct {
	principalID string
	credits     int64
	createdAt   int64
	updatedAt   int64
}

// New creates a balance for principalID. Credits must be non-negative.
func New(principalID string, credits, now int64) (Balance, error) {
	if principalID == "" {
		return Balance{}, fmt.Errorf("principal id is required")
	}
	if credits < 0 {
		return Balance{}, fmt.Errorf("credits must be >= 0, got %d", credits)
	}
	return Balance{principalID: principalID, credits: credits, createdAt: now, updatedAt: now}, nil
}

// Reconstruct restores a Balance from storage without validation.
// Stored credits may be negative if an adjust drove them there.
func Reconstruct(principalID string, credits, createdAt, updatedAt int64) Balance {
	return Balance{
		principalID: principalID,
		credits:     credits,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// PrincipalID returns the owning principal id.
func (b Balance) PrincipalID() string { return b.principalID }

// Credits returns the current credit count.
func (b Balance) Credits() int64 { return b.credits }

// CreatedAt returns the materialization timestamp (unix millis).
func (b Balance) CreatedAt() int64 { return b.createdAt }

// UpdatedAt returns the last mutation timestamp (unix millis).
func (b Balance) UpdatedAt() int64 { return b.updatedAt }

// CanCover reports whether the balance can pay amount credits.
func (b Balance) CanCover(amount int64) bool {
	return amount > 0 && b.credits >= amount
}
