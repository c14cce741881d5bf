package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
)

const selectBalance = `SELECT principal_id, credits, created_at, updated_at FROM balances WHERE principal_id = ?`

func scanBalance(row *sql.Row) (balance.Balance, error) {
	var (
		id                   string
		credits, created, up int64
	)
	if err := row.Scan(&id, &credits, &created, &up); err != nil {
		return balance.Balance{}, err
	}
	return balance.Reconstruct(id, credits, created, up), nil
}

// GetOrCreate returns the balance of id, inserting defaultCredits if none exists.
// created reports whether this call materialized the row.
func (r *Repo) GetOrCreate(ctx context.Context, id string, defaultCredits int64) (balance.Balance, bool, error) {
	var (
		b       balance.Balance
		created bool
	)
	now := r.now()
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO balances (principal_id, credits, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (principal_id) DO NOTHING`,
			id, defaultCredits, now, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1

		b, err = scanBalance(tx.QueryRowContext(ctx, selectBalance, id))
		return err
	})
	if err != nil {
		return balance.Balance{}, false, classify("get or create balance", err)
	}
	return b, created, nil
}

// Get returns the balance of id without creating it.
func (r *Repo) Get(ctx context.Context, id string) (balance.Balance, error) {
	b, err := scanBalance(r.read.QueryRowContext(ctx, selectBalance, id))
	if err != nil {
		return balance.Balance{}, classify("get balance", err)
	}
	return b, nil
}

// Adjust adds delta to the stored credits in one statement.
func (r *Repo) Adjust(ctx context.Context, id string, delta int64) (balance.Balance, error) {
	b, err := scanBalance(r.write.QueryRowContext(ctx, `
		UPDATE balances SET credits = credits + ?, updated_at = ?
		WHERE principal_id = ?
		RETURNING principal_id, credits, created_at, updated_at`,
		delta, r.now(), id))
	if err != nil {
		return balance.Balance{}, classify("adjust balance", err)
	}
	return b, nil
}

// Spend subtracts amount only if the balance covers it.
func (r *Repo) Spend(ctx context.Context, id string, amount int64) (balance.Balance, error) {
	var b balance.Balance
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		b, err = scanBalance(tx.QueryRowContext(ctx, `
			UPDATE balances SET credits = credits - ?, updated_at = ?
			WHERE principal_id = ? AND credits >= ?
			RETURNING principal_id, credits, created_at, updated_at`,
			amount, r.now(), id, amount))
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		// No row updated: either no balance or not enough credits.
		if _, err := scanBalance(tx.QueryRowContext(ctx, selectBalance, id)); err != nil {
			return err
		}
		return domain.ErrInsufficientCredits
	})
	if err != nil {
		return balance.Balance{}, classify("spend balance", err)
	}
	return b, nil
}

// SetAbsolute overwrites the credits of id, creating the balance if absent.
func (r *Repo) SetAbsolute(ctx context.Context, id string, value int64) (balance.Balance, error) {
	now := r.now()
	b, err := scanBalance(r.write.QueryRowContext(ctx, `
		INSERT INTO balances (principal_id, credits, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (principal_id) DO UPDATE SET
			credits = excluded.credits,
			updated_at = excluded.updated_at
		RETURNING principal_id, credits, created_at, updated_at`,
		id, value, now, now))
	if err != nil {
		return balance.Balance{}, classify("set balance", err)
	}
	return b, nil
}

// Delete removes the balance of id. Deleting a missing balance is a no-op.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := r.write.ExecContext(ctx, `DELETE FROM balances WHERE principal_id = ?`, id); err != nil {
		return classify("delete balance", err)
	}
	return nil
}
