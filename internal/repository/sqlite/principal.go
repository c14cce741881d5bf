package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

const principalColumns = `id, email, password_hash, is_active, is_verified, is_admin, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(s scanner) (principal.Principal, error) {
	var (
		id, email, hash         string
		active, verified, admin bool
		createdAt               int64
	)
	if err := s.Scan(&id, &email, &hash, &active, &verified, &admin, &createdAt); err != nil {
		return principal.Principal{}, err
	}
	return principal.Reconstruct(id, email, hash, active, verified, admin, createdAt), nil
}

// CreatePrincipal stores a new principal. A taken email yields ErrAlreadyExists.
func (r *Repo) CreatePrincipal(ctx context.Context, p principal.Principal) error {
	_, err := r.write.ExecContext(ctx, `
		INSERT INTO principals (`+principalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID(), p.Email(), p.PasswordHash(),
		boolToInt(p.IsActive()), boolToInt(p.IsVerified()), boolToInt(p.IsAdmin()),
		p.CreatedAt())
	return classify("create principal", err)
}

// GetPrincipal loads a principal by id.
func (r *Repo) GetPrincipal(ctx context.Context, id string) (principal.Principal, error) {
	p, err := scanPrincipal(r.read.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = ?`, id))
	if err != nil {
		return principal.Principal{}, classify("get principal", err)
	}
	return p, nil
}

// GetPrincipalByEmail loads a principal by email, case-insensitively.
func (r *Repo) GetPrincipalByEmail(ctx context.Context, email string) (principal.Principal, error) {
	p, err := scanPrincipal(r.read.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE email = ?`, principal.NormalizeEmail(email)))
	if err != nil {
		return principal.Principal{}, classify("get principal by email", err)
	}
	return p, nil
}

// SetPasswordHash replaces the credential hash and nothing else.
func (r *Repo) SetPasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.write.ExecContext(ctx,
		`UPDATE principals SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return classify("set password hash", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("set password hash", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// PatchPrincipal writes only the columns patch sets and returns the stored row.
func (r *Repo) PatchPrincipal(ctx context.Context, id string, patch account.Patch) (principal.Principal, error) {
	sets, args := patchAssignments(patch)
	if len(sets) == 0 {
		return r.GetPrincipal(ctx, id)
	}
	p, err := scanPrincipal(r.write.QueryRowContext(ctx,
		`UPDATE principals SET `+strings.Join(sets, ", ")+` WHERE id = ? RETURNING `+principalColumns,
		append(args, id)...))
	if err != nil {
		return principal.Principal{}, classify("patch principal", err)
	}
	return p, nil
}

func patchAssignments(patch account.Patch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	if patch.Email != nil {
		sets, args = append(sets, "email = ?"), append(args, *patch.Email)
	}
	if patch.Active != nil {
		sets, args = append(sets, "is_active = ?"), append(args, boolToInt(*patch.Active))
	}
	if patch.Verified != nil {
		sets, args = append(sets, "is_verified = ?"), append(args, boolToInt(*patch.Verified))
	}
	if patch.Admin != nil {
		sets, args = append(sets, "is_admin = ?"), append(args, boolToInt(*patch.Admin))
	}
	return sets, args
}

// DeleteAccount removes the balance and then the principal in one transaction.
func (r *Repo) DeleteAccount(ctx context.Context, id string) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM balances WHERE principal_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM principals WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	return classify("delete account", err)
}

const selectAccount = `
	SELECT p.id, p.email, p.password_hash, p.is_active, p.is_verified, p.is_admin, p.created_at,
	       b.credits, b.created_at, b.updated_at
	FROM principals p
	LEFT JOIN balances b ON b.principal_id = p.id`

func scanAccount(s scanner) (account.Account, error) {
	var (
		id, email, hash         string
		active, verified, admin bool
		createdAt               int64
		credits, bCreated, bUp  sql.NullInt64
	)
	if err := s.Scan(&id, &email, &hash, &active, &verified, &admin, &createdAt,
		&credits, &bCreated, &bUp); err != nil {
		return account.Account{}, err
	}
	p := principal.Reconstruct(id, email, hash, active, verified, admin, createdAt)
	if !credits.Valid {
		return account.WithoutBalance(p), nil
	}
	return account.New(p, balance.Reconstruct(id, credits.Int64, bCreated.Int64, bUp.Int64)), nil
}

// GetAccount loads a principal with its balance, without materializing one.
func (r *Repo) GetAccount(ctx context.Context, id string) (account.Account, error) {
	a, err := scanAccount(r.read.QueryRowContext(ctx, selectAccount+` WHERE p.id = ?`, id))
	if err != nil {
		return account.Account{}, classify("get account", err)
	}
	return a, nil
}

// ListAccounts returns one page ordered by email, then id, and the total count.
func (r *Repo) ListAccounts(ctx context.Context, offset, limit int) ([]account.Account, int, error) {
	var total int
	if err := r.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM principals`).Scan(&total); err != nil {
		return nil, 0, classify("count principals", err)
	}

	rows, err := r.read.QueryContext(ctx,
		selectAccount+` ORDER BY p.email, p.id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, classify("list accounts", err)
	}
	defer rows.Close()

	items := make([]account.Account, 0, limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, classify("scan account", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list accounts", err)
	}
	return items, total, nil
}
