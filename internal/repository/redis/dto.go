package redis

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/creditgate/internal/domain/account"
	"github.com/kailas-cloud/creditgate/internal/domain/balance"
	"github.com/kailas-cloud/creditgate/internal/domain/principal"
)

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// principalArgs are the hash values in createPrincipalScript ARGV order.
func principalArgs(p principal.Principal) []string {
	return []string{
		p.ID(),
		p.Email(),
		p.PasswordHash(),
		flag(p.IsActive()),
		flag(p.IsVerified()),
		flag(p.IsAdmin()),
		strconv.FormatInt(p.CreatedAt(), 10),
	}
}

// patchFields lists the flag fields patch sets as HSET field/value pairs.
// The email is handled separately because it moves the index entry.
func patchFields(patch account.Patch) []string {
	var out []string
	for _, f := range []struct {
		name string
		v    *bool
	}{
		{"is_active", patch.Active},
		{"is_verified", patch.Verified},
		{"is_admin", patch.Admin},
	} {
		if f.v != nil {
			out = append(out, f.name, flag(*f.v))
		}
	}
	return out
}

// principalFromHash hydrates a Principal from an HGETALL result map.
func principalFromHash(m map[string]string) (principal.Principal, error) {
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return principal.Principal{}, fmt.Errorf("invalid created_at: %w", err)
	}
	return principal.Reconstruct(
		m["id"],
		m["email"],
		m["password_hash"],
		m["is_active"] == "1",
		m["is_verified"] == "1",
		m["is_admin"] == "1",
		createdAt,
	), nil
}

// balanceFromHash hydrates a Balance from an HGETALL result map.
func balanceFromHash(id string, m map[string]string) (balance.Balance, error) {
	var vals [3]int64
	for i, f := range []string{"credits", "created_at", "updated_at"} {
		v, err := strconv.ParseInt(m[f], 10, 64)
		if err != nil {
			return balance.Balance{}, fmt.Errorf("invalid %s: %w", f, err)
		}
		vals[i] = v
	}
	return balance.Reconstruct(id, vals[0], vals[1], vals[2]), nil
}

// balanceFromReply decodes {status, credits, created_at, updated_at}.
func balanceFromReply(id string, reply []int64) (balance.Balance, error) {
	if len(reply) < 4 {
		return balance.Balance{}, fmt.Errorf("short balance reply: %v", reply)
	}
	return balance.Reconstruct(id, reply[1], reply[2], reply[3]), nil
}
