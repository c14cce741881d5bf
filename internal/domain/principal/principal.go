package principal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxEmailLength = 320

// Principal is an authenticated identity (immutable value object).
// The ledger core only reads ID, IsActive and IsAdmin.
type Principal struct {
	id           string
	email        string
	passwordHash string
	active       bool
	verified     bool
	admin        bool
	createdAt    int64
}

// New creates an active, unverified, non-admin principal with a fresh UUID.
func New(email, passwordHash string) (Principal, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return Principal{}, err
	}
	if passwordHash == "" {
		return Principal{}, fmt.Errorf("password hash is required")
	}
	return Principal{
		id:           uuid.NewString(),
		email:        email,
		passwordHash: passwordHash,
		active:       true,
		createdAt:    time.Now().UnixMilli(),
	}, nil
}

// Reconstruct restores a Principal from storage without validation.
func Reconstruct(
	id, email, passwordHash string,
	active, verified, admin bool,
	createdAt int64,
) Principal {
	return Principal{
		id:           id,
		email:        email,
		passwordHash: passwordHash,
		active:       active,
		verified:     verified,
		admin:        admin,
		createdAt:    createdAt,
	}
}

// Operator returns the out-of-band operator identity used by the admin CLI.
// It has no stored record, so it never collides with a target id.
func Operator() Principal {
	return Principal{email: "operator", active: true, verified: true, admin: true}
}

// ID returns the stable principal id.
func (p Principal) ID() string { return p.id }

// Email returns the normalized email.
func (p Principal) Email() string { return p.email }

// PasswordHash returns the stored credential hash.
func (p Principal) PasswordHash() string { return p.passwordHash }

// IsActive reports whether the principal may authenticate.
func (p Principal) IsActive() bool { return p.active }

// IsVerified reports whether the email was verified.
func (p Principal) IsVerified() bool { return p.verified }

// IsAdmin reports elevated privileges.
func (p Principal) IsAdmin() bool { return p.admin }

// CreatedAt returns the creation timestamp (unix millis).
func (p Principal) CreatedAt() int64 { return p.createdAt }

// IsOperator reports whether p is the CLI operator identity.
func (p Principal) IsOperator() bool { return p.id == "" && p.admin }

// WithEmail returns a copy with a new, validated email.
func (p Principal) WithEmail(email string) (Principal, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return Principal{}, err
	}
	p.email = email
	return p, nil
}

// WithPasswordHash returns a copy with a new credential hash.
func (p Principal) WithPasswordHash(hash string) Principal {
	p.passwordHash = hash
	return p
}

// WithActive returns a copy with the active flag set.
func (p Principal) WithActive(v bool) Principal {
	p.active = v
	return p
}

// WithVerified returns a copy with the verified flag set.
func (p Principal) WithVerified(v bool) Principal {
	p.verified = v
	return p
}

// WithAdmin returns a copy with the admin flag set.
func (p Principal) WithAdmin(v bool) Principal {
	p.admin = v
	return p
}

// NormalizeEmail trims and lowercases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail performs a structural check: local@domain, bounded length.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("email too long (max %d)", maxEmailLength)
	}
	local, host, ok := strings.Cut(email, "@")
	if !ok || local == "" || host == "" || strings.Contains(host, "@") {
		return fmt.Errorf("email must have the form local@domain")
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("email must not contain whitespace")
	}
	return nil
}

// ParseID checks that id is a canonical UUID.
func ParseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid principal id %q", id)
	}
	return u.String(), nil
}
