// Package policy holds the access rules for balances and accounts.
// Every function is pure: no I/O, no clock, no globals.
package policy

import "github.com/kailas-cloud/creditgate/internal/domain/principal"

// CanViewOwnProfile reports whether p may read its own profile and balance.
func CanViewOwnProfile(p principal.Principal) bool {
	return p.IsActive()
}

// CanConsume reports whether p may run metered operations.
func CanConsume(p principal.Principal) bool {
	return p.IsActive()
}

// CanAdminister reports whether p may use the admin surface.
func CanAdminister(p principal.Principal) bool {
	return p.IsActive() && p.IsAdmin()
}

// CanModifyCredits reports whether p may set the balance of a target.
// Self-service modification is never allowed outside the admin path,
// so the target does not change the decision.
func CanModifyCredits(p principal.Principal, _ string) bool {
	return CanAdminister(p)
}

// CanDeleteAccount reports whether p may delete targetID. Self-deletion is
// always denied.
func CanDeleteAccount(p principal.Principal, targetID string) bool {
	return CanAdminister(p) && p.ID() != targetID
}

// CanUpdateAccount reports whether p may apply a patch to targetID.
// An admin may not revoke their own admin flag or deactivate themselves.
func CanUpdateAccount(p principal.Principal, targetID string, revokesAdmin, deactivates bool) bool {
	if !CanAdminister(p) {
		return false
	}
	if p.ID() == targetID && (revokesAdmin || deactivates) {
		return false
	}
	return true
}
