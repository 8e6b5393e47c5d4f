package auth

// ClaimsDecorator runs before an access token is signed. Decorators may
// enrich the extension fields; the registered claims (sub, iss, aud, exp)
// are stamped after decoration and cannot be overridden.
type ClaimsDecorator func(user *User, claims *SessionClaims) error

// RolesClaimDecorator copies the principal's role names into the claims.
// It is always installed; custom decorators run after it.
func RolesClaimDecorator(user *User, claims *SessionClaims) error {
	claims.Roles = user.RoleNames()
	return nil
}
