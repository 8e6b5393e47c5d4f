package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultRoleName is assigned to newly registered users when no other
// role is requested.
const DefaultRoleName = "user"

// RecordMetadata carries the audit and soft delete fields shared by every
// persisted entity. Entities embed it instead of inheriting from a base
// model, so repositories can stamp it uniformly.
type RecordMetadata struct {
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	CreatedBy string     `bun:"created_by,nullzero" json:"created_by,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	UpdatedBy string     `bun:"updated_by,nullzero" json:"updated_by,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Touch stamps the modification fields.
func (m *RecordMetadata) Touch(actor string) {
	now := time.Now()
	m.UpdatedAt = &now
	if actor != "" {
		m.UpdatedBy = actor
	}
}

// User is the principal read model. The directory that owns users lives
// behind the Users repository; this core reads identities and requests
// password hash updates through it, nothing else.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	FirstName      string     `bun:"first_name" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name" json:"last_name,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	Roles          []*Role    `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	RecordMetadata
}

// RoleNames flattens the role relation into claim values.
func (u *User) RoleNames() []string {
	if len(u.Roles) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != nil && r.Name != "" {
			names = append(names, r.Name)
		}
	}
	return names
}

// Role is a named role granted to users through the user_roles join table.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string    `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string    `bun:"description" json:"description,omitempty"`
	RecordMetadata
}

// UserRole is the join model backing the users <-> roles m2m relation.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:usrrol"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// RefreshToken is one link of a rotation chain. The row is mutated exactly
// once, to set the revocation fields and the successor value; the token
// value and owner never change. Rows outlive revocation for audit and are
// only removed by PurgeExpired.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedByIP   string     `bun:"created_by_ip,nullzero" json:"created_by_ip,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	RevokedByIP   string     `bun:"revoked_by_ip,nullzero" json:"revoked_by_ip,omitempty"`
	ReplacedBy    string     `bun:"replaced_by,nullzero" json:"replaced_by,omitempty"`
	RecordMetadata
}

// IsRevoked reports whether the revocation timestamp is set.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired reports whether the expiry timestamp has passed.
func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// IsActive reports whether the token can still be rotated or revoked.
// Active, revoked, and expired are derived states; exactly one holds at
// any observation instant.
func (t *RefreshToken) IsActive() bool {
	return !t.IsRevoked() && !t.IsExpired()
}

// ResetCode is a single use six digit password recovery code. It is stored
// in the clear: the value is short lived, single use, and useless without
// the matching email.
type ResetCode struct {
	bun.BaseModel `bun:"table:reset_codes,alias:rsc"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Code          string    `bun:"code,notnull" json:"code,omitempty"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Used          bool      `bun:"used,notnull,default:false" json:"used,omitempty"`
	RecordMetadata
}

// IsRedeemable reports whether the code is un-used and unexpired.
func (c *ResetCode) IsRedeemable() bool {
	return !c.Used && time.Now().Before(c.ExpiresAt)
}
