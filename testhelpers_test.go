package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testSigningKey = "test-signing-key-for-unit-tests"

var testSchema = []string{
	`CREATE TABLE users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		first_name TEXT,
		last_name TEXT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT,
		login_attempts INTEGER NOT NULL DEFAULT 0,
		login_attempt_at TIMESTAMP NULL,
		loggedin_at TIMESTAMP NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_by TEXT,
		updated_at TIMESTAMP,
		updated_by TEXT,
		deleted_at TIMESTAMP NULL
	);`,
	`CREATE TABLE roles (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_by TEXT,
		updated_at TIMESTAMP,
		updated_by TEXT,
		deleted_at TIMESTAMP NULL
	);`,
	`CREATE TABLE user_roles (
		user_id TEXT NOT NULL,
		role_id TEXT NOT NULL,
		PRIMARY KEY (user_id, role_id),
		FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		FOREIGN KEY (role_id) REFERENCES roles (id) ON DELETE CASCADE
	);`,
	`CREATE TABLE refresh_tokens (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMP NOT NULL,
		created_by_ip TEXT,
		revoked_at TIMESTAMP NULL,
		revoked_by_ip TEXT,
		replaced_by TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_by TEXT,
		updated_at TIMESTAMP,
		updated_by TEXT,
		deleted_at TIMESTAMP NULL,
		FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	);`,
	`CREATE TABLE reset_codes (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		code TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_by TEXT,
		updated_at TIMESTAMP,
		updated_by TEXT,
		deleted_at TIMESTAMP NULL,
		FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	);`,
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	RegisterManyToMany(bunDB)

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	for _, stmt := range testSchema {
		_, err = bunDB.Exec(stmt)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return bunDB
}

func newTestConfig(t *testing.T, opts ...ConfigOption) *Config {
	t.Helper()
	cfg, err := NewConfig(testSigningKey, opts...)
	require.NoError(t, err)
	return cfg
}

func newTestTokenService(t *testing.T, cfg *Config) *TokenService {
	t.Helper()
	tokens, err := NewTokenService(cfg, defLogger{})
	require.NoError(t, err)
	return tokens
}

func newTestManager(t *testing.T, db *bun.DB, tokens *TokenService) RepositoryManager {
	t.Helper()
	repo := NewRepositoryManager(db, tokens)
	repo.MustValidate()
	return repo
}

func seedRole(t *testing.T, db *bun.DB, name string) *Role {
	t.Helper()

	now := time.Now()
	role := &Role{
		ID:   uuid.New(),
		Name: name,
	}
	role.CreatedAt = &now

	_, err := db.NewInsert().Model(role).Exec(context.Background())
	require.NoError(t, err)

	return role
}

func seedUser(t *testing.T, db *bun.DB, email, password string, roles ...*Role) *User {
	t.Helper()

	hash, err := HashPassword(password)
	require.NoError(t, err)

	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Username:     email[:1] + uuid.NewString()[:8],
		Email:        email,
		PasswordHash: hash,
	}
	user.CreatedAt = &now

	ctx := context.Background()
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	for _, role := range roles {
		_, err = db.NewInsert().Model(&UserRole{
			UserID: user.ID,
			RoleID: role.ID,
		}).Exec(ctx)
		require.NoError(t, err)
	}

	user.Roles = roles
	return user
}

// activityRecorder captures events for assertions.
type activityRecorder struct {
	events []ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event ActivityEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) has(eventType ActivityEventType) bool {
	for _, e := range r.events {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}
