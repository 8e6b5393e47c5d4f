package auth

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginHandlerSuccess(t *testing.T) {
	db := setupTestDB(t)
	cfg := newTestConfig(t)
	tokens := newTestTokenService(t, cfg)
	repo := newTestManager(t, db, tokens)
	activity := &activityRecorder{}

	role := seedRole(t, db, "user")
	seedUser(t, db, "pepe@example.com", "password12345", role)

	handler := &LoginHandler{
		repo:     repo,
		tokens:   tokens,
		activity: activity,
		logger:   defLogger{},
	}

	var res *AuthResponse
	err := handler.Execute(context.Background(), LoginMessage{
		Email:    "pepe@example.com",
		Password: "password12345",
		ClientIP: "10.0.0.1",
		OnResponse: func(resp *AuthResponse) {
			res = resp
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "pepe@example.com", res.Email)
	assert.Equal(t, []string{"user"}, res.Roles)
	assert.True(t, res.RefreshTokenExpiresAt.After(time.Now()))

	// The refresh token must be live in the ledger.
	record, err := repo.RefreshTokens().GetByValue(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.True(t, record.IsActive())
	assert.Equal(t, "10.0.0.1", record.CreatedByIP)

	// The access token must validate and carry the principal.
	claims, err := tokens.Validate(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.UserID, claims.UserID())

	assert.True(t, activity.has(ActivityEventLoginSuccess))

	// Successful login resets attempt tracking and stamps loggedin_at.
	user, err := repo.Users().GetWithRolesByEmail(context.Background(), "pepe@example.com")
	require.NoError(t, err)
	assert.NotNil(t, user.LoggedInAt)
	assert.Equal(t, 0, user.LoginAttempts)
}

func TestLoginHandlerWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	cfg := newTestConfig(t)
	tokens := newTestTokenService(t, cfg)
	repo := newTestManager(t, db, tokens)
	activity := &activityRecorder{}

	role := seedRole(t, db, "user")
	seedUser(t, db, "pepe@example.com", "password12345", role)

	handler := &LoginHandler{
		repo:     repo,
		tokens:   tokens,
		activity: activity,
		logger:   defLogger{},
	}

	err := handler.Execute(context.Background(), LoginMessage{
		Email:    "pepe@example.com",
		Password: "not-the-password",
	})
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, ErrMismatchedHashAndPassword))
	assert.True(t, activity.has(ActivityEventLoginFailure))

	user, err := repo.Users().GetWithRolesByEmail(context.Background(), "pepe@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, user.LoginAttempts)
	assert.NotNil(t, user.LoginAttemptAt)
}

func TestLoginHandlerUnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	cfg := newTestConfig(t)
	tokens := newTestTokenService(t, cfg)
	repo := newTestManager(t, db, tokens)

	handler := &LoginHandler{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}

	err := handler.Execute(context.Background(), LoginMessage{
		Email:    "nobody@example.com",
		Password: "whatever12345",
	})
	require.Error(t, err)

	// Same failure as a bad password; the caller cannot tell them apart.
	assert.True(t, goerrors.Is(err, ErrMismatchedHashAndPassword))
}

func TestLoginHandlerCooldown(t *testing.T) {
	db := setupTestDB(t)
	cfg := newTestConfig(t)
	tokens := newTestTokenService(t, cfg)
	repo := newTestManager(t, db, tokens)

	role := seedRole(t, db, "user")
	user := seedUser(t, db, "pepe@example.com", "password12345", role)

	_, err := db.NewUpdate().
		Model((*User)(nil)).
		Set("login_attempts = ?", maxLoginAttempts).
		Set("login_attempt_at = ?", time.Now()).
		Where("id = ?", user.ID).
		Exec(context.Background())
	require.NoError(t, err)

	handler := &LoginHandler{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}

	// Correct credentials are still rejected while cooling down.
	err = handler.Execute(context.Background(), LoginMessage{
		Email:    "pepe@example.com",
		Password: "password12345",
	})
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, ErrTooManyLoginAttempts))
}

func TestLoginHandlerCooldownExpires(t *testing.T) {
	db := setupTestDB(t)
	cfg := newTestConfig(t)
	tokens := newTestTokenService(t, cfg)
	repo := newTestManager(t, db, tokens)

	role := seedRole(t, db, "user")
	user := seedUser(t, db, "pepe@example.com", "password12345", role)

	stale := time.Now().Add(-time.Hour)
	_, err := db.NewUpdate().
		Model((*User)(nil)).
		Set("login_attempts = ?", maxLoginAttempts).
		Set("login_attempt_at = ?", stale).
		Where("id = ?", user.ID).
		Exec(context.Background())
	require.NoError(t, err)

	handler := &LoginHandler{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}

	err = handler.Execute(context.Background(), LoginMessage{
		Email:    "pepe@example.com",
		Password: "password12345",
	})
	assert.NoError(t, err)
}
