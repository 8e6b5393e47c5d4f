package auth

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUserWithRoles(roles ...string) *User {
	user := &User{
		ID:       uuid.New(),
		Username: "pepe",
		Email:    "pepe.rone@example.com",
	}
	for _, name := range roles {
		user.Roles = append(user.Roles, &Role{ID: uuid.New(), Name: name})
	}
	return user
}

func TestIssueAccessToken(t *testing.T) {
	cfg := newTestConfig(t, WithIssuer("test-issuer"), WithAudience("test-aud"))
	tokens := newTestTokenService(t, cfg)

	user := testUserWithRoles("user", "admin")

	signed, expiresAt, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.WithinDuration(t, time.Now().Add(cfg.GetAccessTokenTTL()), expiresAt, 5*time.Second)

	claims, err := tokens.Validate(signed)
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, user.Username, claims.Username)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, []string{"user", "admin"}, claims.Roles)
	assert.True(t, claims.HasRole("admin"))
	assert.False(t, claims.HasRole("owner"))
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.TokenID(), "jti should always be stamped")
}

func TestIssueAccessTokenUniqueTokenID(t *testing.T) {
	cfg := newTestConfig(t)
	tokens := newTestTokenService(t, cfg)
	user := testUserWithRoles("user")

	first, _, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)
	second, _, err := tokens.IssueAccessToken(user)
	require.NoError(t, err)

	c1, err := tokens.Validate(first)
	require.NoError(t, err)
	c2, err := tokens.Validate(second)
	require.NoError(t, err)

	assert.NotEqual(t, c1.TokenID(), c2.TokenID())
}

func TestIssueAccessTokenRequiresUser(t *testing.T) {
	tokens := newTestTokenService(t, newTestConfig(t))

	_, _, err := tokens.IssueAccessToken(nil)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	cfg := newTestConfig(t, WithAccessTokenTTL(time.Nanosecond))
	tokens := newTestTokenService(t, cfg)

	signed, _, err := tokens.IssueAccessToken(testUserWithRoles("user"))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = tokens.Validate(signed)
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, ErrTokenExpired))
}

func TestValidateRejectsWrongKey(t *testing.T) {
	tokens := newTestTokenService(t, newTestConfig(t))

	other, err := NewConfig("a-completely-different-key")
	require.NoError(t, err)
	otherService, err := NewTokenService(other, nil)
	require.NoError(t, err)

	signed, _, err := otherService.IssueAccessToken(testUserWithRoles("user"))
	require.NoError(t, err)

	_, err = tokens.Validate(signed)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	tokens := newTestTokenService(t, newTestConfig(t))

	_, err := tokens.Validate("not.a.token")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "TOKEN_MALFORMED", richErr.TextCode)
}

func TestNewTokenServiceRequiresSigningKey(t *testing.T) {
	_, err := NewTokenService(nil, nil)
	assert.Equal(t, ErrMissingSigningKey, err)
}

func TestClaimsDecorator(t *testing.T) {
	cfg := newTestConfig(t)
	tokens, err := NewTokenService(cfg, nil, func(user *User, claims *SessionClaims) error {
		claims.Username = "decorated"
		return nil
	})
	require.NoError(t, err)

	signed, _, err := tokens.IssueAccessToken(testUserWithRoles("user"))
	require.NoError(t, err)

	claims, err := tokens.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "decorated", claims.Username)
	assert.Equal(t, []string{"user"}, claims.Roles)
}

func TestIssueRefreshValue(t *testing.T) {
	cfg := newTestConfig(t, WithRefreshTokenTTL(time.Hour))
	tokens := newTestTokenService(t, cfg)

	v1, exp1, err := tokens.IssueRefreshValue()
	require.NoError(t, err)
	v2, _, err := tokens.IssueRefreshValue()
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
	assert.GreaterOrEqual(t, len(v1), 64, "opaque value must carry at least 256 bits of entropy")
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp1, 5*time.Second)
}
