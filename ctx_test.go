package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserContext(t *testing.T) {
	ctx := context.Background()

	_, ok := FromContext(ctx)
	assert.False(t, ok)

	user := &User{ID: uuid.New(), Email: "pepe@example.com"}
	ctx = WithContext(ctx, user)

	found, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, user.ID, found.ID)
}

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()

	_, ok := GetClaims(ctx)
	assert.False(t, ok)

	claims := &SessionClaims{UID: uuid.NewString(), Roles: []string{"admin"}}
	ctx = WithClaimsContext(ctx, claims)

	found, ok := GetClaims(ctx)
	assert.True(t, ok)
	assert.Equal(t, claims.UID, found.UID)

	assert.True(t, HasRoleInContext(ctx, "admin"))
	assert.False(t, HasRoleInContext(ctx, "owner"))
	assert.False(t, HasRoleInContext(context.Background(), "admin"))
}
