package auth

import (
	"github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RegisterModels registers every model this package persists with the
// shared persistence client. The join table must be registered for the
// users <-> roles m2m relation to resolve.
func RegisterModels() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Role)(nil))
	persistence.RegisterModel((*UserRole)(nil))
	persistence.RegisterModel((*RefreshToken)(nil))
	persistence.RegisterModel((*ResetCode)(nil))
}

// RegisterManyToMany registers the join model directly on a bun.DB. Use
// this when wiring the package without the persistence client, for
// example in tests over an in-memory database.
func RegisterManyToMany(db *bun.DB) {
	db.RegisterModel((*UserRole)(nil))
}
