package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus the scoped transaction
// handle the flows use for their atomic sections.
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	Roles() Roles
	RefreshTokens() RefreshTokens
	ResetCodes() ResetCodes
}

type mngr struct {
	db            *bun.DB
	users         Users
	roles         Roles
	refreshTokens RefreshTokens
	resetCodes    ResetCodes
}

// NewRepositoryManager wires the ledger repositories over a shared bun.DB.
// The token service is needed by the refresh token ledger to mint opaque
// values during create and rotate.
func NewRepositoryManager(db *bun.DB, tokens *TokenService) RepositoryManager {
	return &mngr{
		db:            db,
		users:         NewUsersRepository(db),
		roles:         NewRolesRepository(db),
		refreshTokens: NewRefreshTokensRepository(db, tokens),
		resetCodes:    NewResetCodesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}

	if m.resetCodes == nil {
		return errors.New("repository resetCodes should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) RefreshTokens() RefreshTokens {
	return m.refreshTokens
}

func (m mngr) ResetCodes() ResetCodes {
	return m.resetCodes
}
