package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens is the ledger that owns refresh token rows. Nothing else
// mutates them. Rotation and revocation are conditional writes guarded by
// the token's active state, so racing callers resolve to exactly one
// winner without table locks.
type RefreshTokens interface {
	repository.Repository[*RefreshToken]

	Issue(ctx context.Context, userID uuid.UUID, clientIP string) (*RefreshToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, clientIP string) (*RefreshToken, error)
	GetByValue(ctx context.Context, value string) (*RefreshToken, error)
	Rotate(ctx context.Context, value, clientIP string) (*User, *RefreshToken, error)
	Revoke(ctx context.Context, value, clientIP string) error
	RevokeAll(ctx context.Context, userID uuid.UUID, clientIP string) (int64, error)
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db     *bun.DB
	tokens *TokenService
}

var _ RefreshTokens = (*refreshTokens)(nil)

// NewRefreshTokensRepository builds the refresh token ledger. The token
// service mints the opaque values persisted by Issue and Rotate.
func NewRefreshTokensRepository(db *bun.DB, tokens *TokenService) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &refreshTokens{
		Repository: repo,
		db:         db,
		tokens:     tokens,
	}
}

func (r *refreshTokens) Issue(ctx context.Context, userID uuid.UUID, clientIP string) (*RefreshToken, error) {
	return r.IssueTx(ctx, r.db, userID, clientIP)
}

func (r *refreshTokens) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, clientIP string) (*RefreshToken, error) {
	value, expiresAt, err := r.tokens.IssueRefreshValue()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := &RefreshToken{
		ID:          uuid.New(),
		UserID:      userID,
		Token:       value,
		ExpiresAt:   expiresAt,
		CreatedByIP: clientIP,
	}
	record.CreatedAt = &now

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	return record, nil
}

func (r *refreshTokens) GetByValue(ctx context.Context, value string) (*RefreshToken, error) {
	return r.getByValue(ctx, r.db, value)
}

func (r *refreshTokens) getByValue(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

// Rotate atomically retires the token identified by value and replaces it
// with a successor for the same principal. The revocation update is
// guarded by the active predicate: when two callers race on the same
// value, one update claims the row and the other sees zero rows and gets
// ErrTokenRejected. A rejected rotation of a known token is a reuse
// signal; escalation policy belongs to the caller.
func (r *refreshTokens) Rotate(ctx context.Context, value, clientIP string) (*User, *RefreshToken, error) {
	var owner *User
	var successor *RefreshToken

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := &RefreshToken{}
		err := tx.NewSelect().
			Model(current).
			Relation("User").
			Relation("User.Roles").
			Where("?TableAlias.token = ?", value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenRejected
			}
			return err
		}

		if !current.IsActive() {
			return ErrTokenRejected
		}

		next, err := r.IssueTx(ctx, tx, current.UserID, clientIP)
		if err != nil {
			return err
		}

		now := time.Now()
		res, err := tx.NewUpdate().
			Model((*RefreshToken)(nil)).
			Set("revoked_at = ?", now).
			Set("revoked_by_ip = ?", clientIP).
			Set("replaced_by = ?", next.Token).
			Set("updated_at = ?", now).
			Where("?TableAlias.token = ?", value).
			Where("?TableAlias.revoked_at IS NULL").
			Where("?TableAlias.expires_at > ?", now).
			Exec(ctx)

		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke rotated refresh token")
		}

		claimed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if claimed == 0 {
			// Lost the race: someone else rotated or revoked this value
			// after our read. The transaction rolls back the successor.
			return ErrTokenRejected
		}

		owner = current.User
		successor = next
		return nil
	})

	if err != nil {
		return nil, nil, err
	}

	return owner, successor, nil
}

// Revoke marks a specific active token revoked. Revoking a token that is
// already revoked or expired is a no-op; an unknown value reports not
// found so callers can decide how loudly to fail.
func (r *refreshTokens) Revoke(ctx context.Context, value, clientIP string) error {
	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", now).
		Set("revoked_by_ip = ?", clientIP).
		Set("updated_at = ?", now).
		Where("?TableAlias.token = ?", value).
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token")
	}

	claimed, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if claimed > 0 {
		return nil
	}

	if _, err := r.getByValue(ctx, r.db, value); err != nil {
		if repository.IsRecordNotFound(err) {
			return repository.NewRecordNotFound()
		}
		return err
	}

	// Row exists but is already inactive.
	return nil
}

// RevokeAll retires every active token for the principal in one statement
// and reports how many rows it claimed.
func (r *refreshTokens) RevokeAll(ctx context.Context, userID uuid.UUID, clientIP string) (int64, error) {
	now := time.Now()
	res, err := r.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", now).
		Set("revoked_by_ip = ?", clientIP).
		Set("updated_at = ?", now).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		Exec(ctx)

	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke user refresh tokens")
	}

	return res.RowsAffected()
}

// PurgeExpired physically removes rows whose revoked or expired state has
// persisted past the retention window. Rows still inside the window stay
// for audit.
func (r *refreshTokens) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("?TableAlias.expires_at < ?", cutoff).
		WhereOr("?TableAlias.revoked_at IS NOT NULL AND ?TableAlias.revoked_at < ?", cutoff).
		ForceDelete().
		Exec(ctx)

	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge refresh tokens")
	}

	return res.RowsAffected()
}
