package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	resetCodeMin = 100000
	resetCodeMax = 999999
)

// ResetCodes owns the recovery code rows. Issuing a code retires any
// previous redeemable codes for the same principal, so at most one code
// per principal can be redeemed at any time. Consumption is a conditional
// write guarded by the redeemable predicate, which makes codes single use
// under concurrency.
type ResetCodes interface {
	repository.Repository[*ResetCode]

	Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*ResetCode, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, ttl time.Duration) (*ResetCode, error)
	GetRedeemable(ctx context.Context, email, code string) (*ResetCode, error)
	GetRedeemableTx(ctx context.Context, tx bun.IDB, email, code string) (*ResetCode, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	InvalidateForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error)
}

type resetCodes struct {
	repository.Repository[*ResetCode]
	db *bun.DB
}

var _ ResetCodes = (*resetCodes)(nil)

// NewResetCodesRepository builds the reset code ledger over bun.
func NewResetCodesRepository(db *bun.DB) ResetCodes {
	repo := repository.NewRepository[*ResetCode](db, repository.ModelHandlers[*ResetCode]{
		NewRecord: func() *ResetCode { return &ResetCode{} },
		GetID: func(c *ResetCode) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *ResetCode, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "code"
		},
	})

	return &resetCodes{
		Repository: repo,
		db:         db,
	}
}

func (r *resetCodes) Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*ResetCode, error) {
	var issued *ResetCode
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := r.IssueTx(ctx, tx, userID, ttl)
		if err != nil {
			return err
		}
		issued = record
		return nil
	})

	if err != nil {
		return nil, err
	}

	return issued, nil
}

// IssueTx invalidates any redeemable codes for the principal and inserts
// a fresh one in the same transaction. A crash between the two statements
// cannot leave two live codes behind.
func (r *resetCodes) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, ttl time.Duration) (*ResetCode, error) {
	if _, err := r.InvalidateForUserTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	code, err := generateResetCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := &ResetCode{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		ExpiresAt: now.Add(ttl),
	}
	record.CreatedAt = &now

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset code")
	}

	return record, nil
}

func (r *resetCodes) GetRedeemable(ctx context.Context, email, code string) (*ResetCode, error) {
	return r.GetRedeemableTx(ctx, r.db, email, code)
}

// GetRedeemableTx resolves the redeemable code for an email and code pair.
// Any failure, unknown email, wrong code, expired or used code, collapses
// into ErrCodeRejected so callers cannot probe which part was wrong.
func (r *resetCodes) GetRedeemableTx(ctx context.Context, tx bun.IDB, email, code string) (*ResetCode, error) {
	record := &ResetCode{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Relation("User.Roles").
		Where("?TableAlias.code = ?", code).
		Where("?TableAlias.user_id IN (SELECT id FROM users WHERE email = ? AND deleted_at IS NULL)", email).
		Where("?TableAlias.used = ?", false).
		Where("?TableAlias.expires_at > ?", time.Now()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrCodeRejected
		}
		return nil, err
	}

	return record, nil
}

// ConsumeTx flips the code to used. The update is guarded by the
// redeemable predicate, so two transactions consuming the same code
// resolve to one winner; the loser gets ErrCodeRejected.
func (r *resetCodes) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := time.Now()
	res, err := tx.NewUpdate().
		Model((*ResetCode)(nil)).
		Set("used = ?", true).
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.used = ?", false).
		Where("?TableAlias.expires_at > ?", now).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset code")
	}

	claimed, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if claimed == 0 {
		return ErrCodeRejected
	}

	return nil
}

// InvalidateForUserTx retires every redeemable code a principal still has.
func (r *resetCodes) InvalidateForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error) {
	now := time.Now()
	res, err := tx.NewUpdate().
		Model((*ResetCode)(nil)).
		Set("used = ?", true).
		Set("updated_at = ?", now).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.used = ?", false).
		Where("?TableAlias.expires_at > ?", now).
		Exec(ctx)

	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate reset codes")
	}

	return res.RowsAffected()
}

func generateResetCode() (string, error) {
	span := big.NewInt(resetCodeMax - resetCodeMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset code")
	}
	return fmt.Sprintf("%06d", n.Int64()+resetCodeMin), nil
}
