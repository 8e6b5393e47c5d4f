package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type RevokeTokenMessage struct {
	RefreshToken string `json:"refreshToken"`
	ClientIP     string `json:"-"`
	OnResponse   func()
}

func (e RevokeTokenMessage) Type() string { return "session.revoke" }

// RevokeTokenHandler retires a single refresh token. Revoking a token that
// is already revoked or expired succeeds without touching the row; an
// unknown value is rejected the same way as any bad token.
type RevokeTokenHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func (h *RevokeTokenHandler) Execute(ctx context.Context, event RevokeTokenMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during token revocation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RevokeTokenHandler) execute(ctx context.Context, event RevokeTokenMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.repo.RefreshTokens().Revoke(ctx, event.RefreshToken, event.ClientIP); err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrTokenRejected
		}
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventTokenRevoked,
		Metadata:  map[string]any{"client_ip": event.ClientIP},
	})

	if event.OnResponse != nil {
		event.OnResponse()
	}

	return nil
}

type RevokeAllTokensMessage struct {
	UserID     uuid.UUID `json:"userId"`
	ClientIP   string    `json:"-"`
	OnResponse func(revoked int64)
}

func (e RevokeAllTokensMessage) Type() string { return "session.revoke_all" }

// RevokeAllTokensHandler retires every active refresh token a principal
// holds, ending all of their sessions at once.
type RevokeAllTokensHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func (h *RevokeAllTokensHandler) Execute(ctx context.Context, event RevokeAllTokensMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during bulk token revocation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RevokeAllTokensHandler) execute(ctx context.Context, event RevokeAllTokensMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	revoked, err := h.repo.RefreshTokens().RevokeAll(ctx, event.UserID, event.ClientIP)
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventTokenRevoked,
		Actor:     ActorRef{ID: event.UserID.String(), Type: "user"},
		UserID:    event.UserID.String(),
		Metadata: map[string]any{
			"client_ip": event.ClientIP,
			"revoked":   revoked,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(revoked)
	}

	return nil
}
