package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RefreshSessionMessage struct {
	RefreshToken string `json:"refreshToken"`
	ClientIP     string `json:"-"`
	OnResponse   func(resp *AuthResponse)
}

func (e RefreshSessionMessage) Type() string { return "session.refresh" }

// RefreshSessionHandler rotates a refresh token and reissues the session.
// The old value is retired and a successor minted in one atomic ledger
// operation; presenting a retired value again is rejected and flagged as
// possible reuse.
type RefreshSessionHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	activity ActivitySink
	logger   Logger
}

func (h *RefreshSessionHandler) Execute(ctx context.Context, event RefreshSessionMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during session refresh",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RefreshSessionHandler) execute(ctx context.Context, event RefreshSessionMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, successor, err := h.repo.RefreshTokens().Rotate(ctx, event.RefreshToken, event.ClientIP)
	if err != nil {
		if goerrors.Is(err, ErrTokenRejected) {
			h.flagPossibleReuse(ctx, event)
		}
		return err
	}

	accessToken, accessExpiresAt, err := h.tokens.IssueAccessToken(user)
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventTokenRotated,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"client_ip": event.ClientIP},
	})

	if event.OnResponse != nil {
		event.OnResponse(buildAuthResponse(user, accessToken, accessExpiresAt, successor))
	}

	return nil
}

// flagPossibleReuse distinguishes a replayed token from a bogus value. A
// known row that is no longer active means someone presented a value that
// was already rotated or revoked, which downstream policy may treat as
// token theft.
func (h *RefreshSessionHandler) flagPossibleReuse(ctx context.Context, event RefreshSessionMessage) {
	record, err := h.repo.RefreshTokens().GetByValue(ctx, event.RefreshToken)
	if err != nil {
		return
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventTokenReuse,
		Actor:     ActorRef{ID: record.UserID.String(), Type: "user"},
		UserID:    record.UserID.String(),
		Metadata: map[string]any{
			"client_ip":   event.ClientIP,
			"revoked":     record.IsRevoked(),
			"expired":     record.IsExpired(),
			"replaced_by": record.ReplacedBy != "",
		},
	})
}
