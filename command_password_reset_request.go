package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type RequestPasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *PasswordResetRequestResponse)
}

func (e RequestPasswordResetMessage) Type() string { return "user.password_reset.request" }

type PasswordResetRequestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RequestPasswordResetHandler issues a reset code and hands it to the
// notifier. The response is identical whether or not the email has an
// account, so the endpoint cannot be used to enumerate users.
type RequestPasswordResetHandler struct {
	repo     RepositoryManager
	cfg      *Config
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

func (h *RequestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &PasswordResetRequestResponse{
		Success: true,
		Message: "If the account exists, a reset code has been sent",
	}

	user, err := h.repo.Users().GetWithRolesByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	code, err := h.repo.ResetCodes().Issue(ctx, user.ID, h.cfg.GetResetCodeTTL())
	if err != nil {
		return err
	}

	if err := normalizeNotifier(h.notifier).SendResetCode(ctx, user.Email, code.Code, user.Username); err != nil {
		// Delivery failures stay server side. The caller still gets the
		// uniform acknowledgment and can request a new code.
		h.logger.Error("failed to deliver reset code: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventResetRequested,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
