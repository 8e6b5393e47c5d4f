package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ValidateResetCodeMessage struct {
	Email      string `json:"email"`
	Code       string `json:"code"`
	OnResponse func(valid bool)
}

func (e ValidateResetCodeMessage) Type() string { return "user.password_reset.validate" }

// ValidateResetCodeHandler checks a code without consuming it, so a client
// can confirm the code before asking the principal for a new password.
type ValidateResetCodeHandler struct {
	repo RepositoryManager
}

func (h *ValidateResetCodeHandler) Execute(ctx context.Context, event ValidateResetCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset code validation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ValidateResetCodeHandler) execute(ctx context.Context, event ValidateResetCodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if _, err := h.repo.ResetCodes().GetRedeemable(ctx, event.Email, event.Code); err != nil {
		if goerrors.Is(err, ErrCodeRejected) {
			if event.OnResponse != nil {
				event.OnResponse(false)
			}
			return ErrCodeRejected
		}
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(true)
	}

	return nil
}

type VerifyResetCodeMessage struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
	ClientIP    string `json:"-"`
	OnResponse  func(resp *ResetPasswordResponse)
}

func (e VerifyResetCodeMessage) Type() string { return "user.password_reset.verify" }

type ResetPasswordResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Session *AuthResponse `json:"session,omitempty"`
}

// VerifyResetCodeHandler redeems a reset code. With a new password the
// principal's hash is replaced; without one the code acts as a one time
// credential and a fresh session is issued. Either way the code is
// consumed in the same transaction, so it cannot be redeemed twice.
type VerifyResetCodeHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	activity ActivitySink
	logger   Logger
}

func (h *VerifyResetCodeHandler) Execute(ctx context.Context, event VerifyResetCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during reset code verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyResetCodeHandler) execute(ctx context.Context, event VerifyResetCodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &ResetPasswordResponse{}
	var userID string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		code, err := h.repo.ResetCodes().GetRedeemableTx(ctx, tx, event.Email, event.Code)
		if err != nil {
			return err
		}

		if err := h.repo.ResetCodes().ConsumeTx(ctx, tx, code.ID); err != nil {
			return err
		}

		userID = code.UserID.String()

		if event.NewPassword != "" {
			hash, err := HashPassword(event.NewPassword)
			if err != nil {
				var richErr *goerrors.Error
				if goerrors.As(err, &richErr) {
					return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}

			if err := h.repo.Users().ResetPasswordTx(ctx, tx, code.UserID, hash); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
			}

			resp.Success = true
			resp.Message = "Password has been updated"
			return nil
		}

		refresh, err := h.repo.RefreshTokens().IssueTx(ctx, tx, code.UserID, event.ClientIP)
		if err != nil {
			return err
		}

		accessToken, accessExpiresAt, err := h.tokens.IssueAccessToken(code.User)
		if err != nil {
			return err
		}

		resp.Success = true
		resp.Message = "Reset code accepted"
		resp.Session = buildAuthResponse(code.User, accessToken, accessExpiresAt, refresh)
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "reset code verification failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventResetConsumed,
		Actor:     ActorRef{ID: userID, Type: "user"},
		UserID:    userID,
		Metadata:  map[string]any{"password_updated": event.NewPassword != ""},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
