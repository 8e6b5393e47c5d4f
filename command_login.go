package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	maxLoginAttempts    = 5
	loginCooldownWindow = "15m"
)

// AuthResponse is the session payload returned by login, refresh, and the
// session issuing branch of the reset code flow.
type AuthResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	UserID                string    `json:"userId"`
	Username              string    `json:"username"`
	Email                 string    `json:"email"`
	Roles                 []string  `json:"roles,omitempty"`
}

func buildAuthResponse(user *User, accessToken string, accessExpiresAt time.Time, refresh *RefreshToken) *AuthResponse {
	resp := &AuthResponse{
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessExpiresAt,
		UserID:               user.ID.String(),
		Username:             user.Username,
		Email:                user.Email,
		Roles:                user.RoleNames(),
	}

	if refresh != nil {
		resp.RefreshToken = refresh.Token
		resp.RefreshTokenExpiresAt = refresh.ExpiresAt
	}

	return resp
}

type LoginMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	ClientIP   string `json:"-"`
	OnResponse func(resp *AuthResponse)
}

func (e LoginMessage) Type() string { return "session.login" }

type LoginHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	activity ActivitySink
	logger   Logger
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginHandler) execute(ctx context.Context, event LoginMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetWithRolesByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// Burn comparable time so unknown emails are not
			// distinguishable by latency.
			_ = ComparePasswordAndHash(event.Password, RandomPasswordHash())
			return ErrMismatchedHashAndPassword
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for login")
	}

	if h.isCoolingDown(user) {
		return ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(event.Password, user.PasswordHash); err != nil {
		if trackErr := h.repo.Users().TrackAttemptedLogin(ctx, user); trackErr != nil {
			h.logger.Error("failed to track attempted login: %v", trackErr)
		}
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
			UserID:    user.ID.String(),
			Metadata:  map[string]any{"email": event.Email},
		})
		return ErrMismatchedHashAndPassword
	}

	if err := h.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		h.logger.Error("failed to track successful login: %v", err)
	}

	refresh, err := h.repo.RefreshTokens().Issue(ctx, user.ID, event.ClientIP)
	if err != nil {
		return err
	}

	accessToken, accessExpiresAt, err := h.tokens.IssueAccessToken(user)
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"client_ip": event.ClientIP},
	})

	if event.OnResponse != nil {
		event.OnResponse(buildAuthResponse(user, accessToken, accessExpiresAt, refresh))
	}

	return nil
}

func (h *LoginHandler) isCoolingDown(user *User) bool {
	if user.LoginAttempts < maxLoginAttempts {
		return false
	}
	if user.LoginAttemptAt == nil {
		return false
	}

	within, err := IsWithinThresholdPeriod(*user.LoginAttemptAt, loginCooldownWindow)
	if err != nil {
		h.logger.Error("failed to evaluate login cooldown window: %v", err)
		return false
	}

	return within
}
