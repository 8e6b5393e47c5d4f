package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	ClientIP  string `json:"-"`
	UseHashid bool
	OnResponse func(resp *AuthResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates the account and signs the principal in: a
// successful registration returns the same session payload as login.
type RegisterUserHandler struct {
	repo     RepositoryManager
	cfg      *Config
	tokens   *TokenService
	activity ActivitySink
	logger   Logger
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := h.repo.Users().ExistsByEmailTx(ctx, tx, event.Email)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}
		if exists {
			return ErrDuplicateAccount
		}

		roleName := event.Role
		if roleName == "" {
			roleName = h.cfg.GetDefaultRole()
		}

		role, err := h.repo.Roles().GetByNameTx(ctx, tx, roleName)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrMissingDefaultRole
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve role for registration")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Username = getUsername(event.Username, event.Email)
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if err := h.repo.Users().GrantRoleTx(ctx, tx, user.ID, role.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to grant role to user")
		}

		user.Roles = []*Role{role}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
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
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"email": user.Email},
	})

	if event.OnResponse != nil {
		event.OnResponse(buildAuthResponse(user, accessToken, accessExpiresAt, refresh))
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
