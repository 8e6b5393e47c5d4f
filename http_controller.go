package auth

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// AuthControllerRoutes collects the endpoint paths so applications can
// remap them without touching the handlers.
type AuthControllerRoutes struct {
	Login           string
	Register        string
	RefreshToken    string
	RevokeToken     string
	RevokeAllTokens string
	ForgotPassword  string
	ValidateCode    string
	VerifyResetCode string
}

// AuthController exposes the session flows as a JSON API over fiber.
type AuthController struct {
	Debug    bool
	Logger   Logger
	Repo     RepositoryManager
	Tokens   *TokenService
	Config   *Config
	Notifier Notifier
	Activity ActivitySink
	Routes   *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerTokens(tokens *TokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerConfig(cfg *Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerNotifier(n Notifier) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Notifier = n
		return c
	}
}

func WithControllerActivitySink(s ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = s
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:           "/auth/login",
			Register:        "/auth/register",
			RefreshToken:    "/auth/refresh-token",
			RevokeToken:     "/auth/revoke-token",
			RevokeAllTokens: "/auth/revoke-all-tokens",
			ForgotPassword:  "/auth/forgot-password",
			ValidateCode:    "/auth/validate-code",
			VerifyResetCode: "/auth/verify-reset-code",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts all session endpoints on the app.
func RegisterAuthRoutes(app *fiber.App, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).Name("auth.login")
	app.Post(controller.Routes.Register, controller.RegisterPost).Name("auth.register")
	app.Post(controller.Routes.RefreshToken, controller.RefreshTokenPost).Name("auth.refresh")
	app.Post(controller.Routes.RevokeToken, controller.RevokeTokenPost).Name("auth.revoke")
	app.Post(controller.Routes.RevokeAllTokens, controller.RevokeAllTokensPost).Name("auth.revoke_all")
	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).Name("auth.forgot_password")
	app.Post(controller.Routes.ValidateCode, controller.ValidateCodePost).Name("auth.validate_code")
	app.Post(controller.Routes.VerifyResetCode, controller.VerifyResetCodePost).Name("auth.verify_reset_code")

	return controller
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(c, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	var res *AuthResponse
	req := LoginMessage{
		Email:    payload.Email,
		Password: payload.Password,
		ClientIP: c.IP(),
		OnResponse: func(resp *AuthResponse) {
			res = resp
		},
	}

	login := LoginHandler{
		repo:     a.Repo,
		tokens:   a.Tokens,
		activity: a.Activity,
		logger:   a.Logger,
	}

	if err := login.Execute(c.Context(), req); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(res)
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterRequest)

	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(c, err)
	}

	var res *AuthResponse
	req := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Username:  payload.Username,
		Email:     payload.Email,
		Password:  payload.Password,
		ClientIP:  c.IP(),
		OnResponse: func(resp *AuthResponse) {
			res = resp
		},
	}

	registerUser := RegisterUserHandler{
		repo:     a.Repo,
		cfg:      a.Config,
		tokens:   a.Tokens,
		activity: a.Activity,
		logger:   a.Logger,
	}

	if err := registerUser.Execute(c.Context(), req); err != nil {
		a.Logger.Error("register user error: %v", err)
		return a.renderError(c, err)
	}

	return c.JSON(res)
}

// RefreshTokenRequest carries the opaque refresh value.
type RefreshTokenRequest struct {
	RefreshToken string `form:"refreshToken" json:"refreshToken"`
}

// Validate will validate the payload
func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) RefreshTokenPost(c *fiber.Ctx) error {
	payload := new(RefreshTokenRequest)

	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(c, err)
	}

	var res *AuthResponse
	req := RefreshSessionMessage{
		RefreshToken: payload.RefreshToken,
		ClientIP:     c.IP(),
		OnResponse: func(resp *AuthResponse) {
			res = resp
		},
	}

	refresh := RefreshSessionHandler{
		repo:     a.Repo,
		tokens:   a.Tokens,
		activity: a.Activity,
		logger:   a.Logger,
	}

	if err := refresh.Execute(c.Context(), req); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(res)
}

func (a *AuthController) RevokeTokenPost(c *fiber.Ctx) error {
	if _, err := a.bearerClaims(c); err != nil {
		return a.renderError(c, err)
	}

	payload := new(RefreshTokenRequest)

	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(c, err)
	}

	req := RevokeTokenMessage{
		RefreshToken: payload.RefreshToken,
		ClientIP:     c.IP(),
	}

	revoke := RevokeTokenHandler{
		repo:     a.Repo,
		activity: a.Activity,
		logger:   a.Logger,
	}

	if err := revoke.Execute(c.Context(), req); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

func (a *AuthController) RevokeAllTokensPost(c *fiber.Ctx) error {
	claims, err := a.bearerClaims(c)
	if err != nil {
		return a.renderError(c, err)
	}

	userID, err := claims.UserUUID()
	if err != nil {
		return a.renderError(c, ErrUnableToDecodeSession)
	}

	var revoked int64
	req := RevokeAllTokensMessage{
		UserID:   userID,
		ClientIP: c.IP(),
		OnResponse: func(count int64) {
			revoked = count
		},
	}

	revokeAll := RevokeAllTokensHandler{
		repo:     a.Repo,
		activity: a.Activity,
		logger:   a.Logger,
	}

	if err := revokeAll.Execute(c.Context(), req); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "revoked": revoked})
}

// ForgotPasswordRequest asks for a reset code by email.
type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ForgotPasswordPost(c *fiber.Ctx) error {
	payload := new(ForgotPasswordRequest)

	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(c, err)
	}

	var res *PasswordResetRequestResponse
	req := RequestPasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *PasswordResetRequestResponse) {
			res = resp
		},
	}

	forgot := RequestPasswordResetHandler{
		repo:     a.Repo,
		cfg:      a.Config,
		notifier: a.Notifier,
		activity: a.Activity,
		logger:   a.Logger,
	}

	if err := forgot.Execute(c.Context(), req); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(res)
}

// ValidateCodeRequest checks a reset code without consuming it.
type ValidateCodeRequest struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
}

// Validate will validate the payload
func (r ValidateCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

func (a *AuthController) ValidateCodePost(c *fiber.Ctx) error {
	payload := new(ValidateCodeRequest)

	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(c, err)
	}

	req := ValidateResetCodeMessage{
		Email: payload.Email,
		Code:  payload.Code,
	}

	validate := ValidateResetCodeHandler{repo: a.Repo}

	if err := validate.Execute(c.Context(), req); err != nil {
		return a.renderError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// VerifyResetCodeRequest redeems a reset code, optionally replacing the
// password.
type VerifyResetCodeRequest struct {
	Email       string `form:"email" json:"email"`
	Code        string `form:"code" json:"code"`
	NewPassword string `form:"newPassword" json:"newPassword"`
}

// Validate will validate the payload
func (r VerifyResetCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
		validation.Field(&r.NewPassword, validation.Length(10, 100)),
	)
}

func (a *AuthController) VerifyResetCodePost(c *fiber.Ctx) error {
	payload := new(VerifyResetCodeRequest)

	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "Error parsing body", err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationFailed(c, err)
	}

	var res *ResetPasswordResponse
	req := VerifyResetCodeMessage{
		Email:       payload.Email,
		Code:        payload.Code,
		NewPassword: payload.NewPassword,
		ClientIP:    c.IP(),
		OnResponse: func(resp *ResetPasswordResponse) {
			res = resp
		},
	}

	verify := VerifyResetCodeHandler{
		repo:     a.Repo,
		tokens:   a.Tokens,
		activity: a.Activity,
		logger:   a.Logger,
	}

	if err := verify.Execute(c.Context(), req); err != nil {
		return a.renderError(c, err)
	}

	if a.Debug {
		fmt.Println("================")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("================")
	}

	return c.JSON(res)
}

// bearerClaims authenticates the request via the Authorization header.
func (a *AuthController) bearerClaims(c *fiber.Ctx) (*SessionClaims, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, ErrTokenMalformed
	}

	return a.Tokens.Validate(strings.TrimPrefix(header, "Bearer "))
}

func (a *AuthController) badRequest(c *fiber.Ctx, message string, err error) error {
	a.Logger.Error("%s: %v", message, err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   message,
			"text_code": "BAD_REQUEST",
		},
	})
}

func (a *AuthController) validationFailed(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   "Error validating payload",
			"text_code": "VALIDATION_ERROR",
			"fields":    FormatValidationErrorToMap(err),
		},
	})
}

func (a *AuthController) renderError(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return c.Status(statusFromCategory(richErr.Category)).JSON(fiber.Map{
			"error": fiber.Map{
				"message":   richErr.Message,
				"text_code": richErr.TextCode,
			},
		})
	}

	a.Logger.Error("unhandled controller error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   "Internal server error",
			"text_code": "INTERNAL",
		},
	})
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return fiber.StatusBadRequest
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a field
// to message map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
