package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// refreshValueBytes is the entropy of an opaque refresh token value.
// 64 bytes comfortably clears the 256 bit floor.
const refreshValueBytes = 64

// TokenService builds signed access tokens and opaque refresh token
// values. It holds no mutable state besides the shared config, so a single
// instance serves all requests.
type TokenService struct {
	cfg        *Config
	logger     Logger
	decorators []ClaimsDecorator
}

// NewTokenService creates a TokenService. The config carries the signing
// key; NewConfig already refused to build without one. Decorators run in
// order before each access token is signed.
func NewTokenService(cfg *Config, logger Logger, decorators ...ClaimsDecorator) (*TokenService, error) {
	if cfg == nil || len(cfg.GetSigningKey()) == 0 {
		return nil, ErrMissingSigningKey
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		cfg:        cfg,
		logger:     logger,
		decorators: append([]ClaimsDecorator{RolesClaimDecorator}, decorators...),
	}, nil
}

// IssueAccessToken signs a short lived token carrying the principal's id,
// username, email, and one role claim per role, plus a unique jti.
func (ts *TokenService) IssueAccessToken(user *User) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	now := time.Now()
	expiresAt := now.Add(ts.cfg.GetAccessTokenTTL())

	var aud jwt.ClaimStrings
	if audience := ts.cfg.GetAudience(); len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	claims := &SessionClaims{
		UID:      user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
	}

	for _, decorate := range ts.decorators {
		if decorate == nil {
			continue
		}
		if err := decorate(user, claims); err != nil {
			return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "claims decorator failed")
		}
	}

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    ts.cfg.GetIssuer(),
		Subject:   user.ID.String(),
		Audience:  aud,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.cfg.GetSigningKey())
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, expiresAt, nil
}

// IssueRefreshValue generates an opaque, unguessable refresh token value
// and its expiry. The value is never parsed for claims; the ledger looks
// it up strictly by equality.
func (ts *TokenService) IssueRefreshValue() (string, time.Time, error) {
	buf := make([]byte, refreshValueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}

	value := base64.RawURLEncoding.EncodeToString(buf)
	return value, time.Now().Add(ts.cfg.GetRefreshTokenTTL()), nil
}

// Validate parses an access token enforcing signature, issuer, audience,
// and expiry, and returns the structured claims. Clock skew tolerance is
// zero.
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if issuer := ts.cfg.GetIssuer(); issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	if audience := ts.cfg.GetAudience(); len(audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.cfg.GetSigningKey(), nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnableToDecodeSession
}
