package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/model"
)

// PurposePasswordReset marks single-use reset tokens. They are refused as session tokens.
const PurposePasswordReset = "password_reset"

var (
	ErrMissingToken = errors.New("missing authorization header")
	ErrBadScheme    = errors.New("invalid authorization format")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type Claims struct {
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	Role       model.Role `json:"role"`
	ProviderID *int64     `json:"provider_id,omitempty"`
	Purpose    string     `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens with one shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a session token for u.
func (t *Tokens) Issue(u *model.User) (string, error) {
	return t.sign(Claims{
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		ProviderID: u.ProviderID,
	}, t.ttl)
}

// IssuePasswordReset returns a short-lived token that only ResetPassword accepts.
func (t *Tokens) IssuePasswordReset(u *model.User, ttl time.Duration) (string, error) {
	return t.sign(Claims{UserID: u.ID, Email: u.Email, Purpose: PurposePasswordReset}, ttl)
}

func (t *Tokens) sign(c Claims, ttl time.Duration) (string, error) {
	now := t.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   c.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken pulls the raw token out of the Authorization header.
func BearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", ErrMissingToken
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrBadScheme
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
