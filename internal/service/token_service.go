package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/notehub-api/internal/models"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// TokenIssuer signs identity tokens carrying {id, username, role}.
type TokenIssuer interface {
	Issue(user models.User) (string, error)
}

type jwtIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs an HS256 token issuer.
func NewTokenIssuer(secret string, ttl time.Duration) TokenIssuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &jwtIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *jwtIssuer) Issue(user models.User) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := i.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"role":     user.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(i.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
