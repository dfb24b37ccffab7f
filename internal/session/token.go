package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "synerthree-gateway"
	tokenAudience = "synerthree-web"
)

// ErrInvalidToken is returned for any gateway token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// Issuer signs and verifies the opaque gateway tokens handed to the browser.
// The token names a session; the backend auth token never leaves the gateway.
type Issuer struct {
	secret []byte
}

// NewIssuer creates an Issuer using an HMAC secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue creates a gateway token for s.
func (i *Issuer) Issue(s *Session) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(s.UserID), 10),
		"username": s.Username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      s.ExpiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      s.ID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Claims are the verified contents of a gateway token.
type Claims struct {
	SessionID string
	UserID    uint
}

// Verify validates a gateway token and returns its session id and user id.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{SessionID: jti, UserID: uint(userID)}, nil
}
