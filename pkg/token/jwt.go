// Package token verifies the JSON Web Tokens issued by the surrounding
// identity service and mints the short-lived tokens used to open WebSocket
// chat connections.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager verifies access tokens and issues websocket tokens. Both are
// signed with the same shared secret.
type JWTManager struct {
	secretKey  []byte
	wsTokenDur time.Duration
}

// CustomClaims carries the user identity inside a token alongside the
// standard registered claims.
type CustomClaims struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a JWTManager. wsTokenExpireMinutes bounds the
// lifetime of websocket tokens; access token lifetimes are controlled by the
// issuing service.
func NewJWTManager(secret string, wsTokenExpireMinutes int) *JWTManager {
	if wsTokenExpireMinutes <= 0 {
		wsTokenExpireMinutes = 5
	}
	return &JWTManager{
		secretKey:  []byte(secret),
		wsTokenDur: time.Duration(wsTokenExpireMinutes) * time.Minute,
	}
}

// GenerateWSToken mints a short-lived token that authorizes one WebSocket
// chat connection for the given user. Browsers cannot set headers on
// websocket upgrades, so the token travels in the connection URL instead.
func (m *JWTManager) GenerateWSToken(userID uint, username string) (string, error) {
	claims := CustomClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.wsTokenDur)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken validates a token string and returns its claims. It rejects
// tokens signed with anything other than HMAC, expired tokens, and tokens
// whose signature does not match the shared secret.
func (m *JWTManager) VerifyToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GenerateRandomString generates a random hex string of a given length.
func GenerateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less random string on error
		return fmt.Sprintf("fallback%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
