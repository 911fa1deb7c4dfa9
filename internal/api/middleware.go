package api

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/moviehub/notify/internal/errs"
)

const (
	headerRequestID = "X-Request-Id"
	ctxRequestID    = "request_id"
	ctxUserID       = "user_id"
)

// RequestID propagates the caller's X-Request-Id or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// TokenVerifier validates RS256 JWTs against the service public key and
// extracts the user id from the "user" claim.
type TokenVerifier struct {
	key *rsa.PublicKey
}

func NewTokenVerifier(publicKeyPEM []byte) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT public key: %w", err)
	}
	return &TokenVerifier{key: key}, nil
}

// Verify parses the token and returns the user id.
func (v *TokenVerifier) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return uuid.Nil, errs.Auth("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errs.Auth("invalid token claims")
	}
	userClaim, ok := claims["user"].(string)
	if !ok {
		return uuid.Nil, errs.Auth("token has no user claim")
	}
	userID, err := uuid.Parse(userClaim)
	if err != nil {
		return uuid.Nil, errs.Auth("user claim is not a UUID")
	}
	return userID, nil
}

// RequireJWT authenticates bearer tokens on protected routes.
func RequireJWT(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(c, errs.Auth("missing bearer token"))
			c.Abort()
			return
		}

		userID, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxUserID, userID.String())
		c.Next()
	}
}

func userIDFrom(c *gin.Context) uuid.UUID {
	id, _ := uuid.Parse(c.GetString(ctxUserID))
	return id
}
