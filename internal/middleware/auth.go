// Package middleware provides the HTTP middleware chain: auth, logging, tracing, metrics and rate limits.
package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"opinara/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "opinara-api"
	TokenAudience = "opinara-client"
)

// IssueToken signs an HS256 access token whose subject is the user id.
func IssueToken(secret string, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": TokenIssuer,
		"aud": TokenAudience,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies a token and returns the user id from its subject.
func ParseToken(secret, tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, errors.New("invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, errors.New("invalid user ID in token")
	}
	return uint(userID), nil
}

// AuthRequired rejects requests without a valid bearer token and stores the
// caller's id in c.Locals("userID").
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return models.RespondWithError(c, models.NewUnauthorizedError("Authorization required"))
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid authorization header format"))
		}

		userID, err := ParseToken(secret, parts[1])
		if err != nil {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid or expired token"))
		}

		c.Locals("userID", userID)
		c.SetUserContext(WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}
