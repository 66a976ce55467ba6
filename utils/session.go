package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const sessionIssuer = "event-finder"

var ErrInvalidSession = errors.New("invalid session token")

// GenerateSessionToken signs an HS256 token whose subject is the user id.
func GenerateSessionToken(secret string, userID primitive.ObjectID, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("session secret not configured")
	}

	claims := jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		ID:        uuid.NewString(),
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies the signature and expiry and returns the user id.
func ParseSessionToken(secret, tokenStr string) (primitive.ObjectID, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return primitive.NilObjectID, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}
	return id, nil
}
