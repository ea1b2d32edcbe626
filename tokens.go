package tracktime

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Admin token claims.
const (
	AdminTokenIssuer   = "tracktime"
	AdminTokenAudience = "admin"

	DefaultAdminTokenTTL = time.Hour
)

// IssueAdminToken signs an HS256 JWT that unlocks the admin endpoints.
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("admin token secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultAdminTokenTTL
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    AdminTokenIssuer,
		Audience:  jwt.ClaimStrings{AdminTokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}

// VerifyAdminToken checks signature, expiry, issuer and audience and
// returns the subject.
func VerifyAdminToken(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(AdminTokenIssuer),
		jwt.WithAudience(AdminTokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}
