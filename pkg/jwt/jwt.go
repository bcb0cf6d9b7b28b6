package jwtutil

import (
	"crypto/rsa"
	"errors"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrPublicKeyMissing = errors.New("jwt public key not configured")

// Claims is the access token body issued by the account service. Only uid
// and role are read here.
type Claims struct {
	UserID       string `json:"uid"`
	Role         string `json:"role"`
	LegacyUserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

func NewClaims(userID, role string, expiry time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

// GenerateAccessToken signs claims with RS256. The hub itself never issues
// tokens; this exists for the healthcheck probe and tests.
func GenerateAccessToken(claims *Claims, privateKey *rsa.PrivateKey) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(privateKey)
}

func ParseAccessToken(tokenStr string, publicKey *rsa.PublicKey) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.UserID == "" {
		claims.UserID = claims.LegacyUserID
	}
	return claims, nil
}

// LoadPublicKey parses an inline PEM, falling back to reading path.
func LoadPublicKey(inlinePEM, path string) (*rsa.PublicKey, error) {
	pem := strings.TrimSpace(inlinePEM)
	if pem == "" && strings.TrimSpace(path) != "" {
		// #nosec G304 -- path comes from operator configuration.
		buf, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return nil, err
		}
		pem = string(buf)
	}
	if pem == "" {
		return nil, ErrPublicKeyMissing
	}
	return jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
}
