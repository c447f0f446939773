package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	secretMu sync.RWMutex
	secret   []byte
)

// SetSecret sets the HMAC key used to sign and verify tokens.
func SetSecret(s string) {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = []byte(s)
}

func signingKey() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return secret
}

func generate(userID, tokenVersion uint64, tokenType string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":       userID,
		"token_version": tokenVersion,
		"type":          tokenType,
		"exp":           time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey())
}

func GenerateAccessToken(userID, tokenVersion uint64) (string, error) {
	return generate(userID, tokenVersion, tokenTypeAccess, AccessTokenTTL)
}

func GenerateRefreshToken(userID, tokenVersion uint64) (string, error) {
	return generate(userID, tokenVersion, tokenTypeRefresh, RefreshTokenTTL)
}

func VerifyJWT(tokenString string) (*jwt.Token, error) {
	jwtToken, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return signingKey(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if !jwtToken.Valid {
		return nil, errors.New("token invalid")
	}

	return jwtToken, nil
}

// GetDataFromToken extracts user id and token version. Numbers in MapClaims
// decode as float64.
func GetDataFromToken(token *jwt.Token) (uint64, uint64, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, 0, errors.New("unexpected claims type")
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, 0, fmt.Errorf("user_id claim missing")
	}
	version, ok := claims["token_version"].(float64)
	if !ok {
		return 0, 0, fmt.Errorf("token_version claim missing")
	}

	return uint64(userID), uint64(version), nil
}

// IsRefreshToken reports whether the token was issued for refreshing.
func IsRefreshToken(token *jwt.Token) bool {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	return claims["type"] == tokenTypeRefresh
}
