package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDFromRequest resolves the caller's user id: the verified subject set by
// the middleware when it ran, otherwise the unverified JWT subject. The
// unverified path only exists for deployments that terminate auth upstream.
func UserIDFromRequest(r *http.Request) (string, error) {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return userID, nil
	}
	token, err := ExtractTokenFromRequest(r)
	if err != nil {
		return "", err
	}
	return ExtractUserIDFromJWT(token)
}

// ExtractUserIDFromJWT parses a JWT without validating the signature and
// returns its 'sub' claim.
func ExtractUserIDFromJWT(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("subject claim not found in token")
	}

	return sub, nil
}
