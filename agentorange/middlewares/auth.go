package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"agentorange/agentorange/config"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const SubjectKey contextKey = "subject"

var ErrUnauthorized = errors.New("unauthorized")

// ParseToken validates an HMAC signed token and returns its subject.
func ParseToken(secret, tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrUnauthorized
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrUnauthorized
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", ErrUnauthorized
	}
	return sub, nil
}

// AuthMiddleware requires a bearer token when a JWT secret is configured. A
// local instance without a secret accepts every request.
func AuthMiddleware(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.JWTSecret == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(r.Header.Get("Authorization"), " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			sub, err := ParseToken(cfg.JWTSecret, parts[1])
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), SubjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
