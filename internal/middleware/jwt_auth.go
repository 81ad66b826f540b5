// Package middleware provides the HTTP middleware chain for the engine:
// request correlation IDs, CORS and JWT bearer authentication.
package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "pulsewatch"

// AuthConfig describes the single operator account and the token
// parameters. Credentials are fixed at startup; there is no user store
// behind the login endpoint.
type AuthConfig struct {
	Username     string
	PasswordHash string
	Secret       string
	TokenTTL     time.Duration

	// SkipPaths lists routes served without a token. An entry ending in
	// "*" matches the whole subtree.
	SkipPaths []string
}

// JWTAuth authenticates requests with HS256 bearer tokens.
type JWTAuth struct {
	cfg        AuthConfig
	skipExact  map[string]struct{}
	skipPrefix []string
}

// NewJWTAuth builds the middleware, splitting SkipPaths into an
// exact-match set and a prefix list up front.
func NewJWTAuth(cfg AuthConfig) *JWTAuth {
	a := &JWTAuth{cfg: cfg, skipExact: make(map[string]struct{})}
	for _, p := range cfg.SkipPaths {
		if strings.HasSuffix(p, "*") {
			a.skipPrefix = append(a.skipPrefix, strings.TrimSuffix(p, "*"))
		} else {
			a.skipExact[p] = struct{}{}
		}
	}
	return a
}

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateCredentials checks a username/password pair against the
// configured operator account. The username comparison is constant time
// so the configured name cannot be probed by timing.
func (a *JWTAuth) ValidateCredentials(username, password string) bool {
	nameOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Username)) == 1
	return nameOK && CheckPassword(password, a.cfg.PasswordHash)
}

// GenerateToken issues a signed token for username and returns it along
// with its expiry time.
func (a *JWTAuth) GenerateToken(username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(a.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateToken verifies a token's signature, issuer and expiry and
// returns the subject username.
func (a *JWTAuth) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.cfg.Secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

type contextKey string

const userContextKey contextKey = "auth_user"

// Wrap returns a handler that rejects requests without a valid bearer
// token. Skip paths pass through untouched.
func (a *JWTAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skips(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			unauthorized(w, "Missing authentication token")
			return
		}

		username, err := a.ValidateToken(token)
		if err != nil {
			log.Printf("Rejected token for %s %s: %v", r.Method, r.URL.Path, err)
			unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *JWTAuth) skips(path string) bool {
	if _, ok := a.skipExact[path]; ok {
		return true
	}
	for _, prefix := range a.skipPrefix {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="pulsewatch"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// GetUserFromContext returns the authenticated username stored by Wrap
func GetUserFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(userContextKey).(string)
	return username, ok
}
