package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Sessions are minted by the identity service; this package only binds a
// verified accountId to requests and socket upgrades.

type contextKey struct{}

var accountKey contextKey

// Claims carried by the session token.
type Claims struct {
	AccountID string `json:"accountId"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse verifies the token and returns the account it belongs to.
func (v *Verifier) Parse(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.AccountID == "" {
		return "", errors.New("invalid session token")
	}
	return claims.AccountID, nil
}

// Sign mints a session token. Used by tests and local tooling; the real
// issuer lives in the identity service.
func (v *Verifier) Sign(accountID string, ttl time.Duration) (string, error) {
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest pulls the session token from the jwt cookie, the
// Authorization header, or (for socket upgrades) the token query param.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("jwt"); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects unauthenticated requests and stashes the accountId
// in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		accountID, err := v.Parse(token)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), accountID)))
	})
}

func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountKey, accountID)
}

// AccountID returns the authenticated account, or "" outside the
// middleware.
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(accountKey).(string)
	return id
}
