package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const (
	headerPersonID = "X-Person-Id"
	headerGroupID  = "X-Group-Id"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the caller as asserted by the identity provider. Both IDs
// are opaque.
type Identity struct {
	PersonID string
	GroupID  string
}

// Claims is the token body issued by the identity provider.
type Claims struct {
	PersonID string `json:"person_id"`
	GroupID  string `json:"group_id"`
	jwt.RegisteredClaims
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Authenticate resolves the caller. With a secret configured it requires a
// valid HS256 bearer token (or access_token query parameter, for browser
// websockets); otherwise it reads the identity headers.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.identify(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (s *Server) identify(r *http.Request) (Identity, error) {
	if len(s.jwtSecret) == 0 {
		id := Identity{PersonID: r.Header.Get(headerPersonID), GroupID: r.Header.Get(headerGroupID)}
		if id.PersonID == "" || id.GroupID == "" {
			return Identity{}, fmt.Errorf("%w: missing %s or %s", ErrUnauthorized, headerPersonID, headerGroupID)
		}
		return id, nil
	}

	raw := r.URL.Query().Get("access_token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimPrefix(h, "Bearer ")
	}
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.PersonID == "" || claims.GroupID == "" {
		return Identity{}, fmt.Errorf("%w: token lacks person_id or group_id", ErrUnauthorized)
	}
	return Identity{PersonID: claims.PersonID, GroupID: claims.GroupID}, nil
}

// SignToken issues a token the way the identity provider does. Used by
// the simulator and tests.
func SignToken(secret string, id Identity) (string, error) {
	if secret == "" {
		return "", errors.New("empty signing secret")
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{PersonID: id.PersonID, GroupID: id.GroupID})
	return t.SignedString([]byte(secret))
}
