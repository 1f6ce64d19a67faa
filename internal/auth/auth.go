// Package auth verifies user credentials and tracks issued bearer tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is an authenticated user.
type Principal struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// IdentityStore verifies a username and password.
type IdentityStore interface {
	Verify(ctx context.Context, username, password string) (Principal, error)
}

// User is a statically configured account. Password is either plain text or
// a bcrypt hash ("$2a$...", "$2b$...").
type User struct {
	ID       int    `koanf:"id" yaml:"id"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
	Email    string `koanf:"email" yaml:"email"`
}

// DefaultUsers are the demo accounts used when none are configured.
var DefaultUsers = []User{
	{ID: 1, Username: "admin", Password: "password", Email: "admin@example.com"},
	{ID: 2, Username: "user", Password: "123456", Email: "user@example.com"},
	{ID: 3, Username: "demo", Password: "demo", Email: "demo@example.com"},
}

// StaticStore is an IdentityStore over a fixed user list.
type StaticStore struct {
	users map[string]User
}

// NewStaticStore creates a StaticStore. An empty list uses DefaultUsers.
func NewStaticStore(users []User) *StaticStore {
	if len(users) == 0 {
		users = DefaultUsers
	}
	s := &StaticStore{users: make(map[string]User, len(users))}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s
}

// Verify implements IdentityStore.
func (s *StaticStore) Verify(_ context.Context, username, password string) (Principal, error) {
	u, ok := s.users[username]
	if !ok || !passwordMatches(u.Password, password) {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{ID: u.ID, Username: u.Username, Email: u.Email}, nil
}

func passwordMatches(stored, given string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// Token defaults.
const (
	DefaultTokenTTL  = 24 * time.Hour
	DefaultMaxTokens = 10_000
)

// Tokens issues and resolves opaque bearer tokens. Tokens expire after the
// TTL and the oldest are evicted beyond the size limit.
type Tokens struct {
	cache *expirable.LRU[string, Principal]
}

// NewTokens creates a token table.
func NewTokens(size int, ttl time.Duration) *Tokens {
	if size <= 0 {
		size = DefaultMaxTokens
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{cache: expirable.NewLRU[string, Principal](size, nil, ttl)}
}

// Issue returns a new token for p.
func (t *Tokens) Issue(p Principal) string {
	token := "token_" + uuid.NewString()
	t.cache.Add(token, p)
	return token
}

// Resolve returns the principal a token was issued to.
func (t *Tokens) Resolve(token string) (Principal, bool) {
	if token == "" {
		return Principal{}, false
	}
	return t.cache.Get(token)
}

// Revoke forgets a token.
func (t *Tokens) Revoke(token string) {
	t.cache.Remove(token)
}
