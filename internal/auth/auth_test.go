package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestStaticStore_Defaults(t *testing.T) {
	s := NewStaticStore(nil)
	ctx := context.Background()

	tests := []struct {
		username, password string
		wantID             int
		wantErr            bool
	}{
		{username: "admin", password: "password", wantID: 1},
		{username: "user", password: "123456", wantID: 2},
		{username: "demo", password: "demo", wantID: 3},
		{username: "admin", password: "wrong", wantErr: true},
		{username: "nobody", password: "demo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.username+"/"+tt.password, func(t *testing.T) {
			p, err := s.Verify(ctx, tt.username, tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID)
			assert.Equal(t, tt.username+"@example.com", p.Email)
		})
	}
}

func TestStaticStore_Bcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	s := NewStaticStore([]User{{ID: 7, Username: "ops", Password: string(hash)}})

	p, err := s.Verify(context.Background(), "ops", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, 7, p.ID)

	_, err = s.Verify(context.Background(), "ops", string(hash))
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Verify(context.Background(), "admin", "password")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "configured users replace the defaults")
}

func TestTokens(t *testing.T) {
	tokens := NewTokens(0, 0)
	p := Principal{ID: 1, Username: "admin"}

	tok := tokens.Issue(p)
	assert.True(t, strings.HasPrefix(tok, "token_"))
	assert.NotEqual(t, tok, tokens.Issue(p))

	got, ok := tokens.Resolve(tok)
	require.True(t, ok)
	assert.Equal(t, p, got)

	tokens.Revoke(tok)
	_, ok = tokens.Resolve(tok)
	assert.False(t, ok)

	_, ok = tokens.Resolve("")
	assert.False(t, ok)
}

func TestTokens_Expire(t *testing.T) {
	tokens := NewTokens(10, 20*time.Millisecond)
	tok := tokens.Issue(Principal{ID: 1})
	assert.Eventually(t, func() bool {
		_, ok := tokens.Resolve(tok)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTokens_Evict(t *testing.T) {
	tokens := NewTokens(1, time.Hour)
	first := tokens.Issue(Principal{ID: 1})
	tokens.Issue(Principal{ID: 2})
	_, ok := tokens.Resolve(first)
	assert.False(t, ok)
}
