package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken_RoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "alice", time.Hour)
	require.NoError(t, err)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	sub, err := parsed.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, time.Minute)
}

func TestNewAccessToken_RequiresSubject(t *testing.T) {
	_, err := NewAccessToken("s3cret", "", time.Hour)
	assert.Error(t, err)
}

func TestUUIDGenerator_Unique(t *testing.T) {
	g := UUIDGenerator{}
	a, b := g.New(), g.New()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
