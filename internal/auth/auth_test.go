package auth

import (
	"testing"

	"github.com/dkeye/Orbit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	v := NewVerifier("s3cret")
	token := v.Sign("u1")

	id, err := v.Identify("Bearer "+token, `{"_id":"u1","name":"Ana"}`, `["g1","g2","g1"]`)
	require.NoError(t, err)
	assert.False(t, id.Anonymous())
	assert.Equal(t, domain.UserID("u1"), id.User.ID)
	assert.Equal(t, []string{"g1", "g2"}, id.Groups)

	_, err = v.Identify(token, `{"_id":"u2"}`, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = v.Identify("", `{"_id":"u1"}`, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = v.Identify(token, `not json`, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = v.Identify("zz-not-hex", `{"_id":"u1"}`, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestEmptySecretAcceptsAnyToken(t *testing.T) {
	v := NewVerifier("")
	id, err := v.Identify("12345", `{"id":42}`, "a, b")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("42"), id.User.ID)
	assert.Equal(t, []string{"a", "b"}, id.Groups)
	assert.False(t, v.Verify("", "42"))
}

func TestParseGroups(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"json strings", `["a","b"]`, []string{"a", "b"}},
		{"json numbers", `[1, 2, 2]`, []string{"1", "2"}},
		{"comma list", " a,,b , a", []string{"a", "b"}},
		{"broken json falls back", `[a`, []string{"[a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseGroups(tt.raw)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "abc", BearerToken("abc"))
}
