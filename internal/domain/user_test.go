package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUser(t *testing.T) {
	t.Run("string id", func(t *testing.T) {
		u, err := ParseUser(`{"id":"u-1","name":"Ana"}`)
		require.NoError(t, err)
		assert.Equal(t, UserID("u-1"), u.ID)
		assert.Equal(t, "Ana", u.Name)
	})
	t.Run("numeric id", func(t *testing.T) {
		u, err := ParseUser(`{"id":8,"name":"Barraza","email":"b@mail.com"}`)
		require.NoError(t, err)
		assert.Equal(t, UserID("8"), u.ID)
		assert.Equal(t, "b@mail.com", u.Email)
	})
	t.Run("document id", func(t *testing.T) {
		u, err := ParseUser(`{"_id":"65f0c0ffee"}`)
		require.NoError(t, err)
		assert.Equal(t, UserID("65f0c0ffee"), u.ID)
	})
	t.Run("missing id", func(t *testing.T) {
		_, err := ParseUser(`{"name":"nobody"}`)
		assert.ErrorIs(t, err, ErrUserIDEmpty)
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := ParseUser(`not json`)
		assert.Error(t, err)
	})
}

func TestRtpCapabilitiesMatch(t *testing.T) {
	caps := RtpCapabilities{Codecs: RouterCodecs()}

	c, ok := caps.Match(MediaKindVideo, "video/vp8", 90000, 0)
	require.True(t, ok)
	assert.Equal(t, uint8(101), c.PreferredPayloadType)

	_, ok = caps.Match(MediaKindVideo, "video/H264", 90000, 0)
	assert.False(t, ok)

	_, ok = caps.Match(MediaKindAudio, "audio/opus", 48000, 1)
	assert.False(t, ok)
}
