// Package auth verifies the bearer token a signaling connection presents and
// extracts the caller identity from the connection-time parameters.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/dkeye/Orbit/internal/domain"
)

type Identity struct {
	User   *domain.User
	Groups []string
}

// Anonymous reports whether no user could be established.
func (i Identity) Anonymous() bool { return i.User == nil }

// Verifier checks tokens of the form hex(HMAC-SHA256(secret, userID)).
// With an empty secret any non-empty token is accepted.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Sign(id domain.UserID) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Verify(token string, id domain.UserID) bool {
	if token == "" {
		return false
	}
	if len(v.secret) == 0 {
		return true
	}
	want, err := hex.DecodeString(token)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(id))
	return hmac.Equal(want, mac.Sum(nil))
}

// BearerToken strips an optional "Bearer " scheme.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// Identify validates token against the serialized user and parses the chat
// groups. Any failure yields ErrUnauthenticated; the groups of a failed
// identification are dropped since they cannot be trusted.
func (v *Verifier) Identify(token, rawUser, rawGroups string) (Identity, error) {
	token = BearerToken(token)
	if token == "" || rawUser == "" {
		return Identity{}, fmt.Errorf("%w: missing token or user", domain.ErrUnauthenticated)
	}
	user, err := domain.ParseUser(rawUser)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if !v.Verify(token, user.ID) {
		return Identity{}, fmt.Errorf("%w: bad token for user %s", domain.ErrUnauthenticated, user.ID)
	}
	return Identity{User: user, Groups: ParseGroups(rawGroups)}, nil
}

// ParseGroups accepts a JSON array of ids (strings or numbers) or a comma
// separated list. Blank entries and duplicates are dropped.
func ParseGroups(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var parts []string
	var list []json.RawMessage
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &list) == nil {
		for _, item := range list {
			parts = append(parts, strings.Trim(string(item), `"`))
		}
	} else {
		parts = strings.Split(raw, ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == "null" || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
