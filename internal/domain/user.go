// Package domain contains entity without logic, just meta-data
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 64
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type UserID string

// User is the caller identity handed over by the auth collaborator.
type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ParseUser decodes the serialized user object sent at connection time.
// Both "id" and the document-store style "_id" are accepted, as string or number.
func ParseUser(raw string) (*User, error) {
	var wire struct {
		ID    json.RawMessage `json:"id"`
		OID   json.RawMessage `json:"_id"`
		Name  string          `json:"name"`
		Email string          `json:"email"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	idRaw := wire.ID
	if len(idRaw) == 0 {
		idRaw = wire.OID
	}
	id := strings.Trim(strings.TrimSpace(string(idRaw)), `"`)
	if id == "" || id == "null" {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	name := wire.Name
	if len(name) > MaxUsernameLen {
		name = name[:MaxUsernameLen]
	}
	return &User{ID: UserID(id), Name: name, Email: wire.Email}, nil
}
