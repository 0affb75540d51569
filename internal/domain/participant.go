// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const (
	MaxNameLen  = 100
	MaxEmailLen = 255
)

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrNameTooLong = errors.New("name too long")
	ErrRoomFull    = errors.New("room full")
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDoctor, RolePatient:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

// UserInfo is the opaque identity blob a browser supplies on join.
// It is broadcast to peers as-is and never trusted for authorization.
type UserInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Participant represents one socket's membership in a room.
type Participant struct {
	Role     Role
	Info     UserInfo
	JoinedAt time.Time
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(role Role, info UserInfo) (*Participant, error) {
	if role != RoleDoctor && role != RolePatient {
		return nil, ErrUnknownRole
	}
	if len(info.Name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	return &Participant{Role: role, Info: info, JoinedAt: time.Now()}, nil
}
