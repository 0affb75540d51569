package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
)

type sessionEntry struct {
	RoomID  domain.RoomID
	Session core.ParticipantSession
	Cancel  context.CancelFunc
}

// SessionRegistry maps connection identifiers to their session and the room
// they currently occupy. Constructed once per process and injected; there is
// deliberately no package-level instance.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[core.SessionID]*sessionEntry)}
}

// BindSignal registers a socket under its client token. Two sockets sharing
// one token (a second browser tab) supersede each other: the newest binding
// wins and the stale reader is canceled.
func (r *SessionRegistry) BindSignal(sid core.SessionID, sess core.ParticipantSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.sessions[sid]; ok {
		if prev.Cancel != nil {
			prev.Cancel()
		}
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("superseding bound signal")
	}
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *SessionRegistry) GetSession(sid core.SessionID) (core.ParticipantSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// ReplaceSession swaps the bound session once the join handshake has
// attached role and identity to the connection.
func (r *SessionRegistry) ReplaceSession(sid core.SessionID, sess core.ParticipantSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.Session = sess
	return true
}

func (r *SessionRegistry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// RoomOf reports the room a session currently occupies, if any.
func (r *SessionRegistry) RoomOf(sid core.SessionID) (domain.RoomID, core.ParticipantSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomID == "" {
		return "", nil, false
	}
	return entry.RoomID, entry.Session, true
}

func (r *SessionRegistry) UpdateRoom(sid core.SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.RoomID = roomID
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Msg("updated room")
	return true
}

func (r *SessionRegistry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.RoomID = ""
	}
}

type RegistrySnap struct {
	SID     core.SessionID
	Session core.ParticipantSession
}

func (r *SessionRegistry) SessionsInRoom(roomID domain.RoomID) []RegistrySnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegistrySnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.RoomID == roomID {
			out = append(out, RegistrySnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

func (r *SessionRegistry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}
