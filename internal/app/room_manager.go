package app

import (
	"errors"
	"sync"

	"github.com/sks2025/werbrtc-sub000/internal/core"
	"github.com/sks2025/werbrtc-sub000/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomManager owns the runtime state of rooms. Rooms are registered
// explicitly (by the HTTP create path, or re-hydrated from a persisted row
// on socket join); a bare socket join can never fabricate one.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]core.RoomService)}
}

// Register creates runtime state for a room, returning the existing service
// when it is already live.
func (m *RoomManager) Register(room *domain.Room) core.RoomService {
	m.mu.RLock()
	svc, ok := m.rooms[room.ID]
	m.mu.RUnlock()
	if ok {
		return svc
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if svc, ok = m.rooms[room.ID]; ok {
		return svc
	}
	svc = core.NewRoomService(room)
	m.rooms[room.ID] = svc
	return svc
}

func (m *RoomManager) Get(id domain.RoomID) (core.RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.rooms[id]
	return svc, ok
}

func (m *RoomManager) Remove(id domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, core.RoomInfo{ID: id, Name: r.Room().Name, ParticipantCount: r.ParticipantCount()})
	}
	return out
}
