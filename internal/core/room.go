package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
)

var ErrNoSuchSession = errors.New("no such session in room")

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	mu    sync.RWMutex
	bySID map[SessionID]ParticipantSession
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:  room,
		bySID: make(map[SessionID]ParticipantSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddParticipant(sid SessionID, ps ParticipantSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok && len(r.bySID) >= domain.MaxRoomParticipants {
		return domain.ErrRoomFull
	}
	r.bySID[sid] = ps
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Str("room", string(r.room.ID)).Str("role", string(ps.Meta().Role)).Msg("participant added")
	return nil
}

func (r *roomImpl) RemoveParticipant(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Str("room", string(r.room.ID)).Msg("participant removed")
}

func (r *roomImpl) HasRole(role domain.Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ps := range r.bySID {
		if ps.Meta().Role == role {
			return true
		}
	}
	return false
}

func (r *roomImpl) SessionsOfRole(role domain.Role) []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []SessionID
	for sid, ps := range r.bySID {
		if ps.Meta().Role == role {
			out = append(out, sid)
		}
	}
	return out
}

// Broadcast forwards data verbatim to every participant except the sender.
func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, p := range r.bySID {
		if sid == from {
			continue
		}
		if err := p.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, p)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) SendTo(sid SessionID, data Frame) error {
	r.mu.RLock()
	p, ok := r.bySID[sid]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSuchSession
	}
	return p.Signal().TrySend(data)
}

func (r *roomImpl) ParticipantsSnapshot() []ParticipantDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ParticipantDTO, 0, len(r.bySID))
	for sid, ps := range r.bySID {
		m := ps.Meta()
		out = append(out, ParticipantDTO{SessionID: string(sid), Role: m.Role, Info: m.Info})
	}
	return out
}
