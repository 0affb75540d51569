package app

import (
	"sync"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
)

// OfferDecision tells the relay what to do with an inbound offer.
type OfferDecision int

const (
	// OfferRelay forwards the offer to the peers.
	OfferRelay OfferDecision = iota
	// OfferRollback rejects the offer; the sender is the polite side of a
	// glare and must roll back to stable.
	OfferRollback
)

type negState int

const (
	negStable negState = iota
	negHaveOffer
)

type negotiation struct {
	state     negState
	offerFrom domain.Role
}

// NegotiationTracker resolves offer glare per room with a fixed polite-peer
// rule: the doctor initiates, the patient is polite. When both sides offer at
// once, the patient's offer is rolled back and the doctor's goes through.
type NegotiationTracker struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]*negotiation
}

func NewNegotiationTracker() *NegotiationTracker {
	return &NegotiationTracker{rooms: make(map[domain.RoomID]*negotiation)}
}

// Offer transitions stable → have-offer, deciding glare along the way. The
// second result reports that the relayed offer displaced an outstanding one
// from the other side, which must then be told to roll back.
func (t *NegotiationTracker) Offer(roomID domain.RoomID, from domain.Role) (OfferDecision, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.rooms[roomID]
	if !ok {
		n = &negotiation{}
		t.rooms[roomID] = n
	}

	switch n.state {
	case negStable:
		n.state = negHaveOffer
		n.offerFrom = from
		return OfferRelay, false
	case negHaveOffer:
		if n.offerFrom == from {
			// Renegotiation from the same side supersedes its own offer.
			return OfferRelay, false
		}
		if from == domain.RolePatient {
			return OfferRollback, false
		}
		// Doctor's offer wins the glare.
		n.offerFrom = from
		return OfferRelay, true
	}
	return OfferRelay, false
}

// Answer returns the room to stable.
func (t *NegotiationTracker) Answer(roomID domain.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.rooms[roomID]; ok {
		n.state = negStable
	}
}

// Reset clears negotiation state, e.g. when a peer leaves mid-handshake.
func (t *NegotiationTracker) Reset(roomID domain.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, roomID)
}
