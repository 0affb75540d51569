package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
	"github.com/sks2025/werbrtc-sub000/internal/metrics"
)

var (
	ErrStreamNotFound   = errors.New("stream not found")
	ErrStreamIncomplete = errors.New("stream incomplete")
	ErrStreamFinished   = errors.New("stream already finished")
)

// StreamState tags the lifecycle of a buffer so an abandoned upload is
// distinguishable from one that completed normally.
type StreamState int

const (
	StateAssembling StreamState = iota
	StateComplete
	StateAbandoned
)

type StreamKey struct {
	Room  domain.RoomID
	Media domain.MediaID
}

// StreamMeta is the static part of a live upload, captured at begin time.
type StreamMeta struct {
	MediaType domain.MediaType
	MimeType  string
	DoctorID  int64
	PatientID *int64
	StartedAt time.Time
}

type chunkRecord struct {
	Index      int
	Payload    string
	Size       int
	ReceivedAt time.Time
}

type streamBuffer struct {
	meta     StreamMeta
	chunks   map[int]chunkRecord
	expected int // 0 = unknown
	state    StreamState
	lastSeen time.Time
}

// StreamAssembler reassembles base64 media chunks arriving over the signal
// channel into a single payload. Buffers are bounded by an expected-count
// check on completion and a TTL sweep for uploads the browser walked away
// from.
type StreamAssembler struct {
	mu      sync.Mutex
	buffers map[StreamKey]*streamBuffer
	ttl     time.Duration
}

func NewStreamAssembler(ttl time.Duration) *StreamAssembler {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StreamAssembler{
		buffers: make(map[StreamKey]*streamBuffer),
		ttl:     ttl,
	}
}

// Begin allocates a buffer with metadata. Beginning an already-live key is
// not an error; the fresher metadata wins.
func (a *StreamAssembler) Begin(key StreamKey, meta StreamMeta) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}
	if buf, ok := a.buffers[key]; ok && buf.state == StateAssembling {
		buf.meta = meta
		buf.lastSeen = time.Now()
		return
	}
	a.buffers[key] = &streamBuffer{
		meta:     meta,
		chunks:   make(map[int]chunkRecord),
		state:    StateAssembling,
		lastSeen: time.Now(),
	}
	metrics.StreamsStarted.Inc()
}

// Append records one chunk. The buffer is created lazily when Begin was
// skipped. A duplicate index overwrites the previous payload (last write
// wins, logged).
func (a *StreamAssembler) Append(key StreamKey, index int, payload string, totalChunks int) error {
	if index < 0 {
		return fmt.Errorf("chunk index %d: %w", index, ErrStreamIncomplete)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[key]
	if !ok {
		buf = &streamBuffer{
			meta:     StreamMeta{StartedAt: time.Now()},
			chunks:   make(map[int]chunkRecord),
			state:    StateAssembling,
			lastSeen: time.Now(),
		}
		a.buffers[key] = buf
		metrics.StreamsStarted.Inc()
	}
	if buf.state != StateAssembling {
		return ErrStreamFinished
	}
	if totalChunks > 0 {
		buf.expected = totalChunks
	}
	if buf.expected > 0 && index >= buf.expected {
		return fmt.Errorf("chunk index %d out of range for %d expected chunks: %w", index, buf.expected, ErrStreamIncomplete)
	}
	if _, dup := buf.chunks[index]; dup {
		log.Warn().Str("module", "app.assembler").Str("room", string(key.Room)).Str("media", string(key.Media)).Int("index", index).Msg("duplicate chunk overwritten")
	}
	buf.chunks[index] = chunkRecord{
		Index:      index,
		Payload:    payload,
		Size:       len(payload),
		ReceivedAt: time.Now(),
	}
	buf.lastSeen = time.Now()
	metrics.ChunksReceived.Inc()
	return nil
}

// Complete assembles the buffered chunks in index order, removes the buffer
// and returns the payload with its metadata. When the expected chunk count
// is known, a gap fails the stream instead of silently emitting a partial
// payload.
func (a *StreamAssembler) Complete(key StreamKey) (string, StreamMeta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[key]
	if !ok || buf.state != StateAssembling {
		return "", StreamMeta{}, ErrStreamNotFound
	}
	if buf.expected > 0 {
		if len(buf.chunks) != buf.expected {
			return "", buf.meta, fmt.Errorf("received %d of %d chunks: %w", len(buf.chunks), buf.expected, ErrStreamIncomplete)
		}
		// Every index must sit inside [0, expected); otherwise a stray high
		// index makes the count match while a middle chunk is missing.
		for idx := range buf.chunks {
			if idx >= buf.expected {
				return "", buf.meta, fmt.Errorf("chunk index %d outside %d expected chunks: %w", idx, buf.expected, ErrStreamIncomplete)
			}
		}
	}

	data := assemble(buf.chunks)
	buf.state = StateComplete
	delete(a.buffers, key)
	metrics.StreamsCompleted.Inc()
	log.Info().Str("module", "app.assembler").Str("room", string(key.Room)).Str("media", string(key.Media)).Int("chunks", len(buf.chunks)).Int("bytes", len(data)).Msg("stream assembled")
	return data, buf.meta, nil
}

// Snapshot returns the data assembled so far without consuming the buffer.
func (a *StreamAssembler) Snapshot(key StreamKey) (string, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[key]
	if !ok || buf.state != StateAssembling {
		return "", 0, false
	}
	return assemble(buf.chunks), len(buf.chunks), true
}

// Drop discards a buffer without assembling, e.g. when the owning room dies.
func (a *StreamAssembler) Drop(key StreamKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if buf, ok := a.buffers[key]; ok {
		buf.state = StateAbandoned
		delete(a.buffers, key)
		metrics.StreamsAbandoned.Inc()
	}
}

// Sweep evicts buffers idle for longer than the TTL and reports their keys.
func (a *StreamAssembler) Sweep(now time.Time) []StreamKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	var evicted []StreamKey
	for key, buf := range a.buffers {
		if now.Sub(buf.lastSeen) > a.ttl {
			buf.state = StateAbandoned
			delete(a.buffers, key)
			evicted = append(evicted, key)
			metrics.StreamsAbandoned.Inc()
			log.Warn().Str("module", "app.assembler").Str("room", string(key.Room)).Str("media", string(key.Media)).Int("chunks", len(buf.chunks)).Msg("abandoned stream evicted")
		}
	}
	return evicted
}

// Run sweeps periodically until ctx is canceled.
func (a *StreamAssembler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.Sweep(now)
		}
	}
}

func (a *StreamAssembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

func assemble(chunks map[int]chunkRecord) string {
	ordered := make([]chunkRecord, 0, len(chunks))
	for _, c := range chunks {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var sb strings.Builder
	for _, c := range ordered {
		sb.WriteString(c.Payload)
	}
	return sb.String()
}
