package snapshot

import "go.uber.org/zap"

// holder retains the snapshots recorded for one tick. The primary and the
// optional alternate copy share one backing allocation whose lifetime is the
// holder's; the prev link is only used for unlink and never owns.
type holder struct {
	tick    int
	tagTime int64
	snap    []byte
	alt     []byte

	prev, next *holder
}

// Storage is a tick-ordered FIFO of snapshot holders. Callers add in
// monotonically increasing tick order and prune with PurgeUntil once an
// acknowledgement makes older ticks unreachable. One storage per flow;
// not safe for concurrent use.
type Storage struct {
	first, last *holder
	count       int

	log *zap.Logger
}

// NewStorage returns an empty storage logging through log. A nil log
// disables logging.
func NewStorage(log *zap.Logger) *Storage {
	if log == nil {
		log = zap.NewNop()
	}
	return &Storage{log: log}
}

// Count reports the number of retained holders.
func (s *Storage) Count() int {
	return s.count
}

// FirstTick returns the oldest retained tick.
func (s *Storage) FirstTick() (int, bool) {
	if s.first == nil {
		return 0, false
	}
	return s.first.tick, true
}

// LastTick returns the newest retained tick.
func (s *Storage) LastTick() (int, bool) {
	if s.last == nil {
		return 0, false
	}
	return s.last.tick, true
}

// Add retains a copy of data under tick. With createAlt a second,
// independently mutable copy is kept on the same holder, sharing its tick,
// timestamp and lifetime. The holder owns its copies; data may be reused by
// the caller afterwards.
func (s *Storage) Add(tick int, tagTime int64, data []byte, createAlt bool) {
	n := len(data)
	total := n
	if createAlt {
		total += n
	}
	// One backing allocation holds both copies.
	buf := make([]byte, total)
	copy(buf[:n], data)

	h := &holder{
		tick:    tick,
		tagTime: tagTime,
		snap:    buf[:n:n],
	}
	if createAlt {
		copy(buf[n:], data)
		h.alt = buf[n:total:total]
	}

	if s.last != nil && tick <= s.last.tick {
		s.log.Warn("snapshot storage add out of tick order",
			zap.Int("tick", tick),
			zap.Int("lastTick", s.last.tick),
		)
	}

	h.prev = s.last
	if s.last != nil {
		s.last.next = h
	} else {
		s.first = h
	}
	s.last = h
	s.count++
}

// Get returns the timestamp and snapshot copies retained for tick. The
// returned slices stay owned by the storage and die with the holder.
func (s *Storage) Get(tick int) (int64, []byte, []byte, error) {
	for h := s.first; h != nil; h = h.next {
		if h.tick == tick {
			return h.tagTime, h.snap, h.alt, nil
		}
	}
	return 0, nil, nil, ErrTickNotFound
}

// PurgeUntil drops every holder with tick < untilTick and returns the number
// removed.
func (s *Storage) PurgeUntil(untilTick int) int {
	removed := 0
	h := s.first
	for h != nil && h.tick < untilTick {
		next := h.next
		h.next = nil
		h.prev = nil
		h = next
		removed++
	}
	s.first = h
	if h != nil {
		h.prev = nil
	} else {
		s.last = nil
	}
	s.count -= removed
	if removed > 0 {
		s.log.Debug("purged snapshots",
			zap.Int("removed", removed),
			zap.Int("untilTick", untilTick),
			zap.Int("retained", s.count),
		)
	}
	return removed
}

// PurgeAll drops every holder.
func (s *Storage) PurgeAll() {
	s.first = nil
	s.last = nil
	s.count = 0
}
