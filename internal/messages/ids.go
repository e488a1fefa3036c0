package messages

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idSource hands out strictly increasing ULIDs together with the creation
// time they encode, so id order and created_at order always agree.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	last    time.Time
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *idSource) next() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String(), now
}
