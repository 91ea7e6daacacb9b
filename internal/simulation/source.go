package simulation

import (
	"math/rand"
	"sync"
	"time"
)

// Source yields uniform values in [0, 1).
type Source interface {
	Float64() float64
}

type lockedSource struct {
	mutex sync.Mutex
	rand  *rand.Rand
}

// NewSource returns a goroutine-safe Source. A zero seed is replaced by the
// current time.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedSource{rand: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Float64() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.rand.Float64()
}
