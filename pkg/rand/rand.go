package rand

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is a mutex guarded pseudo-random source. A fixed seed makes
// token and message id sequences reproducible in tests.
type Rand struct {
	src  *rand.Rand
	lock sync.Mutex
}

func NewRand(seed int64) *Rand {
	return &Rand{
		src: rand.New(rand.NewSource(seed)), //nolint:gosec
	}
}

// NewTimeSeeded returns a source seeded from the wall clock.
func NewTimeSeeded() *Rand {
	return NewRand(time.Now().UnixNano())
}

func (l *Rand) Uint32() uint32 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.src.Uint32()
}

func (l *Rand) Float64() float64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.src.Float64()
}

// Read fills p with pseudo-random bytes; it never fails.
func (l *Rand) Read(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.src.Read(p)
}
