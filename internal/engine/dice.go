package engine

import (
	"math/rand"
	"sync"
	"time"
)

// Roller is the randomness a match consumes: avoidance rolls, counter-attack
// rolls, terrain and bot choices.
type Roller interface {
	Intn(n int) int
	Float64() float64
}

// lockedRand makes a *rand.Rand safe to share across timer goroutines.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewRNG returns a time-seeded Roller.
func NewRNG() Roller { return NewSeeded(time.Now().UnixNano()) }

// NewSeeded returns a deterministic Roller.
func NewSeeded(seed int64) Roller {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// Script replays fixed values, for tests that pin combat outcomes. Once a
// queue is exhausted it returns 0, so a drained script always hits.
type Script struct {
	mu     sync.Mutex
	Floats []float64
	Ints   []int
}

func (s *Script) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 {
		return 0
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *Script) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}
