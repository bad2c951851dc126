// Package pick selects uniformly at random, with replacement, from small
// immutable sets of strings such as candidate paths and user agents.
package pick

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrEmpty is returned when a Picker is built from an empty set.
var ErrEmpty = errors.New("pick: empty candidate set")

// Source is the random source shared by the pickers of one run.
// It is safe for concurrent use.
type Source struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource returns a Source seeded with seed, or with the current time when seed is 0.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{rnd: rand.New(rand.NewSource(seed))}
}

// Streams returns n sources derived from seed (seed, seed+1, ...), one per
// consumer, so draws on one stream never shift another's sequence. Seed 0
// derives them from the current time.
func Streams(seed int64, n int) []*Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	out := make([]*Source, n)
	for i := range out {
		out[i] = &Source{rnd: rand.New(rand.NewSource(seed + int64(i)))}
	}
	return out
}

func (s *Source) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// Picker draws from a fixed ordered set.
type Picker struct {
	items []string
	src   *Source
}

// New copies items so later mutation of the caller's slice has no effect.
func New(items []string, src *Source) (*Picker, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	if src == nil {
		src = NewSource(0)
	}
	return &Picker{items: append([]string(nil), items...), src: src}, nil
}

// Pick returns one item chosen uniformly at random.
func (p *Picker) Pick() string {
	if len(p.items) == 1 {
		return p.items[0]
	}
	return p.items[p.src.intn(len(p.items))]
}

// Items returns a copy of the candidate set.
func (p *Picker) Items() []string {
	return append([]string(nil), p.items...)
}

func (p *Picker) Len() int { return len(p.items) }
