package roulette

import (
	"fmt"
	"math/rand"
)

// Source supplies the one random draw per odd week (triple selection).
// *rand.Rand satisfies it; so does anything with a compatible Intn.
type Source interface {
	Intn(n int) int
}

// lockedSource draws from the process-wide math/rand source, which is safe
// for concurrent use.
type lockedSource struct{}

func (lockedSource) Intn(n int) int { return rand.Intn(n) }

type genConfig struct {
	src Source
}

type Option func(*genConfig)

// WithRand injects the randomness source used for triple selection.
func WithRand(src Source) Option {
	return func(c *genConfig) {
		if src != nil {
			c.src = src
		}
	}
}

// WithSeed is shorthand for WithRand over a seeded source, for reproducible
// odd-roster schedules. The returned source is not safe for concurrent use.
func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

// Generate builds the full schedule for roster: one week per participant,
// each week an exact partition of the roster into pairs plus, for odd
// rosters, one triple. Rosters smaller than two fail with
// ErrRosterTooSmall and produce nothing.
func Generate(roster Roster, opts ...Option) (*Schedule, error) {
	n := roster.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrRosterTooSmall, n)
	}

	cfg := genConfig{src: lockedSource{}}
	for _, o := range opts {
		o(&cfg)
	}

	// Snapshot the roster so later Add calls cannot alias generated weeks.
	people := make([]Participant, n)
	copy(people, roster)

	weeks := make([][]Connection, 0, n)
	for i := 0; i < n; i++ {
		if n%2 == 0 {
			weeks = append(weeks, evenWeek(people, i))
		} else {
			weeks = append(weeks, oddWeek(people, i, cfg.src))
		}
	}
	return &Schedule{weeks: weeks}, nil
}

// evenWeek pairs symmetric offsets around rotation i. The k=0 self-pair is
// redirected to the seat directly across the circle.
func evenWeek(people []Participant, i int) []Connection {
	n := len(people)
	conns := make([]Connection, 0, n/2)
	for k := 0; k < n/2; k++ {
		p1 := mod(i+k, n)
		p2 := mod(i-k, n)
		if p1 == p2 {
			p2 = mod(i+n/2, n)
		}
		conns = append(conns, Pair(people[p1], people[p2]))
	}
	return conns
}

// oddWeek rotates over the reduced ring of n-1 seats. The last roster slot
// is the fixed anchor; the ring seat opposite the rotation is left over and
// joins one uniformly chosen pair as its third member. Exactly one src draw
// happens per week.
func oddWeek(people []Participant, i int, src Source) []Connection {
	n := len(people)
	m := n - 1
	conns := make([]Connection, 0, m/2)
	conns = append(conns, Pair(people[n-1], people[mod(i, m)]))
	for k := 1; k < m/2; k++ {
		conns = append(conns, Pair(people[mod(i+k, m)], people[mod(i-k, m)]))
	}

	missing := people[mod(m/2+i, m)]
	pick := src.Intn(len(conns))
	chosen := conns[pick]
	conns = append(conns[:pick], conns[pick+1:]...)
	return append(conns, Triple(chosen.First, chosen.Second, missing))
}

// mod is the Euclidean remainder, safe for negative a.
func mod(a, n int) int { return ((a % n) + n) % n }
