// Package balancex implements instance selection strategies
// over named candidate pools.
package balancex

import (
	"math/rand/v2"
	"sync"

	"github.com/samber/lo"
)

type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
	StrategyLeastConn  Strategy = "least_connections"
	StrategyWeighted   Strategy = "weighted"
)

type Candidate struct {
	ID      string
	Weight  int
	Healthy bool
}

type Balancer struct {
	mu       sync.Mutex
	strategy Strategy
	rr       map[string]uint64
	conns    map[string]int
}

func New(strategy Strategy) (*Balancer, error) {
	switch strategy {
	case StrategyRoundRobin, StrategyRandom, StrategyLeastConn, StrategyWeighted:
	default:
		return nil, UnknownStrategyError{Strategy: strategy}
	}

	return &Balancer{
		strategy: strategy,
		rr:       map[string]uint64{},
		conns:    map[string]int{},
	}, nil
}

func (b *Balancer) Strategy() Strategy {
	return b.strategy
}

// Select picks a candidate from the given pool.
// Unhealthy candidates are skipped unless the whole pool is down,
// in which case selection falls back to all candidates.
// The second return value is false only for an empty pool.
func (b *Balancer) Select(pool string, cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}

	healthy := lo.Filter(cands, func(c Candidate, _ int) bool {
		return c.Healthy
	})
	if len(healthy) == 0 {
		healthy = cands
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.strategy {
	case StrategyRandom:
		return healthy[rand.IntN(len(healthy))], true
	case StrategyLeastConn:
		return b.pickLeastConn(healthy), true
	case StrategyWeighted:
		return b.pickWeighted(healthy), true
	default:
		return b.pickRoundRobin(pool, healthy), true
	}
}

// IncConn marks one more in-flight request for the instance.
func (b *Balancer) IncConn(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.conns[id]++
}

// DecConn marks one in-flight request finished.
// The count never goes below zero.
func (b *Balancer) DecConn(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conns[id] > 0 {
		b.conns[id]--
	}
}

func (b *Balancer) ConnCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.conns[id]
}

// Forget drops in-flight accounting for the instance.
func (b *Balancer) Forget(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.conns, id)
}

// pickRoundRobin advances the pool cursor on every call.
// The cursor is never reset, so pool membership changes
// do not restart the rotation.
func (b *Balancer) pickRoundRobin(pool string, cands []Candidate) Candidate {
	idx := b.rr[pool] % uint64(len(cands))
	b.rr[pool]++
	return cands[idx]
}

func (b *Balancer) pickLeastConn(cands []Candidate) Candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if b.conns[c.ID] < b.conns[best.ID] {
			best = c
		}
	}
	return best
}

func (b *Balancer) pickWeighted(cands []Candidate) Candidate {
	total := 0
	for _, c := range cands {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total == 0 {
		return cands[rand.IntN(len(cands))]
	}

	draw := rand.IntN(total) + 1
	acc := 0
	for _, c := range cands {
		if c.Weight > 0 {
			acc += c.Weight
		}
		if acc >= draw {
			return c
		}
	}
	return cands[len(cands)-1]
}
