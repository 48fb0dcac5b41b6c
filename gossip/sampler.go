// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gossip implements the bounded-fanout peer sampling of spec
// §4.5: each fallback gossip tick selects up to gossip_k peers, sampled
// uniformly without replacement and without the local witness, mirroring
// luxfi/consensus's utils/sampler uniform-without-replacement generator.
// It also provides a Router that dispatches incoming wire messages to the
// initiator.Machine or witness.Machine registered for their cid, by a
// goroutine-free lookup and handler call.
package gossip

import (
	"math/rand"
	"sync"

	"github.com/luxfi/aura/id"
)

// Sampler draws up to k peers from a fixed witness set, uniformly and
// without replacement, excluding one witness (the caller).
type Sampler struct {
	mu   sync.Mutex
	rng  *rand.Rand
	peers []id.WitnessId
}

// NewSampler returns a Sampler over peers using seed for determinism in
// tests; production callers should seed from a real entropy source.
func NewSampler(peers []id.WitnessId, seed int64) *Sampler {
	cp := append([]id.WitnessId(nil), peers...)
	return &Sampler{rng: rand.New(rand.NewSource(seed)), peers: cp}
}

// Sample returns up to k distinct peers other than exclude, in a
// uniformly random order. If fewer than k eligible peers exist, it
// returns all of them (spec §4.5: "If fewer than gossip_k peers remain,
// gossip to all remaining peers").
func (s *Sampler) Sample(k int, exclude id.WitnessId) []id.WitnessId {
	s.mu.Lock()
	defer s.mu.Unlock()

	eligible := make([]id.WitnessId, 0, len(s.peers))
	for _, p := range s.peers {
		if p != exclude {
			eligible = append(eligible, p)
		}
	}
	// Fisher-Yates partial shuffle: draw min(k, len(eligible)) without
	// replacement.
	n := len(eligible)
	if k > n {
		k = n
	}
	for i := 0; i < k; i++ {
		j := i + s.rng.Intn(n-i)
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}
	return eligible[:k]
}
