// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package journal

import (
	"context"
	"sync"

	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
)

// MemoryJournal is an in-process reference Journal used by tests and by
// single-process simulations of the protocol. It is not a production
// journal: it has no persistence, no reduction, and no real snapshot
// horizon.
type MemoryJournal struct {
	mu         sync.Mutex
	prestates  map[id.ConsensusId][]byte
	facts      map[id.ConsensusId]evidence.CommitFact
	subscribers map[id.ConsensusId][]chan evidence.Delta
}

// NewMemoryJournal returns an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		prestates:   make(map[id.ConsensusId][]byte),
		facts:       make(map[id.ConsensusId]evidence.CommitFact),
		subscribers: make(map[id.ConsensusId][]chan evidence.Delta),
	}
}

// SetPrestate installs the reduced pre-state bytes for cid, as if every
// peer's reducer had produced the same bytes deterministically.
func (m *MemoryJournal) SetPrestate(cid id.ConsensusId, prestate []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prestates[cid] = prestate
}

func (m *MemoryJournal) ReadPrestate(_ context.Context, cid id.ConsensusId) ([]byte, id.Hash32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prestate := m.prestates[cid]
	return prestate, id.HashPrestate([][]byte{prestate}, nil), nil
}

func (m *MemoryJournal) InsertCommitFact(_ context.Context, cid id.ConsensusId, fact evidence.CommitFact) (InsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.facts[cid]; ok {
		return InsertOutcome{Superseded: true}, nil
	}
	m.facts[cid] = fact
	return InsertOutcome{Superseded: false}, nil
}

// Publish delivers delta to every live subscriber of cid, simulating the
// journal's change-feed fan-out.
func (m *MemoryJournal) Publish(cid id.ConsensusId, delta evidence.Delta) {
	m.mu.Lock()
	subs := append([]chan evidence.Delta(nil), m.subscribers[cid]...)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- delta:
		default:
		}
	}
}

func (m *MemoryJournal) SubscribeInstance(ctx context.Context, cid id.ConsensusId) (<-chan evidence.Delta, error) {
	ch := make(chan evidence.Delta, 16)
	m.mu.Lock()
	m.subscribers[cid] = append(m.subscribers[cid], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subscribers[cid]
		for i, c := range subs {
			if c == ch {
				m.subscribers[cid] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}
