// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/aura/id"
	"github.com/luxfi/aura/initiator"
	"github.com/luxfi/aura/wire"
	"github.com/luxfi/aura/witness"
)

// ErrUnknownInstance is returned when a message arrives for a cid the
// router has no registered machine for.
var ErrUnknownInstance = errors.New("gossip: unknown consensus instance")

// Router dispatches decoded wire messages to the registered
// initiator.Machine or witness.Machine for their cid, in the
// per-message-type goroutine-free handler style of
// luxfi/consensus's internal/ringtail/service.go NetworkInterface loop
// (this core leaves
// the actual network I/O to the embedding application; Router only does
// the cid -> machine lookup and handler call).
type Router struct {
	mu         sync.RWMutex
	initiators map[id.ConsensusId]*initiator.Machine
	witnesses  map[id.ConsensusId]*witness.Machine
	logger     log.Logger
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{
		initiators: make(map[id.ConsensusId]*initiator.Machine),
		witnesses:  make(map[id.ConsensusId]*witness.Machine),
		logger:     log.NewLogger("gossip"),
	}
}

// RegisterInitiator makes m reachable for incoming messages on its cid.
func (r *Router) RegisterInitiator(cid id.ConsensusId, m *initiator.Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initiators[cid] = m
}

// RegisterWitness makes m reachable for incoming messages on its cid.
func (r *Router) RegisterWitness(cid id.ConsensusId, m *witness.Machine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.witnesses[cid] = m
}

// Deregister drops both registrations for cid, called once an instance
// reaches Done/Decided and no more routing is needed.
func (r *Router) Deregister(cid id.ConsensusId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.initiators, cid)
	delete(r.witnesses, cid)
}

func (r *Router) initiatorFor(cid id.ConsensusId) (*initiator.Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.initiators[cid]
	return m, ok
}

func (r *Router) witnessFor(cid id.ConsensusId) (*witness.Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.witnesses[cid]
	return m, ok
}

// DispatchExecute routes an Execute to the registered witness machine.
func (r *Router) DispatchExecute(ctx context.Context, msg wire.Execute) error {
	m, ok := r.witnessFor(msg.Cid)
	if !ok {
		return ErrUnknownInstance
	}
	return m.OnExecute(ctx, msg)
}

// DispatchWitnessShare routes a WitnessShare to the registered initiator
// machine.
func (r *Router) DispatchWitnessShare(ctx context.Context, msg wire.WitnessShareMsg) error {
	m, ok := r.initiatorFor(msg.Cid)
	if !ok {
		return ErrUnknownInstance
	}
	return m.OnWitnessShare(ctx, msg)
}

// DispatchStateMismatch routes a StateMismatch to the registered
// initiator machine.
func (r *Router) DispatchStateMismatch(ctx context.Context, msg wire.StateMismatch) error {
	m, ok := r.initiatorFor(msg.Cid)
	if !ok {
		return ErrUnknownInstance
	}
	return m.OnStateMismatch(ctx, msg.Delta)
}

// DispatchCommit routes a Commit to the registered witness machine.
func (r *Router) DispatchCommit(ctx context.Context, msg wire.Commit) error {
	m, ok := r.witnessFor(msg.Cid)
	if !ok {
		return ErrUnknownInstance
	}
	m.OnCommit(msg.Delta)
	return nil
}

// DispatchConflict routes a Conflict to the registered witness machine.
func (r *Router) DispatchConflict(ctx context.Context, msg wire.Conflict) error {
	m, ok := r.witnessFor(msg.Cid)
	if !ok {
		return ErrUnknownInstance
	}
	m.OnConflict(ctx, msg)
	return nil
}

// DispatchAggregateShare routes a gossip tick's AggregateShare to the
// registered witness machine.
func (r *Router) DispatchAggregateShare(ctx context.Context, msg wire.AggregateShare) error {
	m, ok := r.witnessFor(msg.Cid)
	if !ok {
		return ErrUnknownInstance
	}
	return m.OnAggregateShare(ctx, msg)
}

// DispatchThresholdComplete routes a fallback ThresholdComplete to both
// registered machines: the initiator, if it had not yet decided, and the
// witness, treating it identically to a Commit (spec §4.4 row 2 note:
// "ThresholdComplete and Commit carry the same evidentiary weight").
func (r *Router) DispatchThresholdComplete(ctx context.Context, msg wire.ThresholdComplete) {
	if m, ok := r.initiatorFor(msg.Cid); ok {
		m.OnCommitObserved(msg.Delta)
	}
	if m, ok := r.witnessFor(msg.Cid); ok {
		m.OnCommit(msg.Delta)
	}
}
