// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sim is an in-process reference transport for driving the
// consensus core's state machines end to end without a real network.
// Messaging transport is an explicit out-of-scope external collaborator
// (spec §1); this package plays the same role for Transport that
// journal.MemoryJournal plays for the journal contract: a deliberately
// non-production stand-in, grounded on luxfi/consensus's consensustest
// test doubles, used to exercise the full happy-path and fallback flows
// of spec §8 deterministically in tests.
package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/aura/gossip"
	"github.com/luxfi/aura/id"
	"github.com/luxfi/aura/initiator"
	"github.com/luxfi/aura/wire"
	"github.com/luxfi/aura/witness"
)

// Network routes wire messages between peers, each identified by its
// WitnessId. Every peer owns its own gossip.Router (and, transitively,
// its own evidence store and machines), matching spec §3's ownership
// rule that "each peer owns a local copy of the per-instance state."
// Delivery is synchronous and single-threaded per call, which is
// sufficient to drive the state machines' deterministic transitions; it
// is not a model of real network concurrency or loss.
type Network struct {
	mu      sync.Mutex
	routers map[id.WitnessId]*gossip.Router
	crashed map[id.WitnessId]bool
}

// NewNetwork returns an empty Network.
func NewNetwork() *Network {
	return &Network{
		routers: make(map[id.WitnessId]*gossip.Router),
		crashed: make(map[id.WitnessId]bool),
	}
}

func (n *Network) routerFor(w id.WitnessId) *gossip.Router {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.routers[w]
	if !ok {
		r = gossip.NewRouter()
		n.routers[w] = r
	}
	return r
}

// RegisterInitiator makes m reachable as self's initiator side of cid.
func (n *Network) RegisterInitiator(self id.WitnessId, cid id.ConsensusId, m *initiator.Machine) {
	n.routerFor(self).RegisterInitiator(cid, m)
}

// RegisterWitness makes m reachable as self's witness side of cid.
func (n *Network) RegisterWitness(self id.WitnessId, cid id.ConsensusId, m *witness.Machine) {
	n.routerFor(self).RegisterWitness(cid, m)
}

// Crash marks self as crashed: messages addressed to it are dropped from
// here on, simulating spec §4.6's "Crash and restart" (the crash half;
// nothing in this harness models the restart/reduce-evidence half since
// that belongs to the embedding application, not this core).
func (n *Network) Crash(self id.WitnessId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.crashed[self] = true
}

func (n *Network) isCrashed(w id.WitnessId) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.crashed[w]
}

// deliver invokes fn against every live (non-crashed) peer in to,
// swallowing gossip.ErrUnknownInstance: spec §7 requires messages for an
// unknown or GC'd cid to be dropped silently, not surfaced as an error.
func (n *Network) deliver(to []id.WitnessId, fn func(*gossip.Router) error) error {
	for _, w := range to {
		if n.isCrashed(w) {
			continue
		}
		if err := fn(n.routerFor(w)); err != nil && !errors.Is(err, gossip.ErrUnknownInstance) {
			return err
		}
	}
	return nil
}

// BroadcastExecute implements initiator.Transport.
func (n *Network) BroadcastExecute(ctx context.Context, to []id.WitnessId, msg wire.Execute) error {
	return n.deliver(to, func(r *gossip.Router) error { return r.DispatchExecute(ctx, msg) })
}

// BroadcastCommit implements initiator.Transport.
func (n *Network) BroadcastCommit(ctx context.Context, to []id.WitnessId, msg wire.Commit) error {
	return n.deliver(to, func(r *gossip.Router) error { return r.DispatchCommit(ctx, msg) })
}

// BroadcastConflict implements initiator.Transport.
func (n *Network) BroadcastConflict(ctx context.Context, to []id.WitnessId, msg wire.Conflict) error {
	return n.deliver(to, func(r *gossip.Router) error { return r.DispatchConflict(ctx, msg) })
}

// SendWitnessShare implements witness.Transport.
func (n *Network) SendWitnessShare(ctx context.Context, to id.WitnessId, msg wire.WitnessShareMsg) error {
	return n.deliver([]id.WitnessId{to}, func(r *gossip.Router) error { return r.DispatchWitnessShare(ctx, msg) })
}

// SendStateMismatch implements witness.Transport.
func (n *Network) SendStateMismatch(ctx context.Context, to id.WitnessId, msg wire.StateMismatch) error {
	return n.deliver([]id.WitnessId{to}, func(r *gossip.Router) error { return r.DispatchStateMismatch(ctx, msg) })
}

// BroadcastAggregateShare implements witness.Transport.
func (n *Network) BroadcastAggregateShare(ctx context.Context, to []id.WitnessId, msg wire.AggregateShare) error {
	return n.deliver(to, func(r *gossip.Router) error { return r.DispatchAggregateShare(ctx, msg) })
}

// BroadcastThresholdComplete implements witness.Transport.
func (n *Network) BroadcastThresholdComplete(ctx context.Context, to []id.WitnessId, msg wire.ThresholdComplete) error {
	return n.deliver(to, func(r *gossip.Router) error { r.DispatchThresholdComplete(ctx, msg); return nil })
}
