// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package initiator implements the initiator state machine of spec §4.3:
// Idle -> Executing -> Deciding -> Done, plus the sideband Faulted state
// any transition can enter on an invariant violation. Grounded on the
// mutex-guarded, context-aware transition style of luxfi/consensus's
// protocol/quasar/core.go (lock around state mutation, sentinel errors
// checked with errors.Is at decision points).
package initiator

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/aura/aggregate"
	"github.com/luxfi/aura/config"
	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
	"github.com/luxfi/aura/ringtail"
	"github.com/luxfi/aura/timersvc"
	"github.com/luxfi/aura/wire"
)

// State is one of the five states of spec §4.3.
type State int

const (
	Idle State = iota
	Executing
	Deciding
	Done
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Executing:
		return "Executing"
	case Deciding:
		return "Deciding"
	case Done:
		return "Done"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// ErrAlreadyStarted is returned by Start if the machine left Idle.
var ErrAlreadyStarted = errors.New("initiator: instance already started")

// Transport is the narrow messaging collaborator the initiator consumes
// (spec §1: transport is out of scope, referenced only by contract).
type Transport interface {
	BroadcastExecute(ctx context.Context, to []id.WitnessId, msg wire.Execute) error
	BroadcastCommit(ctx context.Context, to []id.WitnessId, msg wire.Commit) error
	BroadcastConflict(ctx context.Context, to []id.WitnessId, msg wire.Conflict) error
}

// Machine drives one consensus instance's initiator side.
type Machine struct {
	mu sync.Mutex

	cid       id.ConsensusId
	witnesses []id.WitnessId
	cfg       config.Config

	store      *evidence.Store
	aggregator *aggregate.Aggregator
	scheme     ringtail.Scheme
	group      ringtail.GroupPublicKey
	timers     timersvc.Timers
	transport  Transport

	state State
	logger log.Logger
}

// New constructs an initiator Machine for one instance.
func New(cid id.ConsensusId, witnesses []id.WitnessId, cfg config.Config, store *evidence.Store, scheme ringtail.Scheme, group ringtail.GroupPublicKey, timers timersvc.Timers, transport Transport) (*Machine, error) {
	agg, err := aggregate.New(scheme, group, cfg.T, cfg.N)
	if err != nil {
		return nil, err
	}
	return &Machine{
		cid:        cid,
		witnesses:  witnesses,
		cfg:        cfg,
		store:      store,
		aggregator: agg,
		scheme:     scheme,
		group:      group,
		timers:     timers,
		transport:  transport,
		state:      Idle,
		logger:     log.NewLogger("initiator"),
	}, nil
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// verifyFact reports whether fact's aggregated signature verifies
// against this instance's group public key (spec §7 Integrity): no
// commit fact arriving embedded in a peer's delta is trusted without
// this check.
func (m *Machine) verifyFact(fact evidence.CommitFact) bool {
	return m.scheme.VerifyAggregate(fact.Rid, fact.Sig, m.group)
}

// Start transitions Idle -> Executing: it broadcasts Execute(cid, op,
// pHash, delta) to every witness and arms the fallback timer (spec §4.3
// row 1).
func (m *Machine) Start(ctx context.Context, op []byte, pHash id.PrestateHash) error {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.state = Executing
	delta := m.store.ExtractDelta(m.cid)
	m.mu.Unlock()

	m.timers.StartFallback(m.cid, m.cfg.TFallback, func() {
		// The initiator takes no unilateral action on fallback timeout
		// (spec §4.3 row 4): witnesses drive fallback. The initiator
		// remains Executing and available to receive Commit.
		m.logger.Debug("fallback timer fired, no initiator action", "cid", m.cid)
	})

	msg := wire.Execute{Cid: m.cid, Op: op, PHash: pHash, Delta: delta}
	return m.transport.BroadcastExecute(ctx, m.witnesses, msg)
}

// OnWitnessShare handles an incoming WitnessShare: merge its delta, then
// if the new total reaches threshold, combine, insert the commit fact,
// and broadcast Commit (spec §4.3 row 2).
func (m *Machine) OnWitnessShare(ctx context.Context, msg wire.WitnessShareMsg) error {
	m.mu.Lock()
	if m.state != Executing {
		m.mu.Unlock()
		return nil
	}
	m.store.ObserveVerified(m.cid, msg.Delta, m.verifyFact)
	m.mu.Unlock()

	fact, ok := m.aggregator.TryCombine(m.store, m.cid)
	if !ok {
		return nil
	}

	m.mu.Lock()
	superseded := m.store.InsertCommit(*fact)
	if superseded {
		// Another combination already won; still proceed to finalize
		// locally with whichever fact is now recorded.
		fact = m.store.IsCommitted(m.cid)
	}
	m.state = Deciding
	m.timers.CancelAll(m.cid)
	m.mu.Unlock()

	commitMsg := wire.Commit{
		Cid:       m.cid,
		Rid:       fact.Rid,
		Sig:       fact.Sig,
		Attesters: fact.Attesters,
		Delta:     m.store.ExtractDelta(m.cid),
	}
	if err := m.transport.BroadcastCommit(ctx, m.witnesses, commitMsg); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = Done
	m.mu.Unlock()
	return nil
}

// OnStateMismatch handles a StateMismatch or a locally detected rid
// conflict: it extracts the observed proposals, broadcasts Conflict to
// hand collection to the witnesses' fallback, and cancels fast-path
// collection (spec §4.3 row 3).
func (m *Machine) OnStateMismatch(ctx context.Context, delta evidence.Delta) error {
	m.mu.Lock()
	if m.state != Executing {
		m.mu.Unlock()
		return nil
	}
	m.store.ObserveVerified(m.cid, delta, m.verifyFact)
	proposals := m.store.Proposals(m.cid)
	m.state = Faulted
	m.mu.Unlock()

	msg := wire.Conflict{Cid: m.cid, Proposals: proposals, Delta: m.store.ExtractDelta(m.cid)}
	return m.transport.BroadcastConflict(ctx, m.witnesses, msg)
}

// OnCommitObserved finalizes locally when the initiator receives a
// Commit it did not itself produce, or otherwise observes committed
// evidence (spec §4.3 row 5).
func (m *Machine) OnCommitObserved(delta evidence.Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.ObserveVerified(m.cid, delta, m.verifyFact)
	if m.store.IsCommitted(m.cid) != nil && m.state != Done {
		m.state = Done
		m.timers.CancelAll(m.cid)
	}
}
