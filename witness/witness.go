// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package witness implements the witness state machine of spec §4.4:
// Idle -> Armed -> SharedFast -> FallbackActive -> Decided. Grounded on
// the timer-driven state promotion of luxfi/consensus's
// internal/ringtail/finalizer.go share-collection loop, combined with
// protocol/quasar/core.go's mutex-guarded transition style.
package witness

import (
	"context"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/aura/aggregate"
	"github.com/luxfi/aura/config"
	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
	"github.com/luxfi/aura/journal"
	"github.com/luxfi/aura/ringtail"
	"github.com/luxfi/aura/timersvc"
	"github.com/luxfi/aura/wire"
)

// State is one of the five states of spec §4.4.
type State int

const (
	Idle State = iota
	Armed
	SharedFast
	FallbackActive
	Decided
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Armed:
		return "Armed"
	case SharedFast:
		return "SharedFast"
	case FallbackActive:
		return "FallbackActive"
	case Decided:
		return "Decided"
	default:
		return "Unknown"
	}
}

// PeerSampler selects up to k peers (excluding self) to gossip to, per
// spec §4.5's bounded fanout. Implemented by the gossip package.
type PeerSampler interface {
	Sample(k int, exclude id.WitnessId) []id.WitnessId
}

// Transport is the narrow messaging collaborator the witness consumes.
type Transport interface {
	SendWitnessShare(ctx context.Context, to id.WitnessId, msg wire.WitnessShareMsg) error
	SendStateMismatch(ctx context.Context, to id.WitnessId, msg wire.StateMismatch) error
	BroadcastAggregateShare(ctx context.Context, to []id.WitnessId, msg wire.AggregateShare) error
	BroadcastThresholdComplete(ctx context.Context, to []id.WitnessId, msg wire.ThresholdComplete) error
}

// Machine drives one consensus instance's witness side.
type Machine struct {
	mu sync.Mutex

	cid       id.ConsensusId
	self      id.WitnessId
	initiator id.WitnessId
	witnesses []id.WitnessId
	cfg       config.Config

	store      *evidence.Store
	aggregator *aggregate.Aggregator
	scheme     ringtail.Scheme
	material   ringtail.SigningMaterial
	group      ringtail.GroupPublicKey
	journal    journal.Journal
	timers     timersvc.Timers
	transport  Transport
	sampler    PeerSampler

	state    State
	executed bool
	logger   log.Logger
}

// New constructs a witness Machine for one instance.
func New(cid id.ConsensusId, self, initiatorID id.WitnessId, witnesses []id.WitnessId, cfg config.Config, store *evidence.Store, scheme ringtail.Scheme, material ringtail.SigningMaterial, group ringtail.GroupPublicKey, jrn journal.Journal, timers timersvc.Timers, transport Transport, sampler PeerSampler) (*Machine, error) {
	agg, err := aggregate.New(scheme, group, cfg.T, cfg.N)
	if err != nil {
		return nil, err
	}
	return &Machine{
		cid:        cid,
		self:       self,
		initiator:  initiatorID,
		witnesses:  witnesses,
		cfg:        cfg,
		store:      store,
		aggregator: agg,
		scheme:     scheme,
		material:   material,
		group:      group,
		journal:    jrn,
		timers:     timers,
		transport:  transport,
		sampler:    sampler,
		state:      Idle,
		logger:     log.NewLogger("witness"),
	}, nil
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// verifyFact reports whether fact's aggregated signature verifies
// against this instance's group public key with Rid as the signed
// message (spec §6.3 verify_aggregate), the check every commit fact
// arriving embedded in a peer's delta must pass before it is trusted
// (spec §7 Integrity).
func (m *Machine) verifyFact(fact evidence.CommitFact) bool {
	return m.scheme.VerifyAggregate(fact.Rid, fact.Sig, m.group)
}

// OnExecute handles the initiator's Execute message (spec §4.4 row 1):
// it validates the proposed pre-state hash against the local journal,
// reports a mismatch via StateMismatch, or else produces and sends a
// share and arms the fallback timer. A duplicate Execute (this witness
// already evaluated it once) is merged and dropped rather than
// reprocessed or treated as an error (spec §4.4 Decided row; spec §8
// duplicate delivery is absorbed). A late Execute (one that arrives
// after a Conflict or AggregateShare already pushed this instance into
// FallbackActive, which can happen under reordering since nothing
// requires Execute to be delivered first) is still evaluated, so the
// witness's own share reaches the fallback evidence pool, but it does
// not regress the state machine back toward Armed/SharedFast.
func (m *Machine) OnExecute(ctx context.Context, msg wire.Execute) error {
	m.mu.Lock()
	if m.executed {
		m.mu.Unlock()
		m.store.ObserveVerified(m.cid, msg.Delta, m.verifyFact)
		return nil
	}
	m.executed = true
	fastPath := m.state == Idle
	m.mu.Unlock()

	m.store.ObserveVerified(m.cid, msg.Delta, m.verifyFact)

	prestate, local, err := m.journal.ReadPrestate(ctx, msg.Cid)
	if err != nil {
		return err
	}
	if local != msg.PHash {
		if fastPath {
			m.mu.Lock()
			m.state = FallbackActive
			m.mu.Unlock()
			m.armFallback(ctx)
		}
		return m.transport.SendStateMismatch(ctx, m.initiator, wire.StateMismatch{
			Cid: m.cid, Expected: msg.PHash, Actual: local, Delta: m.store.ExtractDelta(m.cid),
		})
	}

	rid := id.HashResult(msg.Op, prestate)
	share, err := m.scheme.ProduceShare(m.cid, rid, msg.PHash, m.material)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.store.Observe(m.cid, evidence.Delta{
		Shares: evidence.ProposalMap{{Rid: rid, PHash: msg.PHash}: {m.self: share}},
	})
	if fastPath {
		m.state = Armed
	}
	m.mu.Unlock()

	if fastPath {
		m.armFallback(ctx)
	}

	shareMsg := wire.WitnessShareMsg{Cid: m.cid, Rid: rid, PHash: msg.PHash, Share: share, Delta: m.store.ExtractDelta(m.cid)}
	if err := m.transport.SendWitnessShare(ctx, m.initiator, shareMsg); err != nil {
		return err
	}

	if fastPath {
		m.mu.Lock()
		// A reentrant transport call (the sending of this very share) may
		// have already driven this instance to Decided before control
		// returns here; never regress out of Decided.
		if m.state != Decided {
			m.state = SharedFast
		}
		m.mu.Unlock()
	}
	return nil
}

// armFallback starts the fallback timer; firing promotes the instance
// into FallbackActive and starts the periodic gossip ticker (spec §4.4
// row 3, §4.5).
func (m *Machine) armFallback(ctx context.Context) {
	m.timers.StartFallback(m.cid, m.cfg.TFallback, func() {
		m.mu.Lock()
		if m.state == Decided {
			m.mu.Unlock()
			return
		}
		m.state = FallbackActive
		m.mu.Unlock()
		m.logger.Info("fallback timeout elapsed, entering gossip", "cid", m.cid)
		m.timers.StartGossipTicker(m.cid, m.cfg.GossipPeriod, func() {
			m.gossipTick(ctx)
		})
	})
}

// gossipTick is one fallback gossip round (spec §4.5): sample up to
// gossip_k peers and send them the current proposal map, then attempt a
// local combine.
func (m *Machine) gossipTick(ctx context.Context) {
	m.mu.Lock()
	if m.state == Decided {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	peers := m.sampler.Sample(m.cfg.GossipK, m.self)
	msg := wire.AggregateShare{Cid: m.cid, Proposals: m.store.Proposals(m.cid), Delta: m.store.ExtractDelta(m.cid)}
	if err := m.transport.BroadcastAggregateShare(ctx, peers, msg); err != nil {
		m.logger.Warn("gossip tick send failed", "cid", m.cid, "err", err)
	}

	m.tryFinalize(ctx)
}

// OnAggregateShare merges a gossiped peer's proposal map and attempts to
// finalize (spec §4.5).
func (m *Machine) OnAggregateShare(ctx context.Context, msg wire.AggregateShare) error {
	m.mu.Lock()
	if m.state == Decided {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	m.store.ObserveVerified(m.cid, msg.Delta, m.verifyFact)
	m.tryFinalize(ctx)
	return nil
}

// tryFinalize attempts to combine the local evidence view into a
// CommitFact; on success it broadcasts ThresholdComplete and transitions
// to Decided (spec §4.4 row 4, §4.5).
func (m *Machine) tryFinalize(ctx context.Context) {
	fact, ok := m.aggregator.TryCombine(m.store, m.cid)
	if !ok {
		return
	}
	m.store.InsertCommit(*fact)

	m.mu.Lock()
	if m.state == Decided {
		m.mu.Unlock()
		return
	}
	m.state = Decided
	m.mu.Unlock()
	m.timers.CancelAll(m.cid)

	msg := wire.ThresholdComplete{
		Cid: m.cid, Rid: fact.Rid, Sig: fact.Sig, Attesters: fact.Attesters, Delta: m.store.ExtractDelta(m.cid),
	}
	if err := m.transport.BroadcastThresholdComplete(ctx, m.witnesses, msg); err != nil {
		m.logger.Warn("threshold-complete broadcast failed", "cid", m.cid, "err", err)
	}
}

// OnCommit handles the initiator's Commit (fast path) or another peer's
// ThresholdComplete (fallback path): both carry a decided CommitFact, so
// observing the delta and transitioning to Decided is identical either
// way (spec §4.4 row 2). The embedded fact must verify against this
// witness's own copy of the group public key before it is trusted; on
// verification failure the message is ignored and the witness does not
// finalize (spec §4.6).
func (m *Machine) OnCommit(delta evidence.Delta) {
	m.store.ObserveVerified(m.cid, delta, m.verifyFact)
	if m.store.IsCommitted(m.cid) == nil {
		return
	}
	m.mu.Lock()
	if m.state == Decided {
		m.mu.Unlock()
		return
	}
	m.state = Decided
	m.mu.Unlock()
	m.timers.CancelAll(m.cid)
}

// OnConflict handles the initiator's Conflict message, handing
// collection over to fallback immediately rather than waiting on the
// timer (spec §4.4 row 3 fast exit).
func (m *Machine) OnConflict(ctx context.Context, msg wire.Conflict) {
	m.store.ObserveVerified(m.cid, msg.Delta, m.verifyFact)
	m.mu.Lock()
	if m.state == Decided {
		m.mu.Unlock()
		return
	}
	m.state = FallbackActive
	m.mu.Unlock()
	m.timers.CancelFallback(m.cid)
	m.timers.StartGossipTicker(m.cid, m.cfg.GossipPeriod, func() {
		m.gossipTick(ctx)
	})
}
