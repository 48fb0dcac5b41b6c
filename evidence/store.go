// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evidence

import (
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/aura/id"
)

// instanceState is the evidence store's per-cid record: the proposal map,
// any recorded equivocations, the commit cell, and GC bookkeeping.
type instanceState struct {
	proposals     ProposalMap
	equivocations []EquivocationRecord
	equivocators  map[id.WitnessId]bool
	commit        *CommitFact
	decidedAt     time.Time
	gcHorizon     time.Time
}

// Store is the per-cid evidence CRDT (spec §4.1). One Store instance is
// shared by every consensus instance a peer participates in; all
// mutation, for every cid, is serialized by one store-wide mutex, so each
// per-cid merge is atomic.
type Store struct {
	mu         sync.Mutex
	instances  map[id.ConsensusId]*instanceState
	gcRetention time.Duration
	logger     log.Logger
}

// NewStore returns an empty evidence store. gcRetention is how long a
// decided instance is kept before GC() may reclaim it (spec §6.4
// gc_retention).
func NewStore(gcRetention time.Duration) *Store {
	return &Store{
		instances:   make(map[id.ConsensusId]*instanceState),
		gcRetention: gcRetention,
		logger:      log.NewLogger("evidence"),
	}
}

func (s *Store) getOrCreate(cid id.ConsensusId) *instanceState {
	st, ok := s.instances[cid]
	if !ok {
		st = &instanceState{
			proposals:    newProposalMap(),
			equivocators: make(map[id.WitnessId]bool),
		}
		s.instances[cid] = st
	}
	return st
}

// CommitVerifier decides whether an incoming CommitFact (arriving
// embedded in a peer's delta, as opposed to one this peer combined
// itself) is admissible. ObserveVerified calls it before accepting delta.Commit,
// so that a CommitFact can never enter the store on the strength of a
// peer's say-so alone (spec §7 Integrity / §4.6: "the recipient ignores
// the message and does NOT finalize" on verification failure). A nil
// verifier accepts unconditionally, which is appropriate for tests that
// construct evidence directly and trust their own fixtures.
type CommitVerifier func(CommitFact) bool

// Observe merges delta into the local state for cid and reports which
// previously-unseen shares were newly recorded (spec §4.1 observe).
// Idempotent and commutative with other Observe calls. If cid was
// GC'd, the delta is discarded silently and newShares is empty. Any
// commit fact embedded in delta is accepted unconditionally; callers
// merging deltas received from peers MUST use ObserveVerified instead.
func (s *Store) Observe(cid id.ConsensusId, delta Delta) (newShares []WitnessShare) {
	return s.observe(cid, delta, nil)
}

// ObserveVerified is Observe, but a commit fact embedded in delta is
// only accepted into the store if verify reports true. This is the path
// every message handler driven by untrusted peer input (Execute,
// WitnessShare, StateMismatch, Conflict, AggregateShare, Commit,
// ThresholdComplete all carry a delta that may embed a CommitFact) must
// use, so that Integrity holds regardless of which message happened to
// carry the fact.
func (s *Store) ObserveVerified(cid id.ConsensusId, delta Delta, verify CommitVerifier) (newShares []WitnessShare) {
	return s.observe(cid, delta, verify)
}

func (s *Store) observe(cid id.ConsensusId, delta Delta, verify CommitVerifier) (newShares []WitnessShare) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, existed := s.instances[cid]
	if !existed {
		st = s.getOrCreate(cid)
	} else if !st.gcHorizon.IsZero() {
		// already GC'd and snapshotted; drop.
		return nil
	}

	for key, witnesses := range delta.Shares {
		for w, share := range witnesses {
			if _, seen := st.proposals[key][w]; seen {
				continue
			}
			if existing := s.firstKeyFor(st, w); existing != nil && *existing != key && existing.PHash == key.PHash {
				s.recordEquivocation(st, w, *existing, key, share)
				continue
			}
			if st.proposals[key] == nil {
				st.proposals[key] = make(map[id.WitnessId]id.ShareValue)
			}
			st.proposals[key][w] = share
			newShares = append(newShares, WitnessShare{Witness: w, Key: key, Share: share})
		}
	}

	for _, eq := range delta.Equivocations {
		s.addEquivocation(st, eq)
	}

	if delta.Commit != nil {
		if st.commit != nil || verify == nil || verify(*delta.Commit) {
			s.insertCommitLocked(st, *delta.Commit)
		} else {
			s.logger.Debug("rejected unverifiable commit fact from delta", "cid", cid, "rid", delta.Commit.Rid)
		}
	}

	return newShares
}

// firstKeyFor returns the key under which witness w already has a
// recorded share, or nil if none.
func (s *Store) firstKeyFor(st *instanceState, w id.WitnessId) *ProposalKey {
	for key, witnesses := range st.proposals {
		if _, ok := witnesses[w]; ok {
			k := key
			return &k
		}
	}
	return nil
}

func (s *Store) recordEquivocation(st *instanceState, w id.WitnessId, a, b ProposalKey, shareB id.ShareValue) {
	shareA := st.proposals[a][w]
	rec := EquivocationRecord{
		Witness: w,
		PHash:   a.PHash,
		RidA:    a.Rid,
		ShareA:  shareA,
		RidB:    b.Rid,
		ShareB:  shareB,
	}
	s.addEquivocation(st, rec)
}

func (s *Store) addEquivocation(st *instanceState, rec EquivocationRecord) {
	if st.equivocators[rec.Witness] {
		return
	}
	st.equivocators[rec.Witness] = true
	st.equivocations = append(st.equivocations, rec)
	// Equivocating shares remain in the evidence store as proof of
	// misbehavior (spec §4.5) but must not count toward any threshold:
	// the aggregator filters by Equivocators(), so we do not delete the
	// shares here.
	s.logger.Warn("witness equivocation recorded", "witness", rec.Witness, "rid_a", rec.RidA, "rid_b", rec.RidB)
}

// InsertCommit attempts to record fact as the commit for its Cid, subject
// to the monotone first-writer-wins rule (spec §4.1 invariant a). Returns
// superseded=true if an equal-or-earlier fact already existed.
func (s *Store) InsertCommit(fact CommitFact) (superseded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreate(fact.Cid)
	return s.insertCommitLocked(st, fact)
}

func (s *Store) insertCommitLocked(st *instanceState, fact CommitFact) (superseded bool) {
	if st.commit != nil {
		return true
	}
	st.commit = &fact
	st.decidedAt = time.Now()
	s.logger.Info("commit fact recorded", "cid", fact.Cid, "rid", fact.Rid, "attesters", len(fact.Attesters))
	return false
}

// IsCommitted returns the commit fact for cid, if any (spec §4.1
// is_committed).
func (s *Store) IsCommitted(cid id.ConsensusId) *CommitFact {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.instances[cid]
	if !ok || st.commit == nil {
		return nil
	}
	fact := *st.commit
	return &fact
}

// Equivocators returns the set of witnesses with a recorded equivocation
// for cid.
func (s *Store) Equivocators(cid id.ConsensusId) map[id.WitnessId]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.instances[cid]
	if !ok {
		return nil
	}
	out := make(map[id.WitnessId]bool, len(st.equivocators))
	for w := range st.equivocators {
		out[w] = true
	}
	return out
}

// Proposals returns a copy of the current proposal map for cid.
func (s *Store) Proposals(cid id.ConsensusId) ProposalMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.instances[cid]
	if !ok {
		return newProposalMap()
	}
	return st.proposals.clone()
}

// ExtractDelta produces a delta summarizing the current local view of cid,
// suitable for piggybacking on an outgoing message (spec §4.1
// extract_delta). Implementations may choose full snapshots over
// incremental cursors; this one always snapshots, which is simpler to
// reason about and still satisfies the idempotence property since merge
// is set-union.
func (s *Store) ExtractDelta(cid id.ConsensusId) Delta {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.instances[cid]
	if !ok {
		return NewDelta()
	}
	d := Delta{Shares: st.proposals.clone()}
	d.Equivocations = append(d.Equivocations, st.equivocations...)
	if st.commit != nil {
		fact := *st.commit
		d.Commit = &fact
	}
	return d
}

// GC reclaims instances whose commit fact was recorded more than
// gcRetention ago. Returns the number of instances reclaimed.
func (s *Store) GC(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.instances {
		if st.commit == nil || st.decidedAt.IsZero() || !st.gcHorizon.IsZero() {
			continue
		}
		if now.Sub(st.decidedAt) < s.gcRetention {
			continue
		}
		// Keep a tombstone rather than deleting outright: a deleted map
		// entry would let a later Observe silently recreate the
		// instance and accept stale deltas past the snapshot horizon.
		st.gcHorizon = now
		st.proposals = newProposalMap()
		st.equivocations = nil
		n++
	}
	if n > 0 {
		s.logger.Debug("garbage collected decided instances", "count", n)
	}
	return n
}
