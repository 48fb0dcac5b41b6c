// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package aggregate implements the share aggregator of spec §4.2: given
// the current proposal map for a consensus instance, decide whether
// t or more non-equivocating shares exist for some (rid, pHash), combine
// them, and verify the result against the group public key. Grounded on
// the bucket-then-combine-once-quorum-reached shape of luxfi/consensus's
// internal/quasar aggregator, generalized from a fixed-size blockID-keyed
// map to the (rid, pHash)-keyed proposal map the spec requires, and on
// the counting/threshold bookkeeping style of luxfi/consensus's quorum
// package.
package aggregate

import (
	"errors"
	"sort"

	"github.com/luxfi/log"

	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
	"github.com/luxfi/aura/ringtail"
)

// ErrInvalidThreshold is returned by New when t <= 0.
var ErrInvalidThreshold = errors.New("aggregate: threshold must be positive")

// ErrWitnessCountBelowThreshold is returned by New when n < t (spec §4.2
// edge cases: "n < t is rejected").
var ErrWitnessCountBelowThreshold = errors.New("aggregate: witness count below threshold")

// Aggregator combines proposal-map entries into a CommitFact once a
// (rid, pHash) key accumulates t or more non-equivocating shares.
type Aggregator struct {
	scheme ringtail.Scheme
	group  ringtail.GroupPublicKey
	t      int
	n      int
	logger log.Logger
}

// New constructs an Aggregator for a witness set of size n requiring
// threshold t. Rejects t <= 0 and n < t per spec §4.2.
func New(scheme ringtail.Scheme, group ringtail.GroupPublicKey, t, n int) (*Aggregator, error) {
	if t <= 0 {
		return nil, ErrInvalidThreshold
	}
	if n < t {
		return nil, ErrWitnessCountBelowThreshold
	}
	return &Aggregator{scheme: scheme, group: group, t: t, n: n, logger: log.NewLogger("aggregate")}, nil
}

// TryCombine inspects cid's current proposal map and equivocator set in
// store and attempts to assemble a CommitFact. It returns (fact, true) on
// success; (nil, false) if no key currently has enough non-equivocating
// shares or no combination verifies.
//
// Tie-break (spec §4.2): if more than one key reaches threshold
// simultaneously, the lexicographically smaller (rid, pHash) is
// preferred. A combination that fails verification is discarded and the
// next eligible key (if any) is tried; individual shares remain
// candidates for future attempts.
func (a *Aggregator) TryCombine(store *evidence.Store, cid id.ConsensusId) (*evidence.CommitFact, bool) {
	proposals := store.Proposals(cid)
	equivocators := store.Equivocators(cid)

	for _, key := range proposals.SortedKeys() {
		witnesses := proposals[key]
		pairs := make([]ringtail.Entry, 0, len(witnesses))
		var attesters []id.WitnessId
		for w, share := range witnesses {
			if equivocators[w] {
				continue
			}
			pairs = append(pairs, ringtail.Entry{Witness: w, Share: share})
			attesters = append(attesters, w)
		}
		if len(pairs) < a.t {
			continue
		}

		agg, err := a.scheme.CombineWithWitnesses(pairs)
		if err != nil {
			a.logger.Debug("combine failed, shares remain candidates", "rid", key.Rid, "err", err)
			continue
		}
		if !a.scheme.VerifyAggregate(key.Rid, agg, a.group) {
			// Verification failure alone is not evidence of malice
			// (spec §4.2): the contributors are not excluded here, only
			// this combination attempt is discarded.
			a.logger.Warn("aggregate verification failed, discarding combination", "rid", key.Rid)
			continue
		}

		fact := &evidence.CommitFact{
			Cid:       cid,
			Rid:       key.Rid,
			PHash:     key.PHash,
			Sig:       agg,
			Attesters: sortedAttesters(attesters),
		}
		return fact, true
	}
	return nil, false
}

func sortedAttesters(ws []id.WitnessId) []id.WitnessId {
	out := append([]id.WitnessId(nil), ws...)
	sort.Slice(out, func(i, j int) bool { return lessWitness(out[i], out[j]) })
	return out
}

func lessWitness(a, b id.WitnessId) bool {
	ab, bb := a.Bytes(), b.Bytes()
	for i := range ab {
		if ab[i] != bb[i] {
			return ab[i] < bb[i]
		}
	}
	return false
}
