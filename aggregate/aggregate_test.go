// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
	"github.com/luxfi/aura/ringtail"
)

type witnessKeys struct {
	ids  []ids.NodeID
	mats map[ids.NodeID]ringtail.SigningMaterial
	pubs ringtail.GroupKeySet
}

func makeWitnesses(n int) witnessKeys {
	wk := witnessKeys{mats: map[ids.NodeID]ringtail.SigningMaterial{}, pubs: ringtail.GroupKeySet{}}
	for i := 0; i < n; i++ {
		var w ids.NodeID
		w[0] = byte(i + 1)
		wk.ids = append(wk.ids, w)
		mat := ringtail.SigningMaterial([]byte{byte(i + 1), 0xAA})
		wk.mats[w] = mat
		wk.pubs[w] = ringtail.WitnessPublicKey(mat)
	}
	return wk
}

func TestTryCombineSucceedsAtThreshold(t *testing.T) {
	require := require.New(t)
	scheme := ringtail.NewReferenceScheme()
	wk := makeWitnesses(3)
	group := ringtail.BuildGroupPublicKey(wk.pubs)

	agg, err := New(scheme, group, 2, 3)
	require.NoError(err)

	store := evidence.NewStore(time.Minute)
	var cid, rid, pHash id.Hash32
	cid[0], rid[0], pHash[0] = 1, 2, 3

	d := evidence.NewDelta()
	key := evidence.ProposalKey{Rid: rid, PHash: pHash}
	shares := map[id.WitnessId]id.ShareValue{}
	for _, w := range wk.ids[:2] {
		s, err := scheme.ProduceShare(cid, rid, pHash, wk.mats[w])
		require.NoError(err)
		shares[w] = s
	}
	d.Shares[key] = shares
	store.Observe(cid, d)

	fact, ok := agg.TryCombine(store, cid)
	require.True(ok)
	require.Equal(rid, fact.Rid)
	require.Len(fact.Attesters, 2)
}

func TestTryCombineWaitsForThreshold(t *testing.T) {
	require := require.New(t)
	scheme := ringtail.NewReferenceScheme()
	wk := makeWitnesses(3)
	group := ringtail.BuildGroupPublicKey(wk.pubs)

	agg, err := New(scheme, group, 2, 3)
	require.NoError(err)

	store := evidence.NewStore(time.Minute)
	var cid, rid, pHash id.Hash32
	cid[0], rid[0], pHash[0] = 4, 5, 6

	d := evidence.NewDelta()
	key := evidence.ProposalKey{Rid: rid, PHash: pHash}
	s, err := scheme.ProduceShare(cid, rid, pHash, wk.mats[wk.ids[0]])
	require.NoError(err)
	d.Shares[key] = map[id.WitnessId]id.ShareValue{wk.ids[0]: s}
	store.Observe(cid, d)

	_, ok := agg.TryCombine(store, cid)
	require.False(ok)
}

func TestTryCombineExcludesEquivocators(t *testing.T) {
	require := require.New(t)
	scheme := ringtail.NewReferenceScheme()
	wk := makeWitnesses(4)
	group := ringtail.BuildGroupPublicKey(wk.pubs)

	agg, err := New(scheme, group, 3, 4)
	require.NoError(err)

	store := evidence.NewStore(time.Minute)
	var cid, pHash id.Hash32
	cid[0], pHash[0] = 7, 8
	var ridA, ridB id.Hash32
	ridA[0], ridB[0] = 0xAA, 0xBB

	keyA := evidence.ProposalKey{Rid: ridA, PHash: pHash}
	keyB := evidence.ProposalKey{Rid: ridB, PHash: pHash}

	// w0 equivocates: shares under both keyA and keyB for the same pHash.
	w0 := wk.ids[0]
	shareA0, _ := scheme.ProduceShare(cid, ridA, pHash, wk.mats[w0])
	shareB0, _ := scheme.ProduceShare(cid, ridB, pHash, wk.mats[w0])

	dA := evidence.NewDelta()
	dA.Shares[keyA] = map[id.WitnessId]id.ShareValue{w0: shareA0}
	store.Observe(cid, dA)

	dB := evidence.NewDelta()
	dB.Shares[keyB] = map[id.WitnessId]id.ShareValue{w0: shareB0}
	store.Observe(cid, dB)

	require.True(store.Equivocators(cid)[w0])

	// Three honest witnesses produce matching shares under keyA.
	dHonest := evidence.NewDelta()
	honestShares := map[id.WitnessId]id.ShareValue{}
	for _, w := range wk.ids[1:4] {
		s, err := scheme.ProduceShare(cid, ridA, pHash, wk.mats[w])
		require.NoError(err)
		honestShares[w] = s
	}
	dHonest.Shares[keyA] = honestShares
	store.Observe(cid, dHonest)

	fact, ok := agg.TryCombine(store, cid)
	require.True(ok)
	require.Equal(ridA, fact.Rid)
	require.Len(fact.Attesters, 3)
	for _, att := range fact.Attesters {
		require.NotEqual(w0, att)
	}
}

func TestNewRejectsBadParameters(t *testing.T) {
	require := require.New(t)
	scheme := ringtail.NewReferenceScheme()
	_, err := New(scheme, nil, 0, 3)
	require.ErrorIs(err, ErrInvalidThreshold)

	_, err = New(scheme, nil, 5, 3)
	require.ErrorIs(err, ErrWitnessCountBelowThreshold)
}
