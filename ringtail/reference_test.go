// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ringtail

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/aura/id"
)

func TestReferenceSchemeRoundTrip(t *testing.T) {
	require := require.New(t)
	scheme := NewReferenceScheme()

	var cid, rid, pHash id.Hash32
	cid[0], rid[0], pHash[0] = 1, 2, 3

	var w1, w2 ids.NodeID
	w1[0], w2[0] = 0xA, 0xB
	mat1, mat2 := SigningMaterial("secret-1"), SigningMaterial("secret-2")

	s1, err := scheme.ProduceShare(cid, rid, pHash, mat1)
	require.NoError(err)
	s2, err := scheme.ProduceShare(cid, rid, pHash, mat2)
	require.NoError(err)

	require.True(scheme.VerifyShare(cid, rid, pHash, w1, s1, WitnessPublicKey(mat1)))
	require.False(scheme.VerifyShare(cid, rid, pHash, w1, s1, WitnessPublicKey(mat2)))

	agg, err := scheme.CombineWithWitnesses([]Entry{{Witness: w1, Share: s1}, {Witness: w2, Share: s2}})
	require.NoError(err)

	group := BuildGroupPublicKey(GroupKeySet{w1: WitnessPublicKey(mat1), w2: WitnessPublicKey(mat2)})
	require.True(scheme.VerifyAggregate(rid, agg, group))

	// Tampering with the rid used for verification must break it.
	var wrongRid id.Hash32
	wrongRid[0] = 0xFF
	require.False(scheme.VerifyAggregate(wrongRid, agg, group))
}

func TestReferenceSchemeCombineBare(t *testing.T) {
	require := require.New(t)
	scheme := NewReferenceScheme()

	_, err := scheme.Combine(nil)
	require.ErrorIs(err, ErrInsufficientShares)

	var cid, rid, pHash id.Hash32
	cid[0], rid[0], pHash[0] = 4, 5, 6
	mat1, mat2 := SigningMaterial("secret-1"), SigningMaterial("secret-2")

	s1, err := scheme.ProduceShare(cid, rid, pHash, mat1)
	require.NoError(err)
	s2, err := scheme.ProduceShare(cid, rid, pHash, mat2)
	require.NoError(err)

	forward, err := scheme.Combine([]id.ShareValue{s1, s2})
	require.NoError(err)
	backward, err := scheme.Combine([]id.ShareValue{s2, s1})
	require.NoError(err)
	require.Equal(forward, backward, "Combine must sort shares into a canonical order regardless of input order")
}

func TestReferenceSchemeDeterministic(t *testing.T) {
	require := require.New(t)
	scheme := NewReferenceScheme()

	var cid, rid, pHash id.Hash32
	cid[0], rid[0], pHash[0] = 9, 9, 9
	mat := SigningMaterial("k")

	a, err := scheme.ProduceShare(cid, rid, pHash, mat)
	require.NoError(err)
	b, err := scheme.ProduceShare(cid, rid, pHash, mat)
	require.NoError(err)
	require.Equal(a, b)
}
