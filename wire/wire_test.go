// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	require := require.New(t)
	var cid id.Hash32
	cid[0] = 1
	msg := Execute{Cid: cid, Op: []byte("increment"), Delta: evidence.NewDelta()}

	data, err := Codec.Marshal(CurrentVersion, msg)
	require.NoError(err)

	var out Execute
	version, err := Codec.Unmarshal(data, &out)
	require.NoError(err)
	require.Equal(CurrentVersion, version)
	require.Equal(msg.Cid, out.Cid)
	require.Equal(msg.Op, out.Op)
}

func TestCanonicalEncodingIsDeterministic(t *testing.T) {
	require := require.New(t)
	var cid, rid, pHash id.Hash32
	cid[0], rid[0], pHash[0] = 1, 2, 3

	msg := WitnessShareMsg{Cid: cid, Rid: rid, PHash: pHash, Share: id.ShareValue{1, 2, 3}, Delta: evidence.NewDelta()}
	a := msg.Canonical()
	b := msg.Canonical()
	require.Equal(a, b)
	require.Equal(Hash(a), Hash(b))
}

func TestCanonicalEncodingDiffersByKind(t *testing.T) {
	require := require.New(t)
	var cid id.Hash32
	cid[0] = 9

	exec := Execute{Cid: cid, Op: []byte("x"), Delta: evidence.NewDelta()}
	commit := Commit{Cid: cid, Delta: evidence.NewDelta()}
	require.NotEqual(Hash(exec.Canonical()), Hash(commit.Canonical()))
}
