// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package initiator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/aura/config"
	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
	"github.com/luxfi/aura/ringtail"
	"github.com/luxfi/aura/timersvc"
	"github.com/luxfi/aura/wire"
)

type recordingTransport struct {
	mu        sync.Mutex
	executes  []wire.Execute
	commits   []wire.Commit
	conflicts []wire.Conflict
}

func (r *recordingTransport) BroadcastExecute(_ context.Context, _ []id.WitnessId, msg wire.Execute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executes = append(r.executes, msg)
	return nil
}

func (r *recordingTransport) BroadcastCommit(_ context.Context, _ []id.WitnessId, msg wire.Commit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msg)
	return nil
}

func (r *recordingTransport) BroadcastConflict(_ context.Context, _ []id.WitnessId, msg wire.Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = append(r.conflicts, msg)
	return nil
}

func testWitnessSet(n int) []id.WitnessId {
	out := make([]id.WitnessId, n)
	for i := range out {
		out[i] = ids.GenerateTestNodeID()
	}
	return out
}

func TestStartBroadcastsExecuteAndArmsFastPath(t *testing.T) {
	require := require.New(t)
	witnesses := testWitnessSet(3)
	cfg := config.Default(3)
	store := evidence.NewStore(time.Minute)
	scheme := ringtail.NewReferenceScheme()
	keys := make(ringtail.GroupKeySet)
	for _, w := range witnesses {
		keys[w] = ringtail.WitnessPublicKey("key-" + w.String())
	}
	group := ringtail.BuildGroupPublicKey(keys)
	transport := &recordingTransport{}
	timers := timersvc.NewService()

	var cid id.Hash32
	cid[0] = 7
	m, err := New(cid, witnesses, cfg, store, scheme, group, timers, transport)
	require.NoError(err)
	require.Equal(Idle, m.State())

	var pHash id.PrestateHash
	pHash[0] = 1
	require.NoError(m.Start(context.Background(), []byte("op"), pHash))
	require.Equal(Executing, m.State())
	require.Len(transport.executes, 1)
	require.Equal(cid, transport.executes[0].Cid)
}

func TestOnWitnessShareReachesThresholdAndBroadcastsCommit(t *testing.T) {
	require := require.New(t)
	witnesses := testWitnessSet(3)
	cfg := config.Default(3)
	store := evidence.NewStore(time.Minute)
	scheme := ringtail.NewReferenceScheme()
	keys := make(ringtail.GroupKeySet)
	materials := make(map[id.WitnessId]ringtail.SigningMaterial)
	for _, w := range witnesses {
		mat := ringtail.SigningMaterial("secret-" + w.String())
		materials[w] = mat
		keys[w] = ringtail.WitnessPublicKey(mat)
	}
	group := ringtail.BuildGroupPublicKey(keys)
	transport := &recordingTransport{}
	timers := timersvc.NewService()

	var cid id.Hash32
	cid[0] = 9
	m, err := New(cid, witnesses, cfg, store, scheme, group, timers, transport)
	require.NoError(err)

	var pHash id.PrestateHash
	pHash[0] = 2
	require.NoError(m.Start(context.Background(), []byte("op"), pHash))

	rid := id.HashResult([]byte("op"), nil)
	for i := 0; i < cfg.T; i++ {
		share, err := scheme.ProduceShare(cid, rid, pHash, materials[witnesses[i]])
		require.NoError(err)
		d := evidence.NewDelta()
		d.Shares[evidence.ProposalKey{Rid: rid, PHash: pHash}] = map[id.WitnessId]id.ShareValue{witnesses[i]: share}
		msg := wire.WitnessShareMsg{Cid: cid, Rid: rid, PHash: pHash, Share: share, Delta: d}
		require.NoError(m.OnWitnessShare(context.Background(), msg))
	}

	require.Equal(Done, m.State())
	require.Len(transport.commits, 1)
	require.NotNil(store.IsCommitted(cid))
}
