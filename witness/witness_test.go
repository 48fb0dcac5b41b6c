// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package witness

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
	"github.com/luxfi/aura/journal"
	"github.com/luxfi/aura/ringtail"
	"github.com/luxfi/aura/timersvc"
	"github.com/luxfi/aura/wire"
)

type recordingTransport struct {
	mu          sync.Mutex
	shares      []wire.WitnessShareMsg
	mismatches  []wire.StateMismatch
	aggregates  []wire.AggregateShare
	completions []wire.ThresholdComplete
}

func (r *recordingTransport) SendWitnessShare(_ context.Context, _ id.WitnessId, msg wire.WitnessShareMsg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shares = append(r.shares, msg)
	return nil
}

func (r *recordingTransport) SendStateMismatch(_ context.Context, _ id.WitnessId, msg wire.StateMismatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mismatches = append(r.mismatches, msg)
	return nil
}

func (r *recordingTransport) BroadcastAggregateShare(_ context.Context, _ []id.WitnessId, msg wire.AggregateShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregates = append(r.aggregates, msg)
	return nil
}

func (r *recordingTransport) BroadcastThresholdComplete(_ context.Context, _ []id.WitnessId, msg wire.ThresholdComplete) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, msg)
	return nil
}

type staticSampler struct{ peers []id.WitnessId }

func (s staticSampler) Sample(k int, exclude id.WitnessId) []id.WitnessId {
	out := make([]id.WitnessId, 0, k)
	for _, p := range s.peers {
		if p != exclude && len(out) < k {
			out = append(out, p)
		}
	}
	return out
}

func TestOnExecuteMatchingPrestateProducesShare(t *testing.T) {
	require := require.New(t)
	self := ids.GenerateTestNodeID()
	initiatorID := ids.GenerateTestNodeID()
	peer := ids.GenerateTestNodeID()
	witnesses := []id.WitnessId{self, peer}

	cfg := config.Default(2)
	store := evidence.NewStore(time.Minute)
	scheme := ringtail.NewReferenceScheme()
	material := ringtail.SigningMaterial("secret")
	keys := ringtail.GroupKeySet{self: ringtail.WitnessPublicKey(material)}
	group := ringtail.BuildGroupPublicKey(keys)
	jrn := journal.NewMemoryJournal()
	timers := timersvc.NewService()
	transport := &recordingTransport{}

	var cid id.Hash32
	cid[0] = 3
	m, err := New(cid, self, initiatorID, witnesses, cfg, store, scheme, material, group, jrn, timers, transport, staticSampler{witnesses})
	require.NoError(err)

	pHash := id.HashPrestate([][]byte{nil}, nil)

	require.NoError(m.OnExecute(context.Background(), wire.Execute{
		Cid: cid, Op: []byte("op"), PHash: pHash, Delta: evidence.NewDelta(),
	}))

	require.Equal(SharedFast, m.State())
	require.Len(transport.shares, 1)
	require.Empty(transport.mismatches)
}

func TestOnExecuteMismatchSendsStateMismatch(t *testing.T) {
	require := require.New(t)
	self := ids.GenerateTestNodeID()
	initiatorID := ids.GenerateTestNodeID()
	witnesses := []id.WitnessId{self}

	cfg := config.Default(1)
	store := evidence.NewStore(time.Minute)
	scheme := ringtail.NewReferenceScheme()
	material := ringtail.SigningMaterial("secret")
	group := ringtail.BuildGroupPublicKey(ringtail.GroupKeySet{self: ringtail.WitnessPublicKey(material)})
	jrn := journal.NewMemoryJournal()
	timers := timersvc.NewService()
	transport := &recordingTransport{}

	var cid id.Hash32
	cid[0] = 4
	m, err := New(cid, self, initiatorID, witnesses, cfg, store, scheme, material, group, jrn, timers, transport, staticSampler{witnesses})
	require.NoError(err)

	var wrongHash id.PrestateHash
	wrongHash[0] = 0xFF

	require.NoError(m.OnExecute(context.Background(), wire.Execute{
		Cid: cid, Op: []byte("op"), PHash: wrongHash, Delta: evidence.NewDelta(),
	}))

	require.Equal(FallbackActive, m.State())
	require.Len(transport.mismatches, 1)
	require.Empty(transport.shares)
}
