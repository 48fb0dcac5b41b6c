// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require := require.New(t)

	cfg := Default(4)
	require.NoError(cfg.Validate())
	require.Equal(4, cfg.N)
	require.True(CanTolerateFailure(cfg.T, cfg.N))
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	require := require.New(t)

	cfg := Default(4)
	cfg.T = 0
	require.ErrorIs(cfg.Validate(), ErrInvalidThreshold)

	cfg = Default(4)
	cfg.T = 5
	require.ErrorIs(cfg.Validate(), ErrInvalidThreshold)
}

func TestValidateRejectsThresholdBelowByzantineBound(t *testing.T) {
	require := require.New(t)

	// n=4 implies f=1; t=1 does not exceed f.
	cfg := Default(4)
	cfg.T = 1
	require.ErrorIs(cfg.Validate(), ErrThresholdBelowByzantineBound)
}

func TestBuilderDerivesGossipPeriod(t *testing.T) {
	require := require.New(t)

	cfg, err := NewBuilder(3).
		WithThreshold(2).
		WithFallbackTimeout(8 * time.Second).
		Build()
	require.NoError(err)
	require.Equal(2*time.Second, cfg.GossipPeriod)
}

func TestBuilderPropagatesValidationError(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder(3).WithThreshold(0).Build()
	require.ErrorIs(err, ErrInvalidThreshold)
}

func TestBoundaryThresholds(t *testing.T) {
	require := require.New(t)

	// t = n: the strictest boundary, every witness must contribute.
	cfg := Default(3)
	cfg.T = 3
	require.NoError(cfg.Validate())

	// t = 1 degenerates to single-witness decision; still valid for n=1.
	cfg = Config{T: 1, N: 1, TFallback: time.Second, GossipK: 1, GossipPeriod: time.Second, GCRetention: 0}
	require.NoError(cfg.Validate())
}
