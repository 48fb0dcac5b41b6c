// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package timersvc

import (
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/aura/id"
)

// Timers is the abstraction state machines depend on (spec §9: "a timer
// service abstraction with start(cid, duration), cancel(cid),
// tick-delivery to the owning state machine; the abstraction is replaced
// by a virtual clock in simulation without changing state-machine code").
// *Service is the wall-clock implementation; a deterministic,
// manually-advanced implementation can satisfy the same interface for
// simulation without either initiator.Machine or witness.Machine
// changing.
type Timers interface {
	StartFallback(cid id.ConsensusId, d time.Duration, onFire func())
	CancelFallback(cid id.ConsensusId)
	StartGossipTicker(cid id.ConsensusId, period time.Duration, onTick func())
	CancelGossipTicker(cid id.ConsensusId)
	CancelAll(cid id.ConsensusId)
}

// Service manages the per-cid fallback timer and periodic gossip ticker
// described in spec §5: "Fallback timers are per cid; cancelled on
// entering Decided. Periodic gossip ticks are per cid and stop on
// Decided." Implementations SHOULD coalesce timers for very large
// witness sets; this Service keeps one goroutine per active cid, which is
// adequate for the instance counts a single peer handles at once and
// mirrors the one-timer-per-pending-certificate style of
// luxfi/consensus's internal/ringtail/finalizer.go.
type Service struct {
	mu      sync.Mutex
	timers  map[id.ConsensusId]*time.Timer
	tickers map[id.ConsensusId]*tickerHandle
	logger  log.Logger
}

type tickerHandle struct {
	ticker *time.Ticker
	stop   chan struct{}
}

var _ Timers = (*Service)(nil)

// NewService returns an empty timer service.
func NewService() *Service {
	return &Service{
		timers:  make(map[id.ConsensusId]*time.Timer),
		tickers: make(map[id.ConsensusId]*tickerHandle),
		logger:  log.NewLogger("timersvc"),
	}
}

// StartFallback arms a one-shot timer for cid; onFire runs in its own
// goroutine when it elapses, unless CancelFallback is called first.
// Starting a new fallback timer for a cid that already has one replaces
// it.
func (s *Service) StartFallback(cid id.ConsensusId, d time.Duration, onFire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[cid]; ok {
		existing.Stop()
	}
	s.timers[cid] = time.AfterFunc(d, onFire)
}

// CancelFallback stops cid's fallback timer, if any.
func (s *Service) CancelFallback(cid id.ConsensusId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[cid]; ok {
		t.Stop()
		delete(s.timers, cid)
	}
}

// StartGossipTicker starts a periodic ticker for cid that invokes onTick
// every period until CancelGossipTicker is called. Starting a new ticker
// for a cid that already has one replaces it.
func (s *Service) StartGossipTicker(cid id.ConsensusId, period time.Duration, onTick func()) {
	s.mu.Lock()
	if existing, ok := s.tickers[cid]; ok {
		existing.ticker.Stop()
		close(existing.stop)
	}
	h := &tickerHandle{ticker: time.NewTicker(period), stop: make(chan struct{})}
	s.tickers[cid] = h
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.ticker.C:
				onTick()
			}
		}
	}()
}

// CancelGossipTicker stops cid's gossip ticker, if any.
func (s *Service) CancelGossipTicker(cid id.ConsensusId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.tickers[cid]; ok {
		h.ticker.Stop()
		close(h.stop)
		delete(s.tickers, cid)
	}
}

// CancelAll stops both the fallback timer and the gossip ticker for cid,
// the action taken on entering Decided (spec §4.4/§5).
func (s *Service) CancelAll(cid id.ConsensusId) {
	s.CancelFallback(cid)
	s.CancelGossipTicker(cid)
}
