package poller

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
	"github.com/HaPhanBaoMinh/upmon/internal/reconcile"
)

const DefaultInterval = 10 * time.Second

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseStopped:
		return "stopped"
	}
	return "unknown"
}

type Config struct {
	Interval   time.Duration
	Timeout    time.Duration // per fetch, 0 means no limit
	EmptyBatch reconcile.EmptyBatchPolicy
}

// Scheduler polls the status backend on a fixed interval and merges each
// batch into the published State.
//
// A single loop goroutine owns the state and is its only writer. At most one
// fetch is in flight: ticks that fire meanwhile are dropped, and refresh
// requests are folded into one poll that starts when the current one settles.
type Scheduler struct {
	repo    domain.StatusRepo
	conf    Config
	clock   clockwork.Clock
	logger  logr.Logger
	metrics *Metrics
	guard   Guard

	mu     sync.Mutex
	phase  Phase
	cancel context.CancelFunc
	done   chan struct{}

	wake     chan struct{}
	wantAuth atomic.Bool

	state   atomic.Pointer[State]
	updates chan *State
}

func New(repo domain.StatusRepo, conf Config) *Scheduler {
	if conf.Interval <= 0 {
		conf.Interval = DefaultInterval
	}
	if conf.EmptyBatch == "" {
		conf.EmptyBatch = reconcile.EmptyBatchRetain
	}

	s := &Scheduler{
		repo:    repo,
		conf:    conf,
		clock:   clockwork.NewRealClock(),
		logger:  logr.Discard(),
		wake:    make(chan struct{}, 1),
		updates: make(chan *State, 1),
	}
	s.state.Store(initialState())

	return s
}

func (s *Scheduler) WithClock(clock clockwork.Clock) *Scheduler {
	s.clock = clock
	return s
}

func (s *Scheduler) WithLogger(logger logr.Logger) *Scheduler {
	s.logger = logger
	return s
}

func (s *Scheduler) WithMetrics(m *Metrics) *Scheduler {
	s.metrics = m
	return s
}

// Current returns the latest state. Never nil.
func (s *Scheduler) Current() *State {
	return s.state.Load()
}

// Updates delivers states as they change, latest wins. Closed after Stop.
func (s *Scheduler) Updates() <-chan *State {
	return s.updates
}

func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

// Start polls once immediately, then on every interval until Stop or until
// ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseActive:
		return ErrAlreadyStarted
	case PhaseStopped:
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	s.phase = PhaseActive
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.guard.Token())

	s.logger.V(1).Info("Scheduler started", "interval", s.conf.Interval, "emptyBatch", s.conf.EmptyBatch)

	return nil
}

// Stop detaches the consumer and ends polling. A fetch still in flight is
// left to finish but its result is never applied. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.phase {
	case PhaseStopped:
		s.mu.Unlock()

		return
	case PhaseIdle:
		s.phase = PhaseStopped
		s.guard.Detach()
		close(s.updates)
		s.mu.Unlock()

		return
	}

	s.phase = PhaseStopped
	s.guard.Detach()
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done

	s.logger.V(1).Info("Scheduler stopped")
}

// Refresh asks for a poll now. It never blocks.
func (s *Scheduler) Refresh() {
	s.request(false)
}

func (s *Scheduler) request(authoritative bool) {
	if authoritative {
		s.wantAuth.Store(true)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

type pollRequest struct {
	token         Token
	seq           uint64
	authoritative bool
	started       time.Time
}

type pollResult struct {
	pollRequest
	snapshots []domain.Snapshot
	err       error
}

func (s *Scheduler) run(ctx context.Context, token Token) {
	defer close(s.done)
	defer close(s.updates)

	ticker := s.clock.NewTicker(s.conf.Interval)
	defer ticker.Stop()

	// capacity 1: the single in-flight fetch can always hand over its
	// result, even after the loop is gone
	results := make(chan pollResult, 1)

	var (
		seq         uint64
		inFlight    bool
		pending     bool
		pendingAuth bool
	)

	start := func(authoritative bool) {
		seq++
		inFlight = true

		req := pollRequest{token: token, seq: seq, authoritative: authoritative, started: s.clock.Now()}
		go s.fetch(ctx, req, results)
	}

	start(false)

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.Chan():
			if inFlight {
				s.metrics.observePoll(outcomeSkipped, 0)
				s.logger.V(2).Info("Tick while a poll is in flight, skipping", "seq", seq)

				continue
			}

			start(false)

		case <-s.wake:
			auth := s.wantAuth.Swap(false)
			if inFlight {
				pending = true
				pendingAuth = pendingAuth || auth

				continue
			}

			start(auth)

		case res := <-results:
			inFlight = false
			s.apply(res)

			if pending {
				auth := pendingAuth
				pending, pendingAuth = false, false
				start(auth)
			}
		}
	}
}

func (s *Scheduler) fetch(ctx context.Context, req pollRequest, out chan<- pollResult) {
	if s.conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.conf.Timeout)
		defer cancel()
	}

	snapshots, err := s.repo.ListServices(ctx)

	out <- pollResult{pollRequest: req, snapshots: snapshots, err: err}
}

// apply merges one poll result into the published state. It runs on the
// loop goroutine only.
func (s *Scheduler) apply(res pollResult) {
	elapsed := s.clock.Since(res.started)

	if !s.guard.Valid(res.token) {
		s.metrics.observePoll(outcomeStale, elapsed)
		s.logger.V(2).Info("Discarding stale poll result", "seq", res.seq)

		return
	}

	prev := s.state.Load()
	next := *prev
	next.Loading = false
	next.Seq = res.seq
	next.CheckedAt = s.clock.Now()

	if res.err != nil {
		s.metrics.observePoll(outcomeFailure, elapsed)
		s.logger.Error(res.err, "Poll failed, keeping previous services", "seq", res.seq, "services", len(prev.Services))

		next.Err = &FetchError{Seq: res.seq, Err: res.err}
		s.publish(&next, true)

		return
	}

	merged := reconcile.Merge(prev.ByID, res.snapshots, reconcile.Options{
		EmptyBatch:    s.conf.EmptyBatch,
		Authoritative: res.authoritative,
		Now:           next.CheckedAt,
	})

	s.metrics.observePoll(outcomeSuccess, elapsed)
	s.metrics.addMalformed(len(merged.Malformed))

	if err := merged.Err(); err != nil {
		s.logger.Error(err, "Skipped malformed services", "seq", res.seq, "count", len(merged.Malformed))
	}

	if merged.Retained && len(prev.Services) > 0 {
		s.logger.V(1).Info("No usable services in batch, keeping previous services", "seq", res.seq, "services", len(prev.Services))
	}

	next.Err = nil
	next.Malformed = merged.Err()

	sameOrder := merged.Retained || slices.Equal(merged.Order, ids(prev.Services))
	if !merged.Retained {
		next.ByID = merged.Services
		next.Services = make([]*domain.Service, 0, len(merged.Order))
		for _, id := range merged.Order {
			next.Services = append(next.Services, merged.Services[id])
		}
	}

	s.metrics.setServices(len(next.Services))

	changed := prev.Loading || prev.Err != nil || merged.Changed > 0 || !sameOrder ||
		(prev.Malformed == nil) != (next.Malformed == nil)
	if changed && !merged.Retained {
		s.logger.V(2).Info("Services merged", "seq", res.seq, "changed", merged.Changed, "removed", merged.Removed)
	}

	s.publish(&next, changed)
}

// publish stores st and, when notify is set, hands it to the subscriber,
// replacing any state it has not picked up yet.
func (s *Scheduler) publish(st *State, notify bool) {
	s.state.Store(st)

	if !notify {
		return
	}

	select {
	case s.updates <- st:
		return
	default:
	}

	select {
	case <-s.updates:
	default:
	}

	select {
	case s.updates <- st:
	default:
	}
}

func ids(services []*domain.Service) []string {
	out := make([]string, len(services))
	for i, svc := range services {
		out[i] = svc.ID
	}
	return out
}
