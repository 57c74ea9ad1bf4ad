package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/tracker"
)

// ErrTargetNotFound is returned by StartMonitoring/CheckNow when the id does
// not resolve through the target registry.
var ErrTargetNotFound = errors.New("target not found")

// Status is the read-only view over the supervisor for the API layer.
type Status struct {
	Running       bool                    `json:"running"`
	ActiveTargets []domain.TargetID       `json:"active_targets"`
	FailureCounts map[domain.TargetID]int `json:"failure_counts"`
}

type TargetStatus struct {
	TargetID            domain.TargetID `json:"target_id"`
	Monitored           bool            `json:"monitored"`
	State               string          `json:"state"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
}

// Supervisor owns one cancellable loop per monitored target. The maps are
// instance state so several supervisors can coexist in tests; the mutex
// guards structural mutation only, never the body of a check round.
type Supervisor struct {
	logger  *zap.Logger
	targets repo.TargetStore
	results repo.ResultStore
	sink    EventSink
	runner  Runner

	defaultInterval time.Duration

	mu      sync.Mutex
	running bool
	loops   map[domain.TargetID]*loopHandle
}

// loopHandle tracks one running per-target loop. roundMu serializes rounds
// for this target (the loop itself is sequential; the lock exists so a
// manual CheckNow cannot interleave with a scheduled round). interval and
// deepEnabled are pinned when the loop starts; edits to those two settings
// only apply after a restart, everything else is re-read each round.
type loopHandle struct {
	cancel      context.CancelFunc
	done        chan struct{}
	entry       *tracker.Entry
	roundMu     sync.Mutex
	interval    time.Duration
	deepEnabled bool
}

func New(
	logger *zap.Logger,
	targets repo.TargetStore,
	results repo.ResultStore,
	sink EventSink,
	runner Runner,
	defaultInterval time.Duration,
) *Supervisor {
	if defaultInterval <= 0 {
		defaultInterval = 60 * time.Second
	}
	return &Supervisor{
		logger:          logger,
		targets:         targets,
		results:         results,
		sink:            sink,
		runner:          runner,
		defaultInterval: defaultInterval,
		loops:           make(map[domain.TargetID]*loopHandle),
	}
}

// Start brings up a loop for every currently active target. Targets that
// already have a loop are left untouched.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	ts, err := s.targets.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active targets: %w", err)
	}
	for _, t := range ts {
		s.mu.Lock()
		_, exists := s.loops[t.ID]
		s.mu.Unlock()
		if exists {
			continue
		}
		if err := s.StartMonitoring(ctx, t.ID); err != nil {
			s.logger.Warn("start_monitoring_error",
				zap.String("target_id", string(t.ID)),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("supervisor_started", zap.Int("targets", len(ts)))
	return nil
}

// Stop cancels every loop and waits for clean exit, bounded by ctx. It also
// releases resources held by the runner (the deep probe, in practice).
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	handles := s.loops
	s.loops = make(map[domain.TargetID]*loopHandle)
	s.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	for id, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			s.logger.Warn("loop_stop_timeout", zap.String("target_id", string(id)))
			return ctx.Err()
		}
	}
	if c, ok := s.runner.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("runner_close_error", zap.Error(err))
		}
	}
	s.logger.Info("supervisor_stopped")
	return nil
}

// StartMonitoring creates a loop for the target using a fresh settings
// snapshot. An existing loop is stopped first, which deliberately resets the
// target's failure state to healthy (stop-then-start contract).
func (s *Supervisor) StartMonitoring(ctx context.Context, id domain.TargetID) error {
	t, err := s.targets.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrTargetNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve target: %w", err)
	}

	s.StopMonitoring(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loops[id]; ok {
		// lost a race against a concurrent starter; exactly one loop stands
		return nil
	}
	interval := t.CheckInterval
	if interval <= 0 {
		interval = s.defaultInterval
	}
	lctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{
		cancel:      cancel,
		done:        make(chan struct{}),
		entry:       tracker.NewEntry(),
		interval:    interval,
		deepEnabled: t.DeepCheckEnabled,
	}
	s.loops[id] = h
	go s.loop(lctx, h, id)
	s.logger.Info("monitoring_started",
		zap.String("target_id", string(id)),
		zap.String("url", t.URL),
		zap.Duration("interval", interval),
	)
	return nil
}

// StopMonitoring cancels and removes the target's loop and discards its
// failure state. No-op when no loop exists.
func (s *Supervisor) StopMonitoring(id domain.TargetID) {
	s.mu.Lock()
	h := s.loops[id]
	delete(s.loops, id)
	s.mu.Unlock()
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
	s.logger.Info("monitoring_stopped", zap.String("target_id", string(id)))
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:       s.running,
		ActiveTargets: make([]domain.TargetID, 0, len(s.loops)),
		FailureCounts: make(map[domain.TargetID]int, len(s.loops)),
	}
	for id, h := range s.loops {
		st.ActiveTargets = append(st.ActiveTargets, id)
		_, n := h.entry.Snapshot()
		st.FailureCounts[id] = n
	}
	sort.Slice(st.ActiveTargets, func(i, j int) bool {
		return st.ActiveTargets[i] < st.ActiveTargets[j]
	})
	return st
}

func (s *Supervisor) TargetStatus(id domain.TargetID) TargetStatus {
	s.mu.Lock()
	h := s.loops[id]
	s.mu.Unlock()
	if h == nil {
		return TargetStatus{TargetID: id, Monitored: false, State: tracker.Healthy.String()}
	}
	state, n := h.entry.Snapshot()
	return TargetStatus{
		TargetID:            id,
		Monitored:           true,
		State:               state.String(),
		ConsecutiveFailures: n,
	}
}

// CheckNow runs one synchronous round outside the schedule. When the target
// is being monitored, the manual round shares (and advances) the loop's
// failure state; otherwise it runs against a throwaway entry so nothing
// leaks into a later StartMonitoring.
func (s *Supervisor) CheckNow(ctx context.Context, id domain.TargetID) (domain.CheckOutcome, error) {
	t, err := s.targets.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.CheckOutcome{}, ErrTargetNotFound
	}
	if err != nil {
		return domain.CheckOutcome{}, fmt.Errorf("resolve target: %w", err)
	}

	s.mu.Lock()
	h := s.loops[id]
	s.mu.Unlock()

	if h != nil {
		h.roundMu.Lock()
		defer h.roundMu.Unlock()
		t.DeepCheckEnabled = h.deepEnabled
		return s.executeRound(ctx, t, h.entry)
	}
	return s.executeRound(ctx, t, tracker.NewEntry())
}

// loop runs rounds for one target until cancelled. It never terminates
// itself: an exited loop is a silent monitoring gap, so every non-cancel
// failure becomes "skip this round, wait one interval".
func (s *Supervisor) loop(ctx context.Context, h *loopHandle, id domain.TargetID) {
	defer close(h.done)
	log := s.logger.With(zap.String("target_id", string(id)))
	log.Info("loop_started")

	timer := time.NewTimer(0) // immediate first round
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("loop_stopped")
			return
		case <-timer.C:
		}
		interval := s.round(ctx, h, id)
		if ctx.Err() != nil {
			log.Info("loop_stopped")
			return
		}
		timer.Reset(interval)
	}
}

// round executes one scheduled round and returns how long to sleep before
// the next one.
func (s *Supervisor) round(ctx context.Context, h *loopHandle, id domain.TargetID) time.Duration {
	h.roundMu.Lock()
	defer h.roundMu.Unlock()

	t, err := s.targets.Get(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("round_snapshot_error",
				zap.String("target_id", string(id)),
				zap.Error(err),
			)
		}
		return h.interval
	}

	// Interval and deep-check are pinned for the lifetime of the loop;
	// editing them takes effect on the next start_monitoring.
	t.CheckInterval = h.interval
	t.DeepCheckEnabled = h.deepEnabled

	out, err := s.executeRound(ctx, t, h.entry)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("round_error",
				zap.String("target_id", string(id)),
				zap.String("url", t.URL),
				zap.Error(err),
			)
		}
	} else {
		s.logger.Debug("round_checked",
			zap.String("target_id", string(id)),
			zap.String("url", t.URL),
			zap.Bool("available", out.Available),
			zap.Float64("latency_ms", out.LatencyMS),
			zap.String("reason", out.Reason),
		)
	}

	return h.interval
}

// executeRound is the shared body of scheduled and manual rounds: probe,
// feed the tracker, publish any episode event, persist the outcome. After a
// cancellation nothing is persisted — an outcome is recorded fully or not
// at all.
func (s *Supervisor) executeRound(ctx context.Context, t *domain.Target, entry *tracker.Entry) (domain.CheckOutcome, error) {
	out := s.runner.Run(ctx, t)
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if ev := entry.Observe(out, t.AlertThreshold); ev != nil {
		if err := s.sink.Publish(ctx, *ev, t.URL); err != nil {
			// round abandoned; the loop retries after one interval
			return out, err
		}
	}
	if err := s.results.Append(ctx, &out); err != nil {
		return out, fmt.Errorf("persist outcome: %w", err)
	}
	return out, nil
}
