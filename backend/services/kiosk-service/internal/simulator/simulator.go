// Package simulator stands in for the charging controller firmware: it powers the
// relay while charging=true and writes charging=false once startTime+duration passes.
package simulator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"solarcharge/backend/services/kiosk-service/internal/store"
)

// Options configure the simulator.
type Options struct {
	Now func() time.Time
	// OnRelay is told whenever power delivery switches.
	OnRelay func(on bool)
}

// Simulator honours the controller side of the store contract.
type Simulator struct {
	store   store.Store
	logger  *zap.Logger
	now     func() time.Time
	onRelay func(bool)

	mu       sync.Mutex
	timer    *time.Timer
	deadline int64
	relayOn  bool
}

// New returns a simulator bound to st.
func New(st store.Store, logger *zap.Logger, opts Options) *Simulator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Simulator{
		store:   st,
		logger:  logger,
		now:     opts.Now,
		onRelay: opts.OnRelay,
	}
}

// Run follows the store until ctx ends.
func (s *Simulator) Run(ctx context.Context) error {
	snapshots, err := s.store.Watch(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("controller simulator started")
	defer s.disarm()

	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-snapshots:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("simulator: store watch closed")
			}
			s.observe(ctx, rec)
		}
	}
}

func (s *Simulator) observe(ctx context.Context, rec store.SessionRecord) {
	if !rec.Charging {
		s.disarm()
		return
	}

	deadline, ok := rec.Deadline()
	if !ok {
		s.logger.Warn("charging requested without start time or duration; ignoring")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil && s.deadline == deadline {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.setRelayLocked(true)

	wait := time.Duration(deadline-s.now().UnixMilli()) * time.Millisecond
	if wait < 0 {
		wait = 0
	}
	s.deadline = deadline
	s.timer = time.AfterFunc(wait, func() { s.expire(ctx, deadline) })
	s.logger.Info("session armed", zap.Int64("deadline_ms", deadline), zap.Duration("remaining", wait))
}

func (s *Simulator) expire(ctx context.Context, deadline int64) {
	s.mu.Lock()
	if s.deadline != deadline || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.deadline = 0
	s.setRelayLocked(false)
	s.mu.Unlock()

	if err := s.store.Update(ctx, store.StopUpdate()); err != nil {
		s.logger.Error("failed to end session", zap.Error(err))
		return
	}
	s.logger.Info("session completed")
}

func (s *Simulator) disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.logger.Info("session ended externally")
	}
	s.deadline = 0
	s.setRelayLocked(false)
}

func (s *Simulator) setRelayLocked(on bool) {
	if s.relayOn == on {
		return
	}
	s.relayOn = on
	if s.onRelay != nil {
		s.onRelay(on)
	}
}
