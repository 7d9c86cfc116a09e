// Package session holds the kiosk's per-page charging state machine. It publishes
// intent to the shared store and reconciles against whatever the store reports,
// leaving the decision to cut power to the charging controller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solarcharge/backend/services/kiosk-service/internal/duration"
	"solarcharge/backend/services/kiosk-service/internal/payment"
	"solarcharge/backend/services/kiosk-service/internal/store"
	"solarcharge/backend/services/kiosk-service/internal/view"
)

var (
	// ErrInvalidDuration is returned when the requested duration is not positive.
	ErrInvalidDuration = errors.New("invalid charging duration")
	// ErrWrongStage is returned for intents that do not apply to the current stage.
	ErrWrongStage = errors.New("action not available in current stage")
	// ErrWatchClosed is returned by Run when the store feed ends unexpectedly.
	ErrWatchClosed = errors.New("store watch closed")
)

// User-facing messages.
const (
	MsgInvalidDuration    = "Please select a valid charging duration"
	MsgCompletePayment    = "Please complete the payment"
	MsgPaymentCodeFailed  = "Could not create a payment code. Please try again."
	MsgPaymentConfirmed   = "Payment successful! You can start charging now."
	MsgStartFailed        = "Error starting charging. Please try again."
	MsgStopFailed         = "Error stopping charging. The station may still be delivering power."
	MsgCompletedByStation = "Charging completed by controller"
	MsgCompleted          = "Charging completed"
	MsgReady              = "Ready to charge"
	MsgWaitingForStation  = "Waiting for controller to complete charging..."
)

// Stage is the local display stage.
type Stage int

const (
	SelectingTime Stage = iota
	AwaitingPayment
	// ReadyToStart is the charging screen after payment, before the start write.
	ReadyToStart
	Charging
)

func (s Stage) String() string {
	switch s {
	case SelectingTime:
		return "selecting_time"
	case AwaitingPayment:
		return "awaiting_payment"
	case ReadyToStart:
		return "ready_to_start"
	case Charging:
		return "charging"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) view() view.Stage {
	switch s {
	case AwaitingPayment:
		return view.StageAwaitingPayment
	case ReadyToStart, Charging:
		return view.StageCharging
	default:
		return view.StageSelectingTime
	}
}

// Options are the controller's collaborators. Now and Scheduler default to the
// wall clock and a time.Ticker.
type Options struct {
	Store      store.Store
	Calculator *duration.Calculator
	Payments   payment.Generator
	View       view.Sink
	Logger     *zap.Logger
	Now        func() time.Time
	Scheduler  Scheduler
}

// Controller is the state of one kiosk page. All entry points serialize on mu, so
// snapshots, intents and ticks apply one at a time; store writes run outside it.
type Controller struct {
	mu sync.Mutex

	store    store.Store
	calc     *duration.Calculator
	payments payment.Generator
	view     view.Sink
	logger   *zap.Logger
	now      func() time.Time

	stage    Stage
	selected int
	// espControlled is set once a start write has been acknowledged; while set, a
	// charging=false snapshot means the controller ended the session.
	espControlled bool
	starting      bool
	idleRendered  bool

	countdown countdown
}

// New builds a controller in SelectingTime.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.Payments == nil {
		return nil, errors.New("session: payment generator is required")
	}
	if opts.View == nil {
		return nil, errors.New("session: view is required")
	}
	if opts.Calculator == nil {
		opts.Calculator = duration.NewCalculator(duration.Limits{}, 0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TickerScheduler{}
	}

	c := &Controller{
		store:    opts.Store,
		calc:     opts.Calculator,
		payments: opts.Payments,
		view:     opts.View,
		logger:   opts.Logger,
		now:      opts.Now,
		stage:    SelectingTime,
	}
	c.countdown.sched = opts.Scheduler
	return c, nil
}

// Stage returns the local stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// ESPControlled reports whether the controller currently owns the session.
func (c *Controller) ESPControlled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.espControlled
}

// SelectedDuration returns the duration chosen before payment, in seconds.
func (c *Controller) SelectedDuration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// RequestDuration takes the raw hour/minute/second fields, prices the session and
// moves to AwaitingPayment.
func (c *Controller) RequestDuration(hours, minutes, seconds string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != SelectingTime && c.stage != AwaitingPayment {
		return fmt.Errorf("%w: request duration in %s", ErrWrongStage, c.stage)
	}

	secs := c.calc.FromInput(hours, minutes, seconds)
	if secs <= 0 {
		c.view.SetStatusMessage(MsgInvalidDuration, view.SeverityError)
		return ErrInvalidDuration
	}

	amount := c.calc.ComputeAmount(secs)
	code, err := c.payments.Generate(amount)
	if err != nil {
		c.logger.Error("failed to generate payment code", zap.Int("amount", amount), zap.Error(err))
		c.view.SetStatusMessage(MsgPaymentCodeFailed, view.SeverityError)
		return err
	}

	c.selected = secs
	c.stage = AwaitingPayment
	c.view.ShowStage(c.stage.view())
	c.view.RenderPaymentCode(code, amount)
	c.view.SetStatusMessage(MsgCompletePayment, view.SeverityInfo)
	c.logger.Info("duration selected",
		zap.Int("seconds", secs),
		zap.Int("amount", amount),
		zap.Int("rate_per_hour", c.calc.RatePerHour()),
	)
	return nil
}

// ConfirmPayment accepts the payment as done; nothing is verified.
func (c *Controller) ConfirmPayment() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != AwaitingPayment {
		return fmt.Errorf("%w: confirm payment in %s", ErrWrongStage, c.stage)
	}

	c.stage = ReadyToStart
	c.view.ShowStage(c.stage.view())
	c.view.SetStartEnabled(true)
	c.view.SetStatusMessage(MsgPaymentConfirmed, view.SeveritySuccess)
	return nil
}

// StartCharging writes the start intent. The arbitration flag is only set after the
// store acknowledges the write, so a failed write leaves the page able to retry.
func (c *Controller) StartCharging(ctx context.Context) error {
	c.mu.Lock()
	if c.stage != ReadyToStart || c.starting || c.espControlled {
		stage := c.stage
		c.mu.Unlock()
		return fmt.Errorf("%w: start in %s", ErrWrongStage, stage)
	}
	c.starting = true
	selected := c.selected
	startTime := c.now().Unix()
	c.view.SetStartEnabled(false)
	c.mu.Unlock()

	err := c.store.Update(ctx, store.StartUpdate(startTime, int64(selected)))

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.logger.Error("failed to start charging", zap.Error(err))
		c.view.SetStartEnabled(true)
		c.view.SetStatusMessage(MsgStartFailed, view.SeverityError)
		c.mu.Unlock()
		if !errors.Is(err, store.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
		}
		return err
	}
	// A charging=false snapshot reconciled while the write was in flight already sent
	// us back to time selection; do not claim the session.
	if c.stage == ReadyToStart || c.stage == Charging {
		c.espControlled = true
		c.view.SetStartEnabled(false)
		c.view.SetStatusMessage("Charging started for "+duration.FormatDuration(selected), view.SeveritySuccess)
	}
	c.mu.Unlock()

	c.logger.Info("charging started", zap.Int64("start_time", startTime), zap.Int("duration", selected))
	if rec, err := c.store.Get(ctx); err != nil {
		c.logger.Warn("failed to read back record after start", zap.Error(err))
	} else {
		c.logger.Debug("record after start", zap.Any("record", rec))
	}
	return nil
}

// StopCharging is the manual override. The page resets even if the write fails.
func (c *Controller) StopCharging(ctx context.Context) error {
	c.mu.Lock()
	c.espControlled = false
	c.stopCountdownLocked()
	c.stage = SelectingTime
	c.idleRendered = true
	c.view.ShowStage(c.stage.view())
	c.view.SetStartEnabled(true)
	c.view.SetStatusMessage(MsgCompleted, view.SeveritySuccess)
	c.mu.Unlock()

	if err := c.store.Update(ctx, store.StopUpdate()); err != nil {
		c.logger.Error("failed to stop charging", zap.Error(err))
		c.mu.Lock()
		c.view.SetStatusMessage(MsgStopFailed, view.SeverityError)
		c.mu.Unlock()
		if !errors.Is(err, store.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", store.ErrStoreWrite, err)
		}
		return err
	}
	c.logger.Info("charging stopped by kiosk")
	return nil
}

// Reconcile applies one store snapshot. It is idempotent: the same snapshot applied
// twice yields at most repeats of the same display commands.
func (c *Controller) Reconcile(rec store.SessionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Checked before the generic branch: with no actor in the record, only the local
	// flag tells a controller stop apart from "nothing started yet".
	if c.espControlled && !rec.Charging {
		c.logger.Info("controller ended charging session")
		c.espControlled = false
		c.stopCountdownLocked()
		c.stage = SelectingTime
		c.idleRendered = true
		c.view.ShowStage(c.stage.view())
		c.view.SetStatusMessage(MsgCompletedByStation, view.SeveritySuccess)
		c.view.SetStartEnabled(true)
		return
	}

	if rec.Charging {
		c.stage = Charging
		c.idleRendered = false
		c.view.ShowStage(c.stage.view())
		c.view.SetStartEnabled(false)
		if deadline, ok := rec.Deadline(); ok {
			c.view.SetStatusMessage("Charging in progress for "+duration.FormatDuration(int(rec.Duration)), view.SeveritySuccess)
			c.startCountdownLocked(deadline)
		}
		return
	}

	c.stopCountdownLocked()
	switch c.stage {
	case AwaitingPayment:
		return
	case SelectingTime:
		if c.idleRendered {
			return
		}
	}
	c.stage = SelectingTime
	c.idleRendered = true
	c.view.ShowStage(c.stage.view())
	c.view.SetStatusMessage(MsgReady, view.SeverityInfo)
	c.view.SetStartEnabled(true)
}

// SetConnectivity forwards the store's connection state; it never changes stage.
func (c *Controller) SetConnectivity(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !connected {
		c.logger.Warn("store unreachable")
	}
	c.view.SetConnectivity(connected)
}

// Run applies store snapshots and connectivity changes in delivery order until ctx
// ends or the store feed closes.
func (c *Controller) Run(ctx context.Context) error {
	defer c.Close()

	snapshots, err := c.store.Watch(ctx)
	if err != nil {
		return fmt.Errorf("session: watch store: %w", err)
	}
	links := c.store.Connectivity(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-snapshots:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrWatchClosed
			}
			c.Reconcile(rec)
		case up, ok := <-links:
			if !ok {
				links = nil
				continue
			}
			c.SetConnectivity(up)
		}
	}
}

// Close stops the countdown ticker.
func (c *Controller) Close() {
	c.mu.Lock()
	c.countdown.cancel()
	c.mu.Unlock()
}
