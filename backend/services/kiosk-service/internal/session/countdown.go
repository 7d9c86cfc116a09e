package session

import (
	"sync"
	"time"

	"solarcharge/backend/services/kiosk-service/internal/duration"
	"solarcharge/backend/services/kiosk-service/internal/view"
)

const tickInterval = time.Second

// Scheduler runs fn every d until the returned stop func is called. stop must not
// wait for a running fn to return.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
}

// TickerScheduler is the time.Ticker backed Scheduler.
type TickerScheduler struct{}

// Every implements Scheduler.
func (TickerScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// countdown tracks the single live ticker. gen invalidates ticks that were already
// queued when the ticker was replaced.
type countdown struct {
	sched    Scheduler
	stop     func()
	gen      uint64
	deadline int64
	live     bool
	visible  bool
}

func (cd *countdown) cancel() {
	if cd.stop != nil {
		cd.stop()
		cd.stop = nil
	}
	cd.live = false
}

// startCountdownLocked points the countdown at a deadline in unix milliseconds.
// An identical deadline with a live ticker is left alone.
func (c *Controller) startCountdownLocked(deadline int64) {
	cd := &c.countdown
	if cd.live && cd.deadline == deadline {
		return
	}
	cd.cancel()
	cd.deadline = deadline
	cd.gen++

	if !cd.visible {
		cd.visible = true
		c.view.SetCountdownVisible(true)
	}

	remaining := c.remainingLocked()
	c.view.SetCountdownText(duration.FormatDuration(remaining))
	if remaining <= 0 {
		c.view.SetStatusMessage(MsgWaitingForStation, view.SeverityInfo)
		return
	}

	gen := cd.gen
	cd.stop = cd.sched.Every(tickInterval, func() { c.tick(gen) })
	cd.live = true
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cd := &c.countdown
	if !cd.live || cd.gen != gen {
		return
	}

	remaining := c.remainingLocked()
	if remaining > 0 {
		c.view.SetCountdownText(duration.FormatDuration(remaining))
		return
	}

	// Zero only stops the ticker. Ending the session is the controller's call; the
	// page waits for its charging=false write.
	c.view.SetCountdownText(duration.FormatDuration(0))
	c.view.SetStatusMessage(MsgWaitingForStation, view.SeverityInfo)
	cd.cancel()
}

func (c *Controller) stopCountdownLocked() {
	cd := &c.countdown
	cd.cancel()
	cd.deadline = 0
	if cd.visible {
		cd.visible = false
		c.view.SetCountdownVisible(false)
	}
}

func (c *Controller) remainingLocked() int {
	left := c.countdown.deadline - c.now().UnixMilli()
	if left <= 0 {
		return 0
	}
	return int(left / 1000)
}
