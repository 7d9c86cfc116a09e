package store

import (
	"context"
	"errors"
)

// DefaultKey is the record path the charging controller firmware watches.
const DefaultKey = "charging_station"

// ErrStoreWrite wraps any rejected or unreachable write.
var ErrStoreWrite = errors.New("store write failed")

// SessionRecord is the shared record written by the kiosk (to start) and by the
// charging controller (to stop).
type SessionRecord struct {
	Charging      bool  `json:"charging"`
	StartTime     int64 `json:"startTime"`
	Duration      int64 `json:"duration"`
	PaymentStatus bool  `json:"paymentStatus"`
}

// Deadline returns the end of the session in unix milliseconds and whether both
// startTime and duration are present.
func (r SessionRecord) Deadline() (int64, bool) {
	if r.StartTime == 0 || r.Duration == 0 {
		return 0, false
	}
	return r.StartTime*1000 + r.Duration*1000, true
}

// SessionUpdate is a merge-write; nil fields are left untouched.
type SessionUpdate struct {
	Charging      *bool
	StartTime     *int64
	Duration      *int64
	PaymentStatus *bool
}

// StartUpdate is the write issued when a paid session starts.
func StartUpdate(startTime, duration int64) SessionUpdate {
	return SessionUpdate{
		Charging:      Bool(true),
		StartTime:     Int64(startTime),
		Duration:      Int64(duration),
		PaymentStatus: Bool(true),
	}
}

// StopUpdate only clears the charging flag.
func StopUpdate() SessionUpdate {
	return SessionUpdate{Charging: Bool(false)}
}

// Apply merges u into r.
func (u SessionUpdate) Apply(r SessionRecord) SessionRecord {
	if u.Charging != nil {
		r.Charging = *u.Charging
	}
	if u.StartTime != nil {
		r.StartTime = *u.StartTime
	}
	if u.Duration != nil {
		r.Duration = *u.Duration
	}
	if u.PaymentStatus != nil {
		r.PaymentStatus = *u.PaymentStatus
	}
	return r
}

// Empty reports whether no field is set.
func (u SessionUpdate) Empty() bool {
	return u.Charging == nil && u.StartTime == nil && u.Duration == nil && u.PaymentStatus == nil
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Store is the shared session record plus its change feed and connectivity signal.
type Store interface {
	Update(ctx context.Context, u SessionUpdate) error
	Get(ctx context.Context) (SessionRecord, error)
	Reset(ctx context.Context) error
	// Watch emits the current record, then the full record after every change,
	// including the caller's own writes. The channel closes when ctx ends.
	Watch(ctx context.Context) (<-chan SessionRecord, error)
	// Connectivity emits the initial connection state and then every change.
	Connectivity(ctx context.Context) <-chan bool
}
