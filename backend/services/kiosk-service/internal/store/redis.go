package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldCharging      = "charging"
	fieldStartTime     = "startTime"
	fieldDuration      = "duration"
	fieldPaymentStatus = "paymentStatus"

	defaultPollInterval = 2 * time.Second
	notifyPayload       = "update"
)

// RedisOptions configures RedisStore.
type RedisOptions struct {
	// Key of the hash holding the record; DefaultKey when empty.
	Key string
	// PollInterval between connectivity pings.
	PollInterval time.Duration
}

// RedisStore keeps the record in a redis hash. Every write publishes a notification
// on "<key>:events" in the same transaction; watchers re-read the hash on each one.
type RedisStore struct {
	client       *redis.Client
	key          string
	channel      string
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRedisStore wraps an already connected client.
func NewRedisStore(client *redis.Client, opts RedisOptions, logger *zap.Logger) *RedisStore {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &RedisStore{
		client:       client,
		key:          opts.Key,
		channel:      opts.Key + ":events",
		pollInterval: opts.PollInterval,
		logger:       logger,
	}
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, u SessionUpdate) error {
	fields := encodeUpdate(u)
	if len(fields) == 0 {
		return nil
	}
	return s.write(ctx, fields)
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context) error {
	return s.write(ctx, map[string]interface{}{
		fieldCharging:      "false",
		fieldDuration:      0,
		fieldPaymentStatus: "false",
		fieldStartTime:     0,
	})
}

func (s *RedisStore) write(ctx context.Context, fields map[string]interface{}) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, fields)
		pipe.Publish(ctx, s.channel, notifyPayload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context) (SessionRecord, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return SessionRecord{}, fmt.Errorf("store: read %s: %w", s.key, err)
	}
	return s.decode(values), nil
}

// Watch implements Store.
func (s *RedisStore) Watch(ctx context.Context) (<-chan SessionRecord, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("store: subscribe %s: %w", s.channel, err)
	}

	initial, err := s.Get(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan SessionRecord, watcherBuffer)
	out <- initial

	go func() {
		defer close(out)
		defer pubsub.Close()

		// Subscriptions show up again after go-redis reconnects; re-read then too so
		// changes missed while disconnected are not lost.
		events := pubsub.ChannelWithSubscriptions()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					s.logger.Warn("store subscription closed", zap.String("channel", s.channel))
					return
				}
				switch ev.(type) {
				case *redis.Message, *redis.Subscription:
				default:
					continue
				}
				rec, err := s.Get(ctx)
				if err != nil {
					s.logger.Warn("failed to read record after notification", zap.Error(err))
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Connectivity implements Store by pinging redis on every poll interval.
func (s *RedisStore) Connectivity(ctx context.Context) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		known := false
		last := false
		for {
			connected := s.ping(ctx)
			if ctx.Err() != nil {
				return
			}
			if !known || connected != last {
				known, last = true, connected
				select {
				case out <- connected:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (s *RedisStore) ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, s.pollInterval)
	defer cancel()
	if err := s.client.Ping(pingCtx).Err(); err != nil {
		s.logger.Debug("store ping failed", zap.Error(err))
		return false
	}
	return true
}

func encodeUpdate(u SessionUpdate) map[string]interface{} {
	fields := make(map[string]interface{}, 4)
	if u.Charging != nil {
		fields[fieldCharging] = strconv.FormatBool(*u.Charging)
	}
	if u.StartTime != nil {
		fields[fieldStartTime] = *u.StartTime
	}
	if u.Duration != nil {
		fields[fieldDuration] = *u.Duration
	}
	if u.PaymentStatus != nil {
		fields[fieldPaymentStatus] = strconv.FormatBool(*u.PaymentStatus)
	}
	return fields
}

func (s *RedisStore) decode(values map[string]string) SessionRecord {
	var rec SessionRecord
	rec.Charging = s.parseBool(values, fieldCharging)
	rec.PaymentStatus = s.parseBool(values, fieldPaymentStatus)
	rec.StartTime = s.parseInt(values, fieldStartTime)
	rec.Duration = s.parseInt(values, fieldDuration)
	return rec
}

func (s *RedisStore) parseBool(values map[string]string, field string) bool {
	raw, ok := values[field]
	if !ok || raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn("unparsable record field", zap.String("field", field), zap.String("value", raw))
		return false
	}
	return v
}

func (s *RedisStore) parseInt(values map[string]string, field string) int64 {
	raw, ok := values[field]
	if !ok || raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("unparsable record field", zap.String("field", field), zap.String("value", raw))
		return 0
	}
	return v
}
