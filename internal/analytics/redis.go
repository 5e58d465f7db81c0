// Package analytics keeps hourly per-user outcome counters in Redis so
// caregivers can spot a user whose check-ins start failing or degrading.
// The counters are advisory; losing them never affects the pipeline.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisSink increments hourly outcome counters with a bounded lifetime.
type RedisSink struct {
	client    *redis.Client
	retention time.Duration
	clock     func() time.Time
	log       zerolog.Logger
}

func NewRedisSink(client *redis.Client, retention time.Duration, log zerolog.Logger) *RedisSink {
	return &RedisSink{
		client:    client,
		retention: retention,
		clock:     time.Now,
		log:       log,
	}
}

// WithClock overrides the bucket clock. Test hook.
func (s *RedisSink) WithClock(clock func() time.Time) *RedisSink {
	s.clock = clock
	return s
}

// Key returns the counter key for a user, outcome and hour bucket.
func Key(elderlyID, outcome string, bucket time.Time) string {
	return fmt.Sprintf("checkin:%s:%s:%s", elderlyID, outcome, bucket.UTC().Format("2006010215"))
}

// RecordOutcome bumps the user's counter for the current hour and refreshes
// its expiry. Both commands ride one round trip.
func (s *RedisSink) RecordOutcome(ctx context.Context, elderlyID, outcome string) error {
	key := Key(elderlyID, outcome, s.clock())

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording outcome counter: %w", err)
	}
	return nil
}

// OutcomeCounts returns a user's counters for the trailing window, newest
// bucket first. Missing buckets read as zero.
func (s *RedisSink) OutcomeCounts(ctx context.Context, elderlyID, outcome string, hours int) ([]int64, error) {
	now := s.clock()
	keys := make([]string, hours)
	for i := 0; i < hours; i++ {
		keys[i] = Key(elderlyID, outcome, now.Add(-time.Duration(i)*time.Hour))
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading outcome counters: %w", err)
	}

	counts := make([]int64, hours)
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			s.log.Warn().Str("key", keys[i]).Msg("unexpected counter type")
			continue
		}
		var n int64
		if _, err := fmt.Sscanf(str, "%d", &n); err != nil {
			s.log.Warn().Str("key", keys[i]).Str("value", str).Msg("unparseable counter")
			continue
		}
		counts[i] = n
	}
	return counts, nil
}
