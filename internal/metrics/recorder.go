// Package metrics records per-check counters in Redis for dashboards.
// Recording is fire-and-forget: a Redis outage costs metrics, never a run.
package metrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Recorder increments per-day check counters and stores the latest latency
type Recorder struct {
	rdb *redis.Client
}

// NewRecorder creates a recorder on an existing Redis client
func NewRecorder(rdb *redis.Client) *Recorder {
	return &Recorder{rdb: rdb}
}

// Connect opens a Redis client for the given address. An empty address
// returns nil, which disables metrics recording entirely.
func Connect(addr, password string) *Recorder {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return NewRecorder(rdb)
}

// RecordResult increments the day's counters for a check and stores the
// observed latency. Errors are logged and swallowed.
func (r *Recorder) RecordResult(checkID uint, success bool, latencyMS int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dateKey := time.Now().UTC().Format("2006-01-02")
	metricsKey := fmt.Sprintf("check:%d:metrics:%s", checkID, dateKey)

	if err := r.rdb.HIncrBy(ctx, metricsKey, "total", 1).Err(); err != nil {
		log.Printf("Failed to increment total for check %d: %v", checkID, err)
		return
	}

	outcome := "failure"
	if success {
		outcome = "success"
	}
	if err := r.rdb.HIncrBy(ctx, metricsKey, outcome, 1).Err(); err != nil {
		log.Printf("Failed to increment %s for check %d: %v", outcome, checkID, err)
	}

	if err := r.rdb.HSet(ctx, metricsKey, "last_latency_ms", latencyMS).Err(); err != nil {
		log.Printf("Failed to store latency for check %d: %v", checkID, err)
	}
}
