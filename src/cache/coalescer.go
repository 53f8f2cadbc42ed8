package cache

import (
	"log/slog"

	"finpilot-server/src/metrics"

	"golang.org/x/sync/singleflight"
)

// Coalescer merges concurrent fetches for the same key into one call.
// The in-flight entry is dropped as soon as the call returns, so failures
// are never cached and the next fetch always runs a fresh producer.
type Coalescer struct {
	group singleflight.Group
}

func NewCoalescer() *Coalescer {
	return &Coalescer{}
}

// Do runs producer for key unless a call for key is already in flight, in
// which case it waits for and returns that call's result. shared reports
// whether the result was delivered to more than one caller.
func (c *Coalescer) Do(key string, producer func() (any, error)) (v any, err error, shared bool) {
	executed := false
	v, err, shared = c.group.Do(key, func() (any, error) {
		executed = true
		return producer()
	})
	if executed {
		metrics.CoalescerCalls.WithLabelValues("exec").Inc()
	} else {
		metrics.CoalescerCalls.WithLabelValues("shared").Inc()
		slog.Debug("Coalesced in-flight fetch", "key", key)
	}
	return v, err, shared
}

// Fetch is the typed form of Do.
func Fetch[T any](c *Coalescer, key string, producer func() (T, error)) (T, error) {
	v, err, _ := c.Do(key, func() (any, error) {
		return producer()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}
