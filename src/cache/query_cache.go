package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finpilot-server/src/metrics"

	"github.com/dgraph-io/ristretto/v2"
)

// QueryCache stores read results per user and partition so that a partition
// can be dropped in one call. Stored keys are tracked beside the ristretto
// store because ristretto cannot enumerate its contents.
type QueryCache struct {
	store     *ristretto.Cache[string, *entry]
	staleTime time.Duration

	mu sync.Mutex
	// partition -> user -> stored keys
	keys map[string]map[string]map[string]struct{}
	// partition|user -> bumped on every invalidation
	generations map[string]uint64
	// partition -> bumped on every Clear, which reaches users with no keys
	clears map[string]uint64

	// Entries ristretto dropped on its own (expiry, eviction, rejection).
	// Its callbacks run on its processing goroutine, which put waits on
	// while holding mu, so they only queue here; prune unregisters them.
	droppedMu sync.Mutex
	dropped   []*entry
}

// entry remembers where a value is registered so a drop can unregister it.
type entry struct {
	userID    string
	partition string
	key       string
	value     any
}

func NewQueryCache(staleTime time.Duration) (*QueryCache, error) {
	c := &QueryCache{
		staleTime:   staleTime,
		keys:        make(map[string]map[string]map[string]struct{}),
		generations: make(map[string]uint64),
		clears:      make(map[string]uint64),
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, *entry]{
		NumCounters:        100000, // number of keys to track frequency of
		MaxCost:            10000,  // entries; every entry costs 1
		BufferItems:        64,     // number of keys per Get buffer
		IgnoreInternalCost: true,
		OnEvict:            c.onDrop,
		OnReject:           c.onDrop,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize query cache: %w", err)
	}
	c.store = store
	return c, nil
}

func (c *QueryCache) StaleTime() time.Duration {
	return c.staleTime
}

func (c *QueryCache) Get(key string) (any, bool) {
	e, ok := c.store.Get(key)
	if !ok || e == nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set stores value under key and registers it in the user's partition.
func (c *QueryCache) Set(userID, partition, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.register(userID, partition, key)
	c.put(&entry{userID: userID, partition: partition, key: key, value: value})
}

// Generation returns a token that changes whenever the user's partition is
// invalidated. Pair it with SetIfCurrent to avoid storing a result that was
// produced before an invalidation landed.
func (c *QueryCache) Generation(userID, partition string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(userID, partition)
}

// Both counters only grow, so their sum changes whenever either does.
func (c *QueryCache) generation(userID, partition string) uint64 {
	return c.generations[partition+"|"+userID] + c.clears[partition]
}

// SetIfCurrent stores value only if the partition has not been invalidated
// since gen was read. It reports whether the value was stored.
func (c *QueryCache) SetIfCurrent(userID, partition, key string, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(userID, partition) != gen {
		return false
	}
	c.register(userID, partition, key)
	c.put(&entry{userID: userID, partition: partition, key: key, value: value})
	return true
}

// Invalidate drops every key the user has stored under the given partitions
// and returns how many keys were dropped.
func (c *QueryCache) Invalidate(userID string, partitions ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for _, partition := range partitions {
		c.generations[partition+"|"+userID]++
		users, ok := c.keys[partition]
		if !ok {
			continue
		}
		for key := range users[userID] {
			c.store.Del(key)
		}
		metrics.CacheInvalidations.WithLabelValues(partition).Add(float64(len(users[userID])))
		dropped += len(users[userID])
		delete(users, userID)
	}
	if dropped > 0 {
		slog.Debug("Invalidated query cache", "user_id", userID, "partitions", partitions, "keys", dropped)
	}
	return dropped
}

// Clear drops a partition for every user.
func (c *QueryCache) Clear(partition string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clears[partition]++
	dropped := 0
	for _, keys := range c.keys[partition] {
		for key := range keys {
			c.store.Del(key)
			dropped++
		}
	}
	delete(c.keys, partition)
	metrics.CacheInvalidations.WithLabelValues(partition).Add(float64(dropped))
	return dropped
}

func (c *QueryCache) Close() {
	c.store.Close()
}

// forget unregisters key after a lookup missed, unless a value was
// stored again in the meantime.
func (c *QueryCache) forget(userID, partition, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	if _, ok := c.store.Get(key); !ok {
		c.unregister(userID, partition, key)
	}
}

func (c *QueryCache) onDrop(item *ristretto.Item[*entry]) {
	if item == nil || item.Value == nil {
		return
	}
	c.droppedMu.Lock()
	c.dropped = append(c.dropped, item.Value)
	c.droppedMu.Unlock()
}

// register, unregister, prune and put must be called with mu held.
func (c *QueryCache) register(userID, partition, key string) {
	c.prune()
	users, ok := c.keys[partition]
	if !ok {
		users = make(map[string]map[string]struct{})
		c.keys[partition] = users
	}
	if users[userID] == nil {
		users[userID] = make(map[string]struct{})
	}
	users[userID][key] = struct{}{}
}

func (c *QueryCache) unregister(userID, partition, key string) {
	users := c.keys[partition]
	if users == nil {
		return
	}
	delete(users[userID], key)
	if len(users[userID]) == 0 {
		delete(users, userID)
	}
	if len(users) == 0 {
		delete(c.keys, partition)
	}
}

// prune unregisters entries ristretto dropped, skipping keys that hold a
// newer value.
func (c *QueryCache) prune() {
	c.droppedMu.Lock()
	dropped := c.dropped
	c.dropped = nil
	c.droppedMu.Unlock()

	for _, e := range dropped {
		if cur, ok := c.store.Get(e.key); ok && cur != e {
			continue
		}
		c.unregister(e.userID, e.partition, e.key)
	}
}

func (c *QueryCache) put(e *entry) {
	c.store.SetWithTTL(e.key, e, 1, c.staleTime)
	// Sets are buffered; wait so the next Get observes the write.
	c.store.Wait()
}
