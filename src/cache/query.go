package cache

import (
	"log/slog"
	"strconv"
)

// Query returns the cached value for key if it is still fresh. Otherwise it
// runs producer through the coalescer and stores a successful result.
// Keys are scoped to the user so two users never share an entry.
//
// The in-flight key carries the partition generation: a read issued after
// an invalidation never joins a fetch that started before it.
func Query[T any](qc *QueryCache, co *Coalescer, userID, partition, key string, producer func() (T, error)) (T, error) {
	scoped := userID + "|" + key
	if v, ok := qc.Get(scoped); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	} else {
		qc.forget(userID, partition, scoped)
	}

	gen := qc.Generation(userID, partition)
	return Fetch(co, scoped+"#"+strconv.FormatUint(gen, 10), func() (T, error) {
		t, err := producer()
		if err != nil {
			return t, err
		}
		if !qc.SetIfCurrent(userID, partition, scoped, t, gen) {
			slog.Debug("Dropped result invalidated mid-fetch", "partition", partition, "key", key)
		}
		return t, nil
	})
}

// Notifier is told about every completed mutation, after the local cache
// has been invalidated.
type Notifier interface {
	Notify(userID string, tag MutationTag, keys []string)
}

// Invalidator applies the invalidation map for completed mutations.
type Invalidator struct {
	cache     *QueryCache
	notifiers []Notifier
}

func NewInvalidator(qc *QueryCache, notifiers ...Notifier) *Invalidator {
	return &Invalidator{cache: qc, notifiers: notifiers}
}

// Mutated invalidates every partition tag makes stale for the user and
// forwards the keys to the notifiers. It returns the keys.
func (i *Invalidator) Mutated(userID string, tag MutationTag) []string {
	keys := InvalidationKeys(tag)
	if len(keys) == 0 {
		slog.Warn("Mutation has no invalidation keys", "tag", tag)
		return keys
	}
	i.cache.Invalidate(userID, keys...)
	for _, n := range i.notifiers {
		n.Notify(userID, tag, keys)
	}
	return keys
}

// Tables invalidates the partitions behind changed tables, without a tag.
// An empty userID clears the partitions for all users.
func (i *Invalidator) Tables(userID string, tables ...string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, table := range tables {
		for _, k := range TablePartitions(table) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return []string{}
	}
	if userID == "" {
		// Rows without an owner, such as api_quotas, are shared by everyone.
		for _, k := range keys {
			i.cache.Clear(k)
		}
	} else {
		i.cache.Invalidate(userID, keys...)
	}
	for _, n := range i.notifiers {
		n.Notify(userID, "", keys)
	}
	return keys
}

// AddNotifier registers n; call before serving requests.
func (i *Invalidator) AddNotifier(n Notifier) {
	i.notifiers = append(i.notifiers, n)
}
