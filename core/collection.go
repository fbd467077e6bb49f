package core

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Collection is the last-fetched list of one REST resource, with loading and error flags.
// It is only mutated by the service that owns it.
type Collection[T any] struct {
	mu      sync.RWMutex
	idOf    func(T) int
	items   []T
	loaded  bool
	loading int
	lastErr string
}

func NewCollection[T any](idOf func(T) int) *Collection[T] {
	return &Collection[T]{idOf: idOf}
}

// Replace swaps the whole list (after a full fetch).
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(make([]T, 0, len(items)), items...)
	c.loaded = true
}

// Upsert merges item by id: replaces the existing entry or appends a new one.
func (c *Collection[T]) Upsert(items ...T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		id := c.idOf(item)
		if i := c.index(id); i >= 0 {
			c.items[i] = item
		} else {
			c.items = append(c.items, item)
		}
	}
}

func (c *Collection[T]) Remove(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

func (c *Collection[T]) Get(id int) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// All returns a copy of the list.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(make([]T, 0, len(c.items)), c.items...)
}

func (c *Collection[T]) Filter(keep func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Loaded reports whether a full fetch has completed at least once.
func (c *Collection[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// StartLoading flips the loading flag on; call the returned func when the request is done.
func (c *Collection[T]) StartLoading() (done func()) {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.loading--
			c.mu.Unlock()
		})
	}
}

func (c *Collection[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading > 0
}

func (c *Collection[T]) SetError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

// Error is the message of the last failed call, or "" after a successful one.
func (c *Collection[T]) Error() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Collection[T]) index(id int) int {
	if id == 0 {
		return -1
	}
	for i, item := range c.items {
		if c.idOf(item) == id {
			return i
		}
	}
	return -1
}

// Fail records a human readable message for err, logs it and returns it wrapped with op.
// Callers return its result as is: failures are never swallowed.
func (c *Collection[T]) Fail(logger Logger, op string, err error) error {
	c.SetError(op + ": " + Message(err))
	if logger != nil {
		logger.Error(op, err)
	}
	return errors.Wrap(err, op)
}

// Apply merges the outcome of a write (create or update) into the collection.
// When the backend answered with an empty body (ErrEmptyResponse), the whole list is refetched
// instead of guessing the new state, and the zero T is returned.
func (c *Collection[T]) Apply(
	ctx context.Context,
	logger Logger,
	op string,
	item T,
	err error,
	refetch func(context.Context) error,
) (T, error) {
	var zero T
	if err != nil {
		if errors.Cause(err) != ErrEmptyResponse || refetch == nil {
			return zero, c.Fail(logger, op, err)
		}
		if err := refetch(ctx); err != nil {
			return zero, errors.Wrap(err, op)
		}
		return zero, nil
	}
	c.SetError("")
	c.Upsert(item)
	return item, nil
}
