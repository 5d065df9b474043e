package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

// ErrSuperseded is returned by Load when a later Load (or a push event) for
// the same status landed first. The cache keeps the newer content.
var ErrSuperseded = errors.New("orders: load superseded by a newer request")

// Fetcher lists the backend's current orders for one status.
type Fetcher interface {
	ListOrders(ctx context.Context, status Status) ([]Order, error)
}

// Cache holds the last fetched orders per status. The backend is the source
// of truth: a load replaces its bucket wholesale.
type Cache struct {
	mu       sync.Mutex
	fetcher  Fetcher
	buckets  map[Status][]Order
	gen      map[Status]uint64
	loadedAt map[Status]time.Time
	onChange func(Status)
}

func NewCache(f Fetcher) *Cache {
	return &Cache{
		fetcher:  f,
		buckets:  make(map[Status][]Order),
		gen:      make(map[Status]uint64),
		loadedAt: make(map[Status]time.Time),
	}
}

// OnChange registers a callback run after a bucket changes, outside the lock.
func (c *Cache) OnChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Load fetches one status and replaces its bucket. Only the most recently
// issued load for a status may apply its response; an older response that
// arrives late is discarded with ErrSuperseded.
func (c *Cache) Load(ctx context.Context, status Status) ([]Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("orders: load: invalid status %q", status)
	}

	c.mu.Lock()
	c.gen[status]++
	gen := c.gen[status]
	c.mu.Unlock()

	list, err := c.fetcher.ListOrders(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("orders: load %s: %w", status, err)
	}

	bucket := make([]Order, 0, len(list))
	for _, o := range list {
		if o.ID == "" {
			logger.WithField("status", status).Debug("dropping order without id")
			continue
		}
		o.Status = status
		bucket = append(bucket, o)
	}

	c.mu.Lock()
	if c.gen[status] != gen {
		c.mu.Unlock()
		logger.WithFields(logger.Fields{"status": status, "gen": gen}).Debug("discarding superseded order load")
		return nil, ErrSuperseded
	}
	c.buckets[status] = bucket
	c.loadedAt[status] = time.Now()
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(status)
	}
	return copyOrders(bucket), nil
}

// Orders returns a copy of one bucket.
func (c *Cache) Orders(status Status) []Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyOrders(c.buckets[status])
}

// Get finds an order in any bucket.
func (c *Cache) Get(id string) (Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range Statuses {
		if i := indexOf(c.buckets[st], id); i >= 0 {
			return c.buckets[st][i], true
		}
	}
	return Order{}, false
}

// LoadedAt is the time the bucket was last replaced by a load.
func (c *Cache) LoadedAt(status Status) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt[status]
}

// Clear drops all buckets and invalidates in-flight loads.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range Statuses {
		c.gen[st]++
		delete(c.buckets, st)
		delete(c.loadedAt, st)
	}
}

func copyOrders(in []Order) []Order {
	if in == nil {
		return nil
	}
	out := make([]Order, len(in))
	copy(out, in)
	return out
}

func indexOf(list []Order, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
