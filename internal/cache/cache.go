package cache

import (
	"context"
	"time"

	"ledgerly/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that support expiry sweeps.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps registered caches on an interval.
type Manager struct {
	caches []namedCleaner
	logger *log.Logger
}

type namedCleaner struct {
	name string
	c    Cleaner
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds a cache to the sweep. Not safe to call once Run started.
func (m *Manager) Register(name string, cache Cleaner) {
	m.caches = append(m.caches, namedCleaner{name: name, c: cache})
}

// Sweep runs one cleanup pass over every registered cache.
func (m *Manager) Sweep() int {
	total := 0
	for _, nc := range m.caches {
		n := nc.c.CleanExpired()
		if n > 0 {
			m.logger.Debug("Evicted expired cache entries", "cache", nc.name, log.FieldCount, n)
		}
		total += n
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			return nil
		}
	}
}
