package schema

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"db-upsert/internal/conn"
	"db-upsert/internal/errs"
	"db-upsert/internal/logger"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes table definitions per (connection identity, table, detail level).
//
// Concurrent first requests for the same key share one catalog round trip; unrelated
// keys never wait on each other. Load failures are cached and returned verbatim until
// a forced reload replaces them. Tables the catalog does not know are not cached.
type Cache struct {
	loader *Loader
	log    *slog.Logger

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group

	loads atomic.Int64
}

type cacheEntry struct {
	def *TableDefinition
	err error
}

func NewCache(loader *Loader, log *slog.Logger) *Cache {
	return &Cache{
		loader:  loader,
		log:     logger.OrDefault(log),
		entries: make(map[string]*cacheEntry),
	}
}

func cacheKey(connID string, name TableName, level DetailLevel) string {
	return connID + "|" + name.Key() + "|" + level.String()
}

// Get returns the definition of name, loading it through c on a miss or when
// forceReload is set. A nil definition with a nil error means the table does not exist.
func (s *Cache) Get(ctx context.Context, c conn.Connection, name TableName, level DetailLevel, forceReload bool) (*TableDefinition, error) {
	key := cacheKey(c.UniqueIdentifier(), name, level)

	if forceReload {
		s.group.Forget(key)
	} else if e, ok := s.lookup(key); ok {
		return e.def, e.err
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		if !forceReload {
			// another flight may have finished between lookup and Do
			if e, ok := s.lookup(key); ok {
				return e, nil
			}
		}
		return s.load(ctx, c, key, name, level), nil
	})
	e := v.(*cacheEntry)
	return e.def, e.err
}

func (s *Cache) load(ctx context.Context, c conn.Connection, key string, name TableName, level DetailLevel) *cacheEntry {
	s.loads.Add(1)
	def, err := s.loader.Load(ctx, c, name, level)
	if err != nil {
		err = errs.Connection(err, "failed to load schema for "+name.FullName())
	}
	e := &cacheEntry{def: def, err: err}

	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		// the caller gave up; nothing is wrong with the connection itself
	case def == nil && err == nil:
		s.log.Info("table not found in catalog", "table", name.FullName())
	default:
		s.mu.Lock()
		s.entries[key] = e
		s.mu.Unlock()
		if err != nil {
			s.log.Warn("schema load failed", "table", name.FullName(), "level", level.String(), "error", err)
		} else {
			s.log.Info("schema loaded", "table", def.Name.FullName(), "level", level.String(),
				"columns", len(def.Columns))
		}
	}
	return e
}

func (s *Cache) lookup(key string) (*cacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Invalidate drops a single key.
func (s *Cache) Invalidate(connID string, name TableName, level DetailLevel) {
	key := cacheKey(connID, name, level)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	s.group.Forget(key)
}

// Clear drops every cached definition.
func (s *Cache) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*cacheEntry)
	s.mu.Unlock()
}

// Loads returns the number of catalog loads performed so far.
func (s *Cache) Loads() int64 {
	return s.loads.Load()
}
