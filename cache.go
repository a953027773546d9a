package fluent

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface for caching query results.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies the result of a statement run on a connection.
type CacheKey struct {
	Profile ID
	Query   string
	Args    []any
}

// String returns the string representation of the cache key. Keys of one
// profile share the "profile:database|" prefix.
func (k CacheKey) String() string {
	return string(k.Profile) + "|" + collapseSpace(k.Query) + "|" + fmt.Sprintf("%#v", k.Args)
}

// cachedResult is the msgpack encoding of a buffered result.
type cachedResult struct {
	Columns []string `msgpack:"c"`
	Rows    []Row    `msgpack:"r"`
}

func encodeResult(columns []string, rows []Row) ([]byte, error) {
	return msgpack.Marshal(cachedResult{Columns: columns, Rows: rows})
}

func decodeResult(data []byte) (cachedResult, error) {
	var r cachedResult
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	// Integers decode as int64 and float64 like the database drivers return them.
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&r); err != nil {
		return cachedResult{}, err
	}
	return r, nil
}

// ReadCached is ReadAll backed by the session cache. Results are cached per
// profile, statement and arguments. Inside a transaction or without a cache it
// behaves like ReadAll. A hit leaves the cached rows as the session result.
// Insert, Update and Delete drop the entries of their profile; statements run
// directly with ExecutePrepared or ExecuteStatic need an explicit Invalidate.
func (s *Session) ReadCached(ctx context.Context, query string, params ...any) ([]Row, error) {
	if s.cache == nil || s.tx != nil {
		return s.ReadAll(ctx, query, params...)
	}
	s.reset()
	if _, err := s.ensure(ctx, execConfig{}); err != nil {
		return nil, err
	}
	key := CacheKey{Profile: s.id, Query: query, Args: params}.String()
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache get", "key", key, "error", err)
	}
	if data != nil {
		r, err := decodeResult(data)
		if err == nil {
			s.query, s.columns, s.rows = query, r.Columns, r.Rows
			s.buffered, s.executed = true, true
			return s.FetchAll()
		}
		s.logger.WarnContext(ctx, "cache decode", "key", key, "error", err)
	}
	rows, err := s.ReadAll(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	if data, err := encodeResult(s.columns, s.rows); err != nil {
		s.logger.WarnContext(ctx, "cache encode", "key", key, "error", err)
	} else if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "cache set", "key", key, "error", err)
	}
	return rows, nil
}

// Invalidate removes every cached result of the active profile.
func (s *Session) Invalidate(ctx context.Context) error {
	if s.cache == nil || s.id == "" {
		return nil
	}
	return s.cache.DeletePrefix(ctx, string(s.id)+"|")
}

// MemoryCache is an in-process Cache. It is safe for concurrent use.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	if !it.expires.IsZero() && !c.now().Before(it.expires) {
		delete(c.items, key)
		return nil, nil
	}
	return bytes.Clone(it.value), nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := memoryItem{value: bytes.Clone(value)}
	if ttl > 0 {
		it.expires = c.now().Add(ttl)
	}
	c.items[key] = it
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// DeletePrefix implements Cache.
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
