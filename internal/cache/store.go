package cache

import (
	"fmt"
	"strings"
	"sync"

	"feedsync/internal/models"
)

// BucketKey names one slice of the cache: one query shape for one tenant
// scope. Keys are opaque to callers; use the constructors below.
type BucketKey string

const (
	listPrefix  = "list:"
	pagePrefix  = "page:"
	pointPrefix = "point:"
)

// ListKey returns the bucket key for a flat scoped list. An empty scope is
// the platform-wide (administrative) view.
func ListKey(tenantScope string) BucketKey {
	return BucketKey(listPrefix + tenantScope)
}

// PageKey returns the bucket key for one page of a paginated scoped list.
func PageKey(tenantScope string, page, limit int) BucketKey {
	return BucketKey(fmt.Sprintf("%s%s:%d:%d", pagePrefix, tenantScope, page, limit))
}

// PointKey returns the bucket key for a single-entity lookup.
func PointKey(id string) BucketKey {
	return BucketKey(pointPrefix + id)
}

// IsPoint reports whether the key names a single-entity lookup bucket.
func (k BucketKey) IsPoint() bool {
	return strings.HasPrefix(string(k), pointPrefix)
}

// PointID returns the entity id of a point-lookup key, or "" for other keys.
func (k BucketKey) PointID() string {
	if !k.IsPoint() {
		return ""
	}
	return strings.TrimPrefix(string(k), pointPrefix)
}

// Scope returns the tenant scope encoded in a list or page key. The second
// return is false for point-lookup keys, whose scope is the entity's own.
func (k BucketKey) Scope() (string, bool) {
	s := string(k)
	switch {
	case strings.HasPrefix(s, listPrefix):
		return strings.TrimPrefix(s, listPrefix), true
	case strings.HasPrefix(s, pagePrefix):
		rest := strings.TrimPrefix(s, pagePrefix)
		if idx := strings.Index(rest, ":"); idx >= 0 {
			return rest[:idx], true
		}
		return rest, true
	default:
		return "", false
	}
}

// bucket holds the entities of one query shape. Paginated buckets carry the
// envelope metadata alongside the same entity slice.
type bucket struct {
	paginated  bool
	pagination models.Pagination
	entities   []models.Message
}

// Envelope is the {data, pagination} shape returned for paginated buckets.
type Envelope struct {
	Data       []models.Message  `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// Store is the keyed in-memory cache of entity lists. It handles flat-list
// and paginated-envelope buckets behind one read/write surface. All writes
// replace the bucket's slice wholesale, so consumers holding a previously
// returned slice can detect change by reference inequality. Only the
// reconciler and the mutation coordinator write to it.
type Store struct {
	mu      sync.RWMutex
	buckets map[BucketKey]*bucket
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{
		buckets: make(map[BucketKey]*bucket),
	}
}

// SetList creates or replaces a flat-list bucket.
func (s *Store) SetList(key BucketKey, entities []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets[key] = &bucket{entities: cloneSlice(entities)}
}

// SetEnvelope creates or replaces a paginated bucket.
func (s *Store) SetEnvelope(key BucketKey, entities []models.Message, pagination models.Pagination) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets[key] = &bucket{
		paginated:  true,
		pagination: pagination,
		entities:   cloneSlice(entities),
	}
}

// SetPagination replaces the envelope metadata of a paginated bucket,
// leaving its entities untouched. Flat-list and absent buckets are ignored.
func (s *Store) SetPagination(key BucketKey, pagination models.Pagination) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !b.paginated {
		return
	}
	s.buckets[key] = &bucket{
		paginated:  true,
		pagination: pagination,
		entities:   b.entities,
	}
}

// Entities returns a copy of the bucket's entity list, flat or paginated.
func (s *Store) Entities(key BucketKey) ([]models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[key]
	if !ok {
		return nil, false
	}
	return cloneSlice(b.entities), true
}

// Envelope returns the paginated view of a bucket. Flat buckets are
// returned with zero-value pagination so callers never branch on shape.
func (s *Store) Envelope(key BucketKey) (Envelope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[key]
	if !ok {
		return Envelope{}, false
	}
	return Envelope{Data: cloneSlice(b.entities), Pagination: b.pagination}, true
}

// Mutate runs fn over a copy of the bucket's entities inside the store's
// write lock, substituting the result when fn reports a change. The whole
// read-modify-replace is one atomic step; bucket shape and pagination
// metadata are preserved. Returns false when the bucket does not exist.
func (s *Store) Mutate(key BucketKey, fn func(entities []models.Message) ([]models.Message, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		return false
	}

	updated, changed := fn(cloneSlice(b.entities))
	if changed {
		s.buckets[key] = &bucket{
			paginated:  b.paginated,
			pagination: b.pagination,
			entities:   updated,
		}
	}
	return true
}

// Keys returns every bucket key currently held.
func (s *Store) Keys() []BucketKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]BucketKey, 0, len(s.buckets))
	for k := range s.buckets {
		keys = append(keys, k)
	}
	return keys
}

// KeysContaining returns the keys of every bucket holding the given id.
func (s *Store) KeysContaining(id string) []BucketKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []BucketKey
	for k, b := range s.buckets {
		for i := range b.entities {
			if b.entities[i].ID == id {
				keys = append(keys, k)
				break
			}
		}
	}
	return keys
}

// KeysForScope returns the list and page bucket keys for a tenant scope,
// plus the platform-wide buckets, which see every tenant's traffic.
func (s *Store) KeysForScope(tenantScope string) []BucketKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []BucketKey
	for k := range s.buckets {
		scope, ok := k.Scope()
		if !ok {
			continue
		}
		if scope == tenantScope || scope == "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// SnapshotContaining captures a deep copy of every bucket holding the given
// id, keyed by bucket. The mutation coordinator uses this as its rollback
// baseline.
func (s *Store) SnapshotContaining(id string) map[BucketKey][]models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make(map[BucketKey][]models.Message)
	for k, b := range s.buckets {
		for i := range b.entities {
			if b.entities[i].ID == id {
				snapshots[k] = cloneSlice(b.entities)
				break
			}
		}
	}
	return snapshots
}

// Restore replaces a bucket's entities with a previously captured snapshot,
// preserving the bucket's shape. Buckets dropped since the snapshot are
// left absent.
func (s *Store) Restore(key BucketKey, entities []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		return
	}
	s.buckets[key] = &bucket{
		paginated:  b.paginated,
		pagination: b.pagination,
		entities:   cloneSlice(entities),
	}
}

// Drop removes a bucket entirely.
func (s *Store) Drop(key BucketKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets, key)
}

// Find returns the first cached copy of the entity with the given id.
func (s *Store) Find(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.buckets {
		for i := range b.entities {
			if b.entities[i].ID == id {
				return b.entities[i].Clone(), true
			}
		}
	}
	return models.Message{}, false
}

func cloneSlice(entities []models.Message) []models.Message {
	if entities == nil {
		return nil
	}
	out := make([]models.Message, len(entities))
	for i := range entities {
		out[i] = entities[i].Clone()
	}
	return out
}
