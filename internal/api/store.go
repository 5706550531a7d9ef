package api

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/samcharles93/maskfill/internal/datagen"
)

// DefaultBatchTTL is how long generated batches stay retrievable.
const DefaultBatchTTL = time.Hour

const batchCapacity = 1024

// Batch is one generation request's output.
type Batch struct {
	ID        string           `json:"id"`
	Object    string           `json:"object"`
	CreatedAt int64            `json:"created_at"`
	Count     int              `json:"count"`
	Records   []datagen.Record `json:"records"`
}

// BatchStore keeps recent batches in memory until they expire.
type BatchStore struct {
	cache *ttlcache.Cache[string, *Batch]
}

// NewBatchStore returns a store whose entries live for ttl. Close stops its
// expiry loop.
func NewBatchStore(ttl time.Duration) *BatchStore {
	if ttl <= 0 {
		ttl = DefaultBatchTTL
	}
	c := ttlcache.New[string, *Batch](
		ttlcache.WithTTL[string, *Batch](ttl),
		ttlcache.WithCapacity[string, *Batch](batchCapacity),
	)
	go c.Start()
	return &BatchStore{cache: c}
}

func (s *BatchStore) Create(records []datagen.Record, now time.Time) *Batch {
	if records == nil {
		records = []datagen.Record{}
	}
	b := &Batch{
		ID:        newBatchID(),
		Object:    "batch",
		CreatedAt: now.Unix(),
		Count:     len(records),
		Records:   records,
	}
	s.cache.Set(b.ID, b, ttlcache.DefaultTTL)
	return b
}

func (s *BatchStore) Get(id string) (*Batch, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *BatchStore) Delete(id string) bool {
	if !s.cache.Has(id) {
		return false
	}
	s.cache.Delete(id)
	return true
}

func (s *BatchStore) Close() {
	s.cache.Stop()
}
