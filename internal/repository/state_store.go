package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"OptionsOracle/internal/domain/models"
	domrepo "OptionsOracle/internal/domain/repository"
	"OptionsOracle/internal/service/cache"
)

const statusKey = "status"

// CacheStateStore keeps the latest status as JSON in a BytesCache, which is
// Redis in production and the in-process TTL cache otherwise.
type CacheStateStore struct {
	c   cache.BytesCache
	ttl time.Duration
}

var _ domrepo.StateStore = (*CacheStateStore)(nil)

func NewCacheStateStore(c cache.BytesCache, ttl time.Duration) *CacheStateStore {
	return &CacheStateStore{c: c, ttl: ttl}
}

func (s *CacheStateStore) SaveStatus(ctx context.Context, st *models.OracleStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return s.c.SetBytes(ctx, statusKey, b, s.ttl)
}

// LoadStatus returns nil without error when nothing was saved.
func (s *CacheStateStore) LoadStatus(ctx context.Context) (*models.OracleStatus, error) {
	b, ok, err := s.c.GetBytes(ctx, statusKey)
	if err != nil || !ok {
		return nil, err
	}
	var st models.OracleStatus
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}
