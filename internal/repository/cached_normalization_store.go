package repository

import (
	"context"
	"errors"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	"FeatPipe/pkg/cache"
	applogger "FeatPipe/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const sharedLoadTimeout = 10 * time.Second

// CachedNormalizationStore reads through a cache in front of another store.
// Misses in the backing store are not cached. Concurrent misses for one key
// share a single backing read.
type CachedNormalizationStore struct {
	next  domrepo.NormalizationStore
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
	group singleflight.Group
}

func NewCachedNormalizationStore(next domrepo.NormalizationStore, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedNormalizationStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedNormalizationStore{next: next, cache: c, ttl: ttl, l: l}
}

func normKey(instID string, bar models.BarInterval, column string) string {
	return cache.GenerateKeyWithParams("norm", instID, string(bar), column)
}

func (s *CachedNormalizationStore) GetParams(ctx context.Context, instID string, bar models.BarInterval, column string) (models.NormalizationParams, error) {
	key := normKey(instID, bar, column)
	var p models.NormalizationParams
	err := s.cache.Get(ctx, key, &p)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("normalization cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	// The shared load outlives any one caller; each caller only stops
	// waiting when its own ctx ends.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		loaded, err := s.next.GetParams(lctx, instID, bar, column)
		if err != nil {
			return loaded, err
		}
		if err := s.cache.Set(lctx, key, loaded, s.ttl); err != nil {
			s.l.Warn("normalization cache write failed", applogger.String("key", key), applogger.Error(err))
		}
		return loaded, nil
	})
	select {
	case <-ctx.Done():
		return models.NormalizationParams{}, ctx.Err()
	case r := <-ch:
		return r.Val.(models.NormalizationParams), r.Err
	}
}

func (s *CachedNormalizationStore) SaveParams(ctx context.Context, p models.NormalizationParams) error {
	if err := s.next.SaveParams(ctx, p); err != nil {
		return err
	}
	key := normKey(p.InstID, p.Bar, p.Column)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.l.Warn("normalization cache invalidate failed", applogger.String("key", key), applogger.Error(err))
	}
	return nil
}

var _ domrepo.NormalizationStore = (*CachedNormalizationStore)(nil)
