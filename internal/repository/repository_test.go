package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	"FeatPipe/pkg/cache"
	"FeatPipe/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNorms struct {
	params map[string]models.NormalizationParams
	gets   int
}

func (c *countingNorms) GetParams(_ context.Context, instID string, bar models.BarInterval, column string) (models.NormalizationParams, error) {
	c.gets++
	p, ok := c.params[normKey(instID, bar, column)]
	if !ok {
		return models.NormalizationParams{}, domrepo.ErrNotFound
	}
	return p, nil
}

func (c *countingNorms) SaveParams(_ context.Context, p models.NormalizationParams) error {
	c.params[normKey(p.InstID, p.Bar, p.Column)] = p
	return nil
}

func TestCachedNormalizationStore_ReadsThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingNorms{params: map[string]models.NormalizationParams{}}
	require.NoError(t, backing.SaveParams(ctx, models.NormalizationParams{InstID: "BTC-USDT", Bar: models.Bar1H, Column: "close", Mean: 100, Std: 5}))

	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCachedNormalizationStore(backing, mc, time.Minute, nil)

	for i := 0; i < 3; i++ {
		p, err := s.GetParams(ctx, "BTC-USDT", models.Bar1H, "close")
		require.NoError(t, err)
		assert.Equal(t, 100.0, p.Mean)
		assert.Equal(t, 5.0, p.Std)
	}
	assert.Equal(t, 1, backing.gets)
}

// gatedNorms blocks GetParams until release is closed.
type gatedNorms struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	p       models.NormalizationParams
}

func (g *gatedNorms) GetParams(ctx context.Context, _ string, _ models.BarInterval, _ string) (models.NormalizationParams, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return models.NormalizationParams{}, err
	}
	return g.p, nil
}

func (g *gatedNorms) SaveParams(context.Context, models.NormalizationParams) error { return nil }

func TestCachedNormalizationStore_CancelledCallerDoesNotFailOthers(t *testing.T) {
	backing := &gatedNorms{
		started: make(chan struct{}),
		release: make(chan struct{}),
		p:       models.NormalizationParams{InstID: "BTC-USDT", Bar: models.Bar1H, Column: "close", Mean: 100, Std: 5},
	}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCachedNormalizationStore(backing, mc, time.Minute, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.GetParams(firstCtx, "BTC-USDT", models.Bar1H, "close")
		firstErr <- err
	}()
	<-backing.started

	type result struct {
		p   models.NormalizationParams
		err error
	}
	second := make(chan result, 1)
	go func() {
		p, err := s.GetParams(context.Background(), "BTC-USDT", models.Bar1H, "close")
		second <- result{p, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(backing.release)
	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, 100.0, r.p.Mean)
}

func TestCachedNormalizationStore_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	backing := &countingNorms{params: map[string]models.NormalizationParams{}}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCachedNormalizationStore(backing, mc, time.Minute, nil)

	_, err := s.GetParams(ctx, "ETH-USDT", models.Bar1D, "close")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
	_, err = s.GetParams(ctx, "ETH-USDT", models.Bar1D, "close")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
	assert.Equal(t, 2, backing.gets)
}

func TestCachedNormalizationStore_SaveInvalidates(t *testing.T) {
	ctx := context.Background()
	backing := &countingNorms{params: map[string]models.NormalizationParams{}}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	s := NewCachedNormalizationStore(backing, mc, time.Minute, nil)

	require.NoError(t, s.SaveParams(ctx, models.NormalizationParams{InstID: "BTC-USDT", Bar: models.Bar1H, Column: "volume", Mean: 10, Std: 2}))
	_, err := s.GetParams(ctx, "BTC-USDT", models.Bar1H, "volume")
	require.NoError(t, err)

	require.NoError(t, s.SaveParams(ctx, models.NormalizationParams{InstID: "BTC-USDT", Bar: models.Bar1H, Column: "volume", Mean: 20, Std: 4}))
	p, err := s.GetParams(ctx, "BTC-USDT", models.Bar1H, "volume")
	require.NoError(t, err)
	assert.Equal(t, 20.0, p.Mean)
}

type memSink struct {
	recs []*models.FeatureRecord
	err  error
}

func (m *memSink) PersistFeature(_ context.Context, rec *models.FeatureRecord) error {
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

type memPublisher struct {
	published []*models.FeatureRecord
	err       error
}

func (m *memPublisher) Publish(_ context.Context, rec *models.FeatureRecord) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, rec)
	return nil
}

func (m *memPublisher) Close() error { return nil }

func TestFanoutSink(t *testing.T) {
	ctx := context.Background()
	rec := &models.FeatureRecord{InstID: "BTC-USDT", Bar: models.Bar1H, Timestamp: 1715709600000, Fields: map[string]float64{"rsi_14_1h": 55}}

	t.Run("store and publish", func(t *testing.T) {
		store, pub := &memSink{}, &memPublisher{}
		s := NewFanoutSink(store, pub, metrics.Nop{}, nil)
		require.NoError(t, s.PersistFeature(ctx, rec))
		assert.Len(t, store.recs, 1)
		assert.Len(t, pub.published, 1)
	})

	t.Run("publish failure is tolerated", func(t *testing.T) {
		store, pub := &memSink{}, &memPublisher{err: errors.New("broker down")}
		s := NewFanoutSink(store, pub, metrics.Nop{}, nil)
		require.NoError(t, s.PersistFeature(ctx, rec))
		assert.Len(t, store.recs, 1)
	})

	t.Run("store failure stops publish", func(t *testing.T) {
		store, pub := &memSink{err: errors.New("clickhouse down")}, &memPublisher{}
		s := NewFanoutSink(store, pub, metrics.Nop{}, nil)
		require.Error(t, s.PersistFeature(ctx, rec))
		assert.Empty(t, pub.published)
	})

	t.Run("no publisher", func(t *testing.T) {
		store := &memSink{}
		s := NewFanoutSink(store, nil, metrics.Nop{}, nil)
		require.NoError(t, s.PersistFeature(ctx, rec))
		assert.Len(t, store.recs, 1)
	})
}

func TestClickHouseSchema(t *testing.T) {
	stmts := ClickHouseSchema("featpipe")
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], "CREATE DATABASE IF NOT EXISTS featpipe")
	assert.Contains(t, stmts[2], "ReplacingMergeTree(version)")
	assert.Contains(t, stmts[3], "featpipe.feature_labels")
}
