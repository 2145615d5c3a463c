package usecase

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
)

const instID = "BTC-USDT"

// worldEnd is the newest 1H anchor in the synthetic history.
var worldEnd = time.Date(2024, 5, 14, 20, 0, 0, 0, time.UTC)

type candleKey struct {
	inst string
	bar  models.BarInterval
}

type memCandles struct {
	mu   sync.Mutex
	data map[candleKey][]models.Candle
	err  error
}

func newMemCandles() *memCandles {
	return &memCandles{data: map[candleKey][]models.Candle{}}
}

func price(ts int64) (open, high, low, closePx, volume float64) {
	h := float64(ts) / 3.6e6
	open = 100 + 5*math.Sin(h/7) + math.Mod(h, 13)*0.05
	closePx = open + 0.3*math.Cos(h)
	high = math.Max(open, closePx) + 0.5
	low = math.Min(open, closePx) - 0.5
	volume = 1000 + 100*math.Sin(h/3)
	return
}

// fill adds candles of bar for every step in [from, to].
func (m *memCandles) fill(bar models.BarInterval, from, to time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := candleKey{instID, bar}
	for ts := from.UnixMilli(); ts <= to.UnixMilli(); ts += bar.Millis() {
		o, h, l, c, v := price(ts)
		m.data[k] = append(m.data[k], models.NewCandle(instID, bar, ts, o, h, l, c, v, time.UTC))
	}
	sort.Slice(m.data[k], func(i, j int) bool { return m.data[k][i].Timestamp < m.data[k][j].Timestamp })
}

func (m *memCandles) remove(bar models.BarInterval, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := candleKey{instID, bar}
	out := m.data[k][:0]
	for _, c := range m.data[k] {
		if c.Timestamp != at.UnixMilli() {
			out = append(out, c)
		}
	}
	m.data[k] = out
}

func (m *memCandles) closeAt(bar models.BarInterval, at time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.data[candleKey{instID, bar}] {
		if c.Timestamp == at.UnixMilli() {
			return c.Close
		}
	}
	return math.NaN()
}

func (m *memCandles) GetWindow(_ context.Context, inst string, bar models.BarInterval, length int, before *int64) ([]models.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Candle
	for _, c := range m.data[candleKey{inst, bar}] {
		if before == nil || c.Timestamp < *before {
			out = append(out, c)
		}
	}
	if len(out) > length {
		out = out[len(out)-length:]
	}
	return append([]models.Candle(nil), out...), nil
}

// standardWorld holds enough history for every granularity around worldEnd.
func standardWorld() *memCandles {
	m := newMemCandles()
	day := time.Date(worldEnd.Year(), worldEnd.Month(), worldEnd.Day(), 0, 0, 0, 0, time.UTC)
	m.fill(models.Bar1H, worldEnd.Add(-200*time.Hour), worldEnd)
	m.fill(models.Bar15m, worldEnd.Add(-200*time.Hour), worldEnd.Add(45*time.Minute))
	m.fill(models.Bar4H, worldEnd.Add(-800*time.Hour), worldEnd)
	m.fill(models.Bar1D, day.AddDate(0, 0, -100), day)
	return m
}

type normKey struct {
	inst   string
	bar    models.BarInterval
	column string
}

type memNorms struct {
	mu   sync.Mutex
	data map[normKey]models.NormalizationParams
}

func standardNorms() *memNorms {
	n := &memNorms{data: map[normKey]models.NormalizationParams{}}
	_ = n.SaveParams(context.Background(), models.NormalizationParams{InstID: instID, Bar: models.Bar1H, Column: "close", Mean: 100, Std: 5})
	_ = n.SaveParams(context.Background(), models.NormalizationParams{InstID: instID, Bar: models.Bar1H, Column: "volume", Mean: 1000, Std: 100})
	_ = n.SaveParams(context.Background(), models.NormalizationParams{InstID: instID, Bar: models.Bar1D, Column: "close", Mean: 100, Std: 5})
	return n
}

func (n *memNorms) GetParams(_ context.Context, inst string, bar models.BarInterval, column string) (models.NormalizationParams, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.data[normKey{inst, bar, column}]
	if !ok {
		return models.NormalizationParams{}, domrepo.ErrNotFound
	}
	return p, nil
}

func (n *memNorms) SaveParams(_ context.Context, p models.NormalizationParams) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.data[normKey{p.InstID, p.Bar, p.Column}] = p
	return nil
}

func (n *memNorms) drop(bar models.BarInterval, column string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.data, normKey{instID, bar, column})
}

type memFeatures struct {
	mu      sync.Mutex
	records map[int64]models.FeatureRecord
	labels  map[int64]int
	failOn  int64
}

func newMemFeatures() *memFeatures {
	return &memFeatures{records: map[int64]models.FeatureRecord{}, labels: map[int64]int{}}
}

var errSinkDown = errors.New("sink down")

func (f *memFeatures) PersistFeature(_ context.Context, rec *models.FeatureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != 0 && rec.Timestamp == f.failOn {
		return errSinkDown
	}
	f.records[rec.Timestamp] = *rec
	return nil
}

func (f *memFeatures) UpdateLabel(_ context.Context, _ string, ts int64, label int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels[ts] = label
	return nil
}

func (f *memFeatures) ListFeatureKeys(_ context.Context, inst string, bar models.BarInterval, onlyUnlabeled bool, limit int) ([]models.FeatureKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FeatureKey
	for ts := range f.records {
		k := models.FeatureKey{InstID: inst, Bar: bar, Timestamp: ts}
		if l, ok := f.labels[ts]; ok {
			if onlyUnlabeled {
				continue
			}
			l := l
			k.Label = &l
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordFeatureSent(string, string) {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLastAnchor(string, int64)   {}
func (nopMetrics) RecordLatency(string, float64)    {}

func ms(t time.Time) *int64 {
	v := t.UnixMilli()
	return &v
}
