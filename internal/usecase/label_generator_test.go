package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeatPipe/internal/domain/models"
	applogger "FeatPipe/pkg/logger"
)

func newLabeler(t *testing.T, c *memCandles, f *memFeatures) *LabelGenerator {
	t.Helper()
	g, err := NewLabelGenerator(c, f, DefaultLabelConfig(), applogger.Nop())
	require.NoError(t, err)
	return g
}

func TestClassify_Boundaries(t *testing.T) {
	g := newLabeler(t, newMemCandles(), newMemFeatures())

	cases := []struct {
		pct     float64
		label   int
		matched bool
	}{
		{1.2, 4, true},
		{-1.2, 2, true},
		{0, 3, true},
		{-3.6, 1, true},
		{3.6, 5, true},
		{-3.5999, 2, true},
		{-99.9, 1, true},
		{-100, 3, false},
		{1.1999, 3, true},
		{-1.1999, 3, true},
		{100, 3, false},
		{250, 3, false},
	}
	for _, tc := range cases {
		label, matched := g.Classify(tc.pct)
		assert.Equal(t, tc.label, label, "pct %v", tc.pct)
		assert.Equal(t, tc.matched, matched, "pct %v", tc.pct)
	}
}

func TestLabelConfig_Validate(t *testing.T) {
	base := DefaultLabelConfig()
	require.NoError(t, base.Validate())

	gap := DefaultLabelConfig()
	gap.Thresholds[1].Upper = -1.0
	assert.Error(t, gap.Validate())

	inverted := DefaultLabelConfig()
	inverted.Thresholds[0] = models.LabelThreshold{Label: 1, Lower: -3.6, Upper: -100}
	assert.Error(t, inverted.Validate())

	neutral := DefaultLabelConfig()
	neutral.NeutralLabel = 9
	assert.Error(t, neutral.Validate())

	horizon := DefaultLabelConfig()
	horizon.Horizon = 0
	assert.Error(t, horizon.Validate())

	dup := DefaultLabelConfig()
	dup.Thresholds[4].Label = 4
	assert.Error(t, dup.Validate())

	_, err := NewLabelGenerator(newMemCandles(), newMemFeatures(), gap, applogger.Nop())
	assert.Error(t, err)
}

func TestPercentChange(t *testing.T) {
	pct, err := PercentChange(100, 103)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, pct, 1e-9)

	_, err = PercentChange(0, 1)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestLabelAt(t *testing.T) {
	c := standardWorld()
	g := newLabeler(t, c, newMemFeatures())
	anchor := worldEnd.Add(-30 * time.Hour)

	label, pct, matched, err := g.LabelAt(context.Background(), instID, anchor.UnixMilli())
	require.NoError(t, err)

	cur := c.closeAt(models.Bar1H, anchor)
	fut := c.closeAt(models.Bar1H, anchor.Add(24*time.Hour))
	assert.InDelta(t, 100*(fut/cur-1), pct, 1e-9)
	want, _ := g.Classify(pct)
	assert.Equal(t, want, label)
	assert.True(t, matched)
}

func TestLabelAt_FutureUnavailable(t *testing.T) {
	c := standardWorld()
	g := newLabeler(t, c, newMemFeatures())

	_, _, _, err := g.LabelAt(context.Background(), instID, worldEnd.Add(-10*time.Hour).UnixMilli())
	assert.ErrorIs(t, err, ErrFutureUnavailable)

	c.remove(models.Bar1H, worldEnd.Add(-40*time.Hour))
	_, _, _, err = g.LabelAt(context.Background(), instID, worldEnd.Add(-50*time.Hour).UnixMilli())
	assert.ErrorIs(t, err, ErrFutureUnavailable)
}

func seedFeatures(f *memFeatures, anchors ...time.Time) {
	for _, a := range anchors {
		_ = f.PersistFeature(context.Background(), &models.FeatureRecord{InstID: instID, Bar: models.Bar1H, Timestamp: a.UnixMilli()})
	}
}

func TestRun_FixOnlyTouchesUnlabeled(t *testing.T) {
	f := newMemFeatures()
	seedFeatures(f, worldEnd.Add(-30*time.Hour), worldEnd.Add(-29*time.Hour), worldEnd.Add(-28*time.Hour), worldEnd.Add(-5*time.Hour))
	f.labels[worldEnd.Add(-28*time.Hour).UnixMilli()] = 99
	g := newLabeler(t, standardWorld(), f)

	res, err := g.Run(context.Background(), instID, models.LabelModeFix, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 2, res.Labeled)
	assert.Equal(t, 1, res.Pending)
	assert.Equal(t, 99, f.labels[worldEnd.Add(-28*time.Hour).UnixMilli()])
	assert.Contains(t, f.labels, worldEnd.Add(-30*time.Hour).UnixMilli())
	assert.NotContains(t, f.labels, worldEnd.Add(-5*time.Hour).UnixMilli())
}

func TestRun_RecomputeAll(t *testing.T) {
	f := newMemFeatures()
	seedFeatures(f, worldEnd.Add(-30*time.Hour), worldEnd.Add(-28*time.Hour))
	f.labels[worldEnd.Add(-28*time.Hour).UnixMilli()] = 99
	g := newLabeler(t, standardWorld(), f)

	res, err := g.Run(context.Background(), instID, models.LabelModeAll, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Labeled)
	assert.NotEqual(t, 99, f.labels[worldEnd.Add(-28*time.Hour).UnixMilli()])

	_, err = g.Run(context.Background(), instID, models.LabelMode("bogus"), 10)
	assert.Error(t, err)
}
