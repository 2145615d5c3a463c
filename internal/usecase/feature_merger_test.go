package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeatPipe/internal/domain/models"
	"FeatPipe/internal/services/alignment"
	applogger "FeatPipe/pkg/logger"
)

func newMerger(c *memCandles, n *memNorms) *FeatureMerger {
	return NewFeatureMerger(c, n, DefaultMergerConfig(), applogger.Nop())
}

func TestMerge_Latest(t *testing.T) {
	m := newMerger(standardWorld(), standardNorms())

	rec, err := m.Merge(context.Background(), instID, nil)
	require.NoError(t, err)
	assert.Equal(t, instID, rec.InstID)
	assert.Equal(t, models.Bar1H, rec.Bar)
	assert.Equal(t, worldEnd.UnixMilli(), rec.Timestamp)

	for _, name := range []string{
		"close_1h_normalized", "volume_1h_normalized", "rsi_14_1h", "hour_cos", "day_of_week",
		"rsi_14_15m", "volume_impulse_15m", "macd_line_15m",
		"rsi_14_4h", "trend_continuation_4h", "adx_4h",
		"rsi_14_1d", "atr_1d", "bb_upper_1d_normalized", "bb_lower_1d_normalized",
	} {
		assert.Contains(t, rec.Fields, name)
	}
	assert.Equal(t, 1.0, rec.Fields["day_of_week"]) // Tuesday
}

func TestMerge_AsOfSelectsAnchor(t *testing.T) {
	m := newMerger(standardWorld(), standardNorms())

	rec, err := m.Merge(context.Background(), instID, ms(worldEnd.Add(-2*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, worldEnd.Add(-3*time.Hour).UnixMilli(), rec.Timestamp)
}

func TestMerge_Idempotent(t *testing.T) {
	m := newMerger(standardWorld(), standardNorms())

	a, err := m.Merge(context.Background(), instID, nil)
	require.NoError(t, err)
	b, err := m.Merge(context.Background(), instID, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMerge_MissingNormalization(t *testing.T) {
	n := standardNorms()
	n.drop(models.Bar1H, "volume")

	_, err := newMerger(standardWorld(), n).Merge(context.Background(), instID, nil)
	assert.ErrorIs(t, err, ErrMissingNormalization)
}

func TestMerge_DegenerateNormalization(t *testing.T) {
	n := standardNorms()
	_ = n.SaveParams(context.Background(), models.NormalizationParams{InstID: instID, Bar: models.Bar1D, Column: "close", Mean: 100, Std: 0})

	_, err := newMerger(standardWorld(), n).Merge(context.Background(), instID, nil)
	assert.ErrorIs(t, err, ErrMissingNormalization)
}

func TestMerge_InsufficientHistory(t *testing.T) {
	_, err := newMerger(newMemCandles(), standardNorms()).Merge(context.Background(), instID, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.ErrorIs(t, err, alignment.ErrIncomplete)
}

func TestMerge_GapIsReportedWithAnchor(t *testing.T) {
	c := standardWorld()
	c.remove(models.Bar1H, worldEnd.Add(-3*time.Hour))

	_, err := newMerger(c, standardNorms()).Merge(context.Background(), instID, nil)
	var aerr *AnchorError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, worldEnd.UnixMilli(), aerr.Anchor)
	assert.ErrorIs(t, err, alignment.ErrNotContiguous)
}

func TestMerge_StoreFailure(t *testing.T) {
	c := standardWorld()
	c.err = errors.New("connection refused")

	_, err := newMerger(c, standardNorms()).Merge(context.Background(), instID, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientData)
}

func TestLoop_WalksBackward(t *testing.T) {
	m := newMerger(standardWorld(), standardNorms())

	res, err := m.Loop(context.Background(), instID, nil, 5, nil)
	require.NoError(t, err)
	require.Equal(t, 5, res.Produced)
	require.Len(t, res.Records, 5)
	for i, rec := range res.Records {
		assert.Equal(t, worldEnd.Add(-time.Duration(i)*time.Hour).UnixMilli(), rec.Timestamp)
	}
	assert.Equal(t, worldEnd.Add(-4*time.Hour).UnixMilli(), res.Earliest)
	assert.NotEmpty(t, res.RunID)
}

func TestLoop_SkipsGapsAndContinues(t *testing.T) {
	c := standardWorld()
	c.remove(models.Bar1H, worldEnd.Add(-3*time.Hour))

	res, err := newMerger(c, standardNorms()).Loop(context.Background(), instID, nil, 10, nil)
	require.NoError(t, err)

	require.Len(t, res.Skipped, 4)
	assert.Equal(t, worldEnd.UnixMilli(), res.Skipped[0].Timestamp)
	assert.Equal(t, worldEnd.Add(-4*time.Hour).UnixMilli(), res.Skipped[3].Timestamp)
	assert.Contains(t, res.Skipped[3].Reason, "hour")

	assert.Equal(t, 10, res.Produced)
	assert.Equal(t, worldEnd.Add(-5*time.Hour).UnixMilli(), res.Records[0].Timestamp)
	assert.Equal(t, worldEnd.Add(-14*time.Hour).UnixMilli(), res.Records[9].Timestamp)
}

func TestLoop_GapLongerThanCount(t *testing.T) {
	c := standardWorld()
	c.remove(models.Bar1H, worldEnd.Add(-3*time.Hour))

	res, err := newMerger(c, standardNorms()).Loop(context.Background(), instID, nil, 2, nil)
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 4)
	require.Equal(t, 2, res.Produced)
	assert.Equal(t, worldEnd.Add(-5*time.Hour).UnixMilli(), res.Records[0].Timestamp)
	assert.Equal(t, worldEnd.Add(-6*time.Hour).UnixMilli(), res.Records[1].Timestamp)
	assert.Empty(t, res.StopCause)
}

func TestLoop_StopsAfterMaxSkips(t *testing.T) {
	c := standardWorld()
	c.remove(models.Bar1H, worldEnd.Add(-3*time.Hour))
	cfg := DefaultMergerConfig()
	cfg.MaxSkips = 2

	res, err := NewFeatureMerger(c, standardNorms(), cfg, applogger.Nop()).Loop(context.Background(), instID, nil, 5, nil)
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 2)
	assert.Equal(t, 0, res.Produced)
	assert.Equal(t, "skipped 2 anchors", res.StopCause)
}

func TestLoop_StopsAtEndOfHistory(t *testing.T) {
	c := newMemCandles()
	day := time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)
	c.fill(models.Bar1H, worldEnd.Add(-49*time.Hour), worldEnd)
	c.fill(models.Bar15m, worldEnd.Add(-200*time.Hour), worldEnd.Add(45*time.Minute))
	c.fill(models.Bar4H, worldEnd.Add(-800*time.Hour), worldEnd)
	c.fill(models.Bar1D, day.AddDate(0, 0, -100), day)

	res, err := newMerger(c, standardNorms()).Loop(context.Background(), instID, nil, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Produced)
	assert.NotEmpty(t, res.StopCause)
}

func TestLoop_MissingNormalizationAborts(t *testing.T) {
	n := standardNorms()
	n.drop(models.Bar1H, "close")

	res, err := newMerger(standardWorld(), n).Loop(context.Background(), instID, nil, 3, nil)
	assert.ErrorIs(t, err, ErrMissingNormalization)
	assert.Equal(t, 0, res.Produced)
}

func TestLoop_EmitsRecords(t *testing.T) {
	sink := newMemFeatures()
	m := newMerger(standardWorld(), standardNorms())

	res, err := m.Loop(context.Background(), instID, nil, 3, sink.PersistFeature)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Produced)
	assert.Empty(t, res.Records)
	assert.Len(t, sink.records, 3)
}

func TestFeaturePipeline_BackfillPersistFailure(t *testing.T) {
	sink := newMemFeatures()
	sink.failOn = worldEnd.Add(-time.Hour).UnixMilli()
	p := NewFeaturePipeline(newMerger(standardWorld(), standardNorms()), sink, nopMetrics{}, applogger.Nop())

	res, err := p.Backfill(context.Background(), instID, nil, 5)
	assert.ErrorIs(t, err, errSinkDown)
	assert.Equal(t, 1, res.Produced)
}

func TestFeaturePipeline_MergePersists(t *testing.T) {
	sink := newMemFeatures()
	p := NewFeaturePipeline(newMerger(standardWorld(), standardNorms()), sink, nopMetrics{}, applogger.Nop())

	rec, err := p.Merge(context.Background(), instID, nil, true)
	require.NoError(t, err)
	assert.Contains(t, sink.records, rec.Timestamp)

	_, err = p.Merge(context.Background(), instID, ms(worldEnd.Add(-time.Hour)), false)
	require.NoError(t, err)
	assert.Len(t, sink.records, 1)
}
