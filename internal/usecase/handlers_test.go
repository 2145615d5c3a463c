package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeatPipe/internal/domain/models"
	applogger "FeatPipe/pkg/logger"
	"FeatPipe/pkg/queue"
)

func newHandlerFixture(t *testing.T, c *memCandles) (*CandleCloseHandler, *memFeatures) {
	t.Helper()
	sink := newMemFeatures()
	p := NewFeaturePipeline(newMerger(c, standardNorms()), sink, nopMetrics{}, applogger.Nop())
	return NewCandleCloseHandler("candles.closed", p, newLabeler(t, c, sink), nopMetrics{}, applogger.Nop()), sink
}

func event(t *testing.T, bar string, ts time.Time) []byte {
	t.Helper()
	b, err := json.Marshal(CandleClosedEvent{InstID: instID, Bar: bar, TS: ts.UnixMilli()})
	require.NoError(t, err)
	return b
}

func TestCandleCloseHandler_MergesAndLabels(t *testing.T) {
	h, sink := newHandlerFixture(t, standardWorld())
	assert.Equal(t, "candles.closed", h.Topic())

	require.NoError(t, h.Handle(context.Background(), event(t, "1H", worldEnd)))
	assert.Contains(t, sink.records, worldEnd.UnixMilli())
	assert.Contains(t, sink.labels, worldEnd.Add(-24*time.Hour).UnixMilli())
}

func TestCandleCloseHandler_AlignsJitteredTimestamp(t *testing.T) {
	h, sink := newHandlerFixture(t, standardWorld())

	b, err := json.Marshal(CandleClosedEvent{InstID: instID, Bar: "1H", TS: worldEnd.UnixMilli() + 37})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	assert.Contains(t, sink.records, worldEnd.UnixMilli())
}

func TestCandleCloseHandler_IgnoresOtherBars(t *testing.T) {
	h, sink := newHandlerFixture(t, standardWorld())

	require.NoError(t, h.Handle(context.Background(), event(t, "15m", worldEnd)))
	assert.Empty(t, sink.records)
	assert.Empty(t, sink.labels)
}

func TestCandleCloseHandler_SkipsGappedAnchor(t *testing.T) {
	c := standardWorld()
	c.remove(models.Bar1H, worldEnd.Add(-3*time.Hour))
	h, sink := newHandlerFixture(t, c)

	require.NoError(t, h.Handle(context.Background(), event(t, "1H", worldEnd)))
	assert.Empty(t, sink.records)
	assert.Empty(t, sink.labels)
}

func TestCandleCloseHandler_BadPayload(t *testing.T) {
	h, _ := newHandlerFixture(t, standardWorld())
	assert.Error(t, h.Handle(context.Background(), []byte("{")))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"bar":"1H"}`)))
}

func TestBackfillJob_Handle(t *testing.T) {
	sink := newMemFeatures()
	p := NewFeaturePipeline(newMerger(standardWorld(), standardNorms()), sink, nopMetrics{}, applogger.Nop())
	job := NewBackfillJob(p, applogger.Nop())
	assert.Equal(t, JobTypeBackfill, job.Type())

	payload := map[string]interface{}{"inst_id": instID, "count": 2}
	require.NoError(t, job.Handle(context.Background(), payload))
	assert.Len(t, sink.records, 2)

	err := job.Handle(context.Background(), map[string]interface{}{"inst_id": instID, "count": 1, "as_of": "yesterday"})
	assert.True(t, queue.IsPermanent(err))
	assert.Equal(t, 30*time.Minute, job.Timeout())
}

func TestLabelJob_Handle(t *testing.T) {
	f := newMemFeatures()
	seedFeatures(f, worldEnd.Add(-30*time.Hour))
	job := NewLabelJob(newLabeler(t, standardWorld(), f), applogger.Nop())

	require.NoError(t, job.Handle(context.Background(), &LabelPayload{InstID: instID, Mode: "fix", Limit: 10}))
	assert.Len(t, f.labels, 1)

	err := job.Handle(context.Background(), &LabelPayload{InstID: instID, Mode: "some"})
	assert.True(t, queue.IsPermanent(err))
}

func TestParseAsOf(t *testing.T) {
	v, err := ParseAsOf("")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseAsOf("2024-05-14T20:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, worldEnd.UnixMilli(), *v)

	_, err = ParseAsOf("soon")
	assert.Error(t, err)
}

func TestNormalizationFitter(t *testing.T) {
	c := newMemCandles()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.fill(models.Bar1H, base, base.Add(99*time.Hour))
	n := &memNorms{data: map[normKey]models.NormalizationParams{}}
	f := NewNormalizationFitter(c, n, applogger.Nop())

	p, err := f.Fit(context.Background(), instID, models.Bar1H, "close", 100)
	require.NoError(t, err)
	assert.Greater(t, p.Std, 0.0)

	stored, err := n.GetParams(context.Background(), instID, models.Bar1H, "close")
	require.NoError(t, err)
	assert.Equal(t, p.Mean, stored.Mean)

	_, err = f.Fit(context.Background(), instID, models.Bar1H, "open_interest", 100)
	assert.Error(t, err)

	_, err = f.Fit(context.Background(), "ETH-USDT", models.Bar1H, "close", 100)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCandlesUseCase(t *testing.T) {
	uc := NewCandlesUseCase(standardWorld())

	res, err := uc.GetWindow(context.Background(), GetWindowParams{InstID: instID, Bar: models.Bar4H, Length: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Count)
	assert.True(t, res.Contiguous)

	_, err = uc.GetWindow(context.Background(), GetWindowParams{Bar: models.Bar4H})
	assert.Error(t, err)

	ind, err := uc.ComputeIndicator(context.Background(), "rsi", GetWindowParams{InstID: instID, Bar: models.Bar1H, Length: 48})
	require.NoError(t, err)
	assert.Equal(t, worldEnd.UnixMilli(), ind.Anchor)
	assert.Contains(t, ind.Values, "rsi")

	_, err = uc.ComputeIndicator(context.Background(), "nope", GetWindowParams{InstID: instID, Bar: models.Bar1H})
	assert.Error(t, err)
}
