package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWith(prometheus.NewRegistry())

	r.RecordFeatureSent("clickhouse", "BTC-USDT")
	r.RecordFeatureSent("clickhouse", "BTC-USDT")
	r.RecordError("merge")
	r.RecordLastAnchor("BTC-USDT", 1700000000000)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.featuresSent.WithLabelValues("clickhouse", "BTC-USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("merge")))
	assert.Equal(t, 1.7e12, testutil.ToFloat64(r.lastAnchor.WithLabelValues("BTC-USDT")))
}
