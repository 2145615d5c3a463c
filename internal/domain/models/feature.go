package models

import (
	"sort"
	"time"
)

// FeatureRecord is the merged feature vector for one anchor candle.
// Key: (InstID, Bar, Timestamp).
type FeatureRecord struct {
	InstID    string             `json:"inst_id"`
	Bar       BarInterval        `json:"bar"`
	Timestamp int64              `json:"timestamp"`
	Fields    map[string]float64 `json:"fields"`
	Label     *int               `json:"label,omitempty"`
}

// Names returns field names in sorted order.
func (r *FeatureRecord) Names() []string {
	out := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizationParams holds a training-set mean/std for one column.
type NormalizationParams struct {
	InstID    string      `json:"inst_id"`
	Bar       BarInterval `json:"bar"`
	Column    string      `json:"column"`
	Mean      float64     `json:"mean"`
	Std       float64     `json:"std"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FeatureKey identifies a stored feature record and its label, if any.
type FeatureKey struct {
	InstID    string
	Bar       BarInterval
	Timestamp int64
	Label     *int
}
