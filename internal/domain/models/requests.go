package models

// Requests for the feature HTTP endpoints. Defined in domain for consistency and reuse.

type FeatureRequest struct {
	InstID  string `query:"inst_id" json:"inst_id" validate:"required"`
	AsOf    string `query:"as_of" json:"as_of"`
	Persist bool   `query:"persist" json:"persist"`
}

type BackfillRequest struct {
	InstID string `json:"inst_id" validate:"required"`
	Count  int    `json:"count" default:"100" validate:"gte=1,lte=10000"`
	AsOf   string `json:"as_of"`
	Sync   bool   `json:"sync"`
}

type LabelRunRequest struct {
	InstID string `json:"inst_id" validate:"required"`
	Mode   string `json:"mode" default:"fix" validate:"oneof=fix all"`
	Limit  int    `json:"limit" default:"1000" validate:"gte=1,lte=100000"`
	Async  bool   `json:"async"`
}

type ClassifyRequest struct {
	Pct float64 `query:"pct" json:"pct"`
}

type IndicatorRequest struct {
	Name   string `param:"name" validate:"required"`
	InstID string `query:"inst_id" validate:"required"`
	Bar    string `query:"bar" default:"1H" validate:"oneof=15m 1H 4H 1D"`
	Length int    `query:"length" default:"48" validate:"gte=2,lte=1000"`
	AsOf   string `query:"as_of"`
}

type CandlesRequest struct {
	InstID string `query:"inst_id" validate:"required"`
	Bar    string `query:"bar" default:"1H" validate:"oneof=15m 1H 4H 1D"`
	Length int    `query:"length" default:"48" validate:"gte=1,lte=5000"`
	AsOf   string `query:"as_of"`
}

type FitNormalizationRequest struct {
	InstID string `json:"inst_id" validate:"required"`
	Bar    string `json:"bar" default:"1H" validate:"oneof=15m 1H 4H 1D"`
	Column string `json:"column" validate:"required,oneof=close volume"`
	Length int    `json:"length" default:"2000" validate:"gte=2,lte=100000"`
}
