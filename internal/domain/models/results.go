package models

// SkippedAnchor records an anchor the merger refused to emit.
type SkippedAnchor struct {
	Timestamp int64  `json:"timestamp"`
	Reason    string `json:"reason"`
}

// LoopResult summarizes a backward backfill run. Requested counts produced
// records; skipped anchors do not use it up.
type LoopResult struct {
	RunID     string          `json:"run_id"`
	InstID    string          `json:"inst_id"`
	Requested int             `json:"requested"`
	Produced  int             `json:"produced"`
	Records   []FeatureRecord `json:"-"`
	Skipped   []SkippedAnchor `json:"skipped,omitempty"`
	Earliest  int64           `json:"earliest,omitempty"`
	StopCause string          `json:"stop_cause,omitempty"`
}

// LabelRunResult summarizes a labeling run.
type LabelRunResult struct {
	InstID          string    `json:"inst_id"`
	Mode            LabelMode `json:"mode"`
	Scanned         int       `json:"scanned"`
	Labeled         int       `json:"labeled"`
	Pending         int       `json:"pending"`
	ThresholdMisses int       `json:"threshold_misses"`
}
