package features

import (
	"FeatPipe/internal/domain/models"
	"FeatPipe/internal/domain/service"
	"FeatPipe/internal/services/indicators"
)

// Config carries the indicator settings shared by the builders.
type Config struct {
	RSIWindow        int
	MACD             indicators.MACD
	Bollinger        indicators.Bollinger
	ATRWindow        int
	ADXWindow        int
	Stochastic       indicators.Stochastic
	Pinbar           indicators.Pinbar
	ImpulseWindow    int // 0 averages the whole window
	VolatilityWindow int
}

func DefaultConfig() Config {
	return Config{
		RSIWindow:        indicators.DefaultRSIWindow,
		MACD:             indicators.DefaultMACD(),
		Bollinger:        indicators.DefaultBollinger(),
		ATRWindow:        indicators.DefaultATRWindow,
		ADXWindow:        indicators.DefaultATRWindow,
		Stochastic:       indicators.DefaultStochastic(),
		Pinbar:           indicators.DefaultPinbar(),
		ImpulseWindow:    0,
		VolatilityWindow: 30,
	}
}

// NormSet is the normalization params the builders need for one instrument.
type NormSet struct {
	Close1H  models.NormalizationParams
	Volume1H models.NormalizationParams
	Close1D  models.NormalizationParams
}

// NewBuilders returns one builder per granularity, in merge order.
func NewBuilders(cfg Config, n NormSet) []service.FeatureBuilder {
	return []service.FeatureBuilder{
		NewMinuteBuilder(cfg),
		NewHourBuilder(cfg, n.Close1H, n.Volume1H),
		NewFourHourBuilder(cfg),
		NewDayBuilder(cfg, n.Close1D),
	}
}
