package indicators

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownIndicator is returned by New for names not in the registry.
var ErrUnknownIndicator = errors.New("unknown indicator")

// registry maps an indicator name to a constructor with default settings.
var registry = map[string]func() Calculator{
	"rsi":                func() Calculator { return RSI{Window: DefaultRSIWindow} },
	"ema":                func() Calculator { return EMA{Span: 20} },
	"macd":               func() Calculator { return DefaultMACD() },
	"bollinger":          func() Calculator { return DefaultBollinger() },
	"atr":                func() Calculator { return ATR{Window: DefaultATRWindow} },
	"adx":                func() Calculator { return ADX{Window: DefaultATRWindow} },
	"stochastic":         func() Calculator { return DefaultStochastic() },
	"volume_impulse":     func() Calculator { return VolumeImpulse{} },
	"trend_continuation": func() Calculator { return TrendContinuation{} },
	"pinbar":             func() Calculator { return DefaultPinbar() },
}

// New returns the named calculator.
func New(name string) (Calculator, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownIndicator, name)
	}
	return ctor(), nil
}

// Names lists registered indicators in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
