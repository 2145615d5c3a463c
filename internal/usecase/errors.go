package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData: a window was missing or short. Loops treat it as the end of history.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMissingNormalization: params for a normalized field are absent or degenerate.
	ErrMissingNormalization = errors.New("normalization params missing")
	// ErrFutureUnavailable: the horizon's candles do not exist yet, or have gaps.
	ErrFutureUnavailable = errors.New("future candles unavailable")
	// ErrInvalidPrice: a non-positive or non-finite reference price.
	ErrInvalidPrice = errors.New("invalid reference price")
)

// AnchorError ties a merge failure to the 1H anchor it was attempted for.
type AnchorError struct {
	Anchor int64
	Err    error
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("anchor %d: %v", e.Anchor, e.Err)
}

func (e *AnchorError) Unwrap() error { return e.Err }
