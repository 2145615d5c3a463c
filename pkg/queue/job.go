package queue

import (
	"context"
	"errors"
	"time"
)

// Job handles one message type.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

// Timeouter is implemented by jobs that bound their own run time. Zero means
// no bound beyond the queue's lifetime.
type Timeouter interface {
	Timeout() time.Duration
}

// PermanentError marks a failure retries cannot fix; the message goes
// straight to the dead-letter list.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError. nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

func jobContext(parent context.Context, job Job) (context.Context, context.CancelFunc) {
	if t, ok := job.(Timeouter); ok && t.Timeout() > 0 {
		return context.WithTimeout(parent, t.Timeout())
	}
	return context.WithCancel(parent)
}
