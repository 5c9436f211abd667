package orchestrator

import "context"

// CancelToken wraps context.CancelCauseFunc with a recorded reason,
// letting a run's cancellation surface why it was cancelled (user abort,
// deadline, upstream failure) rather than just that it was.
type CancelToken struct {
	cancel context.CancelCauseFunc
}

// NewCancelToken derives a cancellable context from parent and returns it
// alongside the token that cancels it.
func NewCancelToken(parent context.Context) (context.Context, *CancelToken) {
	ctx, cancel := context.WithCancelCause(parent)
	return ctx, &CancelToken{cancel: cancel}
}

// Cancel stops the run, recording reason as the cancellation cause.
func (t *CancelToken) Cancel(reason error) { t.cancel(reason) }

// Reason extracts the cancellation cause from a context cancelled by a
// CancelToken, falling back to ctx.Err() when no cause was recorded.
func Reason(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return ctx.Err()
}
