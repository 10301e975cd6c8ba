package replay

import "errors"

var (
	ErrHookInvalid       = errors.New("hook invalid")
	ErrTraceExhausted    = errors.New("trace exhausted before hop was hit")
	ErrCheckpointUnknown = errors.New("checkpoint unknown")
	ErrTargetMismatch    = errors.New("hop chain does not reach target position")
)
