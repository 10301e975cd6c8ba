package trace

import "errors"

var (
	ErrTraceCorrupt = errors.New("trace corrupt")
)
