package hops

import "go.uber.org/zap"

type options struct {
	log          *zap.Logger
	onCheckpoint func(Checkpoint)
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithCheckpointHandler is called for every checkpoint right after it was
// created.
func WithCheckpointHandler(fn func(Checkpoint)) Option {
	return func(o *options) {
		o.onCheckpoint = fn
	}
}

func newOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
