package hops

import "errors"

var (
	ErrConfigInvalid     = errors.New("planner config invalid")
	ErrPositionRegressed = errors.New("target position regressed")
	ErrWindowInvalid     = errors.New("window range invalid")
	ErrTraceExhausted    = errors.New("trace exhausted")
	ErrNoCandidate       = errors.New("no hop candidate in step")
	ErrChainCorrupt      = errors.New("hop chain corrupt")
)
