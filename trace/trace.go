package trace

import (
	"fmt"
	"io"
)

type AccessType int

const (
	ACCESS_EXECUTE AccessType = iota
	ACCESS_READ
	ACCESS_WRITE
	ACCESS_CHECKPOINT
)

var accessNames = [...]string{
	ACCESS_EXECUTE:    "execute",
	ACCESS_READ:       "read",
	ACCESS_WRITE:      "write",
	ACCESS_CHECKPOINT: "checkpoint",
}

func (a AccessType) String() string {
	if a >= 0 && int(a) < len(accessNames) {
		return accessNames[a]
	}
	return fmt.Sprintf("access(%d)", int(a))
}

// Event is the identity of a trigger: the same address accessed the same way.
type Event struct {
	Addr   uint64
	Access AccessType
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%#x", e.Access, e.Addr)
}

// Step is one executed instruction. Pos starts at 1, Events[0] is the
// instruction fetch followed by one event per accessed memory byte.
type Step struct {
	Pos    uint64
	Events []Event
}

// Source yields the steps of a trace in order and io.EOF once exhausted.
type Source interface {
	Next() (Step, error)
}

// Expand splits a width byte memory access at addr into one event per byte.
func Expand(addr uint64, width uint, access AccessType) []Event {
	events := make([]Event, width)
	for i := range events {
		events[i] = Event{Addr: addr + uint64(i), Access: access}
	}
	return events
}

type sliceSource struct {
	steps []Step
	i     int
}

func NewSliceSource(steps []Step) Source {
	return &sliceSource{steps: steps}
}

// Build numbers the given event lists as consecutive steps starting at 1.
func Build(events ...[]Event) Source {
	steps := make([]Step, len(events))
	for i, ev := range events {
		steps[i] = Step{Pos: uint64(i) + 1, Events: ev}
	}
	return NewSliceSource(steps)
}

func (s *sliceSource) Next() (Step, error) {
	if s.i >= len(s.steps) {
		return Step{}, io.EOF
	}
	step := s.steps[s.i]
	s.i++
	return step, nil
}

type limitSource struct {
	src  Source
	left uint64
}

// Limit stops src after n steps. n == 0 leaves src unbounded.
func Limit(src Source, n uint64) Source {
	if n == 0 {
		return src
	}
	return &limitSource{src: src, left: n}
}

func (s *limitSource) Next() (Step, error) {
	if s.left == 0 {
		return Step{}, io.EOF
	}
	step, err := s.src.Next()
	if err == nil {
		s.left--
	}
	return step, err
}
