package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/wnxd/microfi/trace"
	"go.uber.org/zap"
)

// Machine plays a trace forward and fires the hooks armed on its events,
// the way a debugger reports breakpoint and watchpoint hits.
type Machine struct {
	src trace.Source
	log *zap.Logger
	pos uint64

	mu    sync.Mutex
	hooks map[trace.Event][]*hookHandler
}

type options struct {
	log *zap.Logger
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func NewMachine(src trace.Source, opts ...Option) *Machine {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Machine{
		src:   src,
		log:   o.log,
		hooks: make(map[trace.Event][]*hookHandler),
	}
}

// Position is the last step played, 0 before the first one.
func (m *Machine) Position() uint64 {
	return m.pos
}

func (m *Machine) AddHook(ev trace.Event, callback Callback, data any) (HookHandler, error) {
	typ, ok := hookTypeOf(ev.Access)
	if !ok || callback == nil {
		return nil, fmt.Errorf("%w: %s", ErrHookInvalid, ev)
	}
	h := &hookHandler{m: m, typ: typ, ev: ev, callback: callback, data: data}
	m.mu.Lock()
	m.hooks[ev] = append(m.hooks[ev], h)
	m.mu.Unlock()
	return h, nil
}

func (m *Machine) removeHook(h *hookHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := slices.DeleteFunc(m.hooks[h.ev], func(o *hookHandler) bool { return o == h })
	if len(list) == 0 {
		delete(m.hooks, h.ev)
	} else {
		m.hooks[h.ev] = list
	}
}

func (m *Machine) next() (trace.Step, error) {
	step, err := m.src.Next()
	if errors.Is(err, io.EOF) {
		return trace.Step{}, fmt.Errorf("%w at %d", ErrTraceExhausted, m.pos)
	} else if err != nil {
		return trace.Step{}, err
	}
	if step.Pos <= m.pos {
		return trace.Step{}, fmt.Errorf("%w: position %d after %d", trace.ErrTraceCorrupt, step.Pos, m.pos)
	}
	m.pos = step.Pos
	return step, nil
}

// Seek plays the trace without firing hooks until pos has been reached.
func (m *Machine) Seek(ctx context.Context, pos uint64) error {
	for m.pos < pos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := m.next(); err != nil {
			return err
		}
	}
	return nil
}

// Run plays steps until a callback returns HookResult_Done. All hooks of
// the stopping step still fire.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		step, err := m.next()
		if err != nil {
			return err
		}
		if m.fire(step) {
			return nil
		}
	}
}

func (m *Machine) fire(step trace.Step) bool {
	done := false
	for _, ev := range step.Events {
		m.mu.Lock()
		hooks := slices.Clone(m.hooks[ev])
		m.mu.Unlock()
		for _, h := range hooks {
			m.log.Debug("hook hit", zap.Stringer("type", h.typ), zap.Stringer("event", ev), zap.Uint64("pos", step.Pos))
			if h.callback(step.Pos, ev, h.data) == HookResult_Done {
				done = true
			}
		}
	}
	return done
}
