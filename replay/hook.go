package replay

import (
	"io"

	"github.com/wnxd/microfi/trace"
)

type HookType int

const (
	HOOK_TYPE_CODE HookType = iota
	HOOK_TYPE_MEM_READ
	HOOK_TYPE_MEM_WRITE
)

var hookNames = [...]string{
	HOOK_TYPE_CODE:      "breakpoint",
	HOOK_TYPE_MEM_READ:  "read watchpoint",
	HOOK_TYPE_MEM_WRITE: "write watchpoint",
}

func (t HookType) String() string {
	if t >= 0 && int(t) < len(hookNames) {
		return hookNames[t]
	}
	return "hook"
}

func hookTypeOf(access trace.AccessType) (HookType, bool) {
	switch access {
	case trace.ACCESS_EXECUTE:
		return HOOK_TYPE_CODE, true
	case trace.ACCESS_READ:
		return HOOK_TYPE_MEM_READ, true
	case trace.ACCESS_WRITE:
		return HOOK_TYPE_MEM_WRITE, true
	}
	return 0, false
}

type HookResult int

const (
	HookResult_Done HookResult = -1
	HookResult_Next HookResult = 0
)

// Callback runs when the hooked event occurs at pos. Returning
// HookResult_Done stops Run after the current step.
type Callback = func(pos uint64, ev trace.Event, data any) HookResult

type HookHandler interface {
	io.Closer
	Type() HookType
	Event() trace.Event
}

type hookHandler struct {
	m        *Machine
	typ      HookType
	ev       trace.Event
	callback Callback
	data     any
}

func (h *hookHandler) Close() error {
	h.m.removeHook(h)
	return nil
}

func (h *hookHandler) Type() HookType {
	return h.typ
}

func (h *hookHandler) Event() trace.Event {
	return h.ev
}
