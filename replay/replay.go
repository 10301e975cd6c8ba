package replay

import (
	"context"
	"fmt"

	"github.com/wnxd/microfi/hops"
	"github.com/wnxd/microfi/trace"
)

// Checkpoints resolves a checkpoint id to the trace position it restores.
type Checkpoints func(id uint64) (uint64, bool)

// FromList resolves ids against planner checkpoints.
func FromList(cps []hops.Checkpoint) Checkpoints {
	return func(id uint64) (uint64, bool) {
		for _, cp := range cps {
			if cp.ID == id {
				return cp.Pos, true
			}
		}
		return 0, false
	}
}

// Replay navigates src along the hops of t: it restores the checkpoint,
// then arms one hop at a time and waits for its next hit. It returns the
// position where the last hop fired.
func Replay(ctx context.Context, src trace.Source, t hops.Target, cps Checkpoints, opts ...Option) (uint64, error) {
	m := NewMachine(src, opts...)
	if t.HasCheckpoint {
		var pos uint64
		ok := cps != nil
		if ok {
			pos, ok = cps(t.CheckpointID)
		}
		if !ok {
			return 0, fmt.Errorf("%w: %d", ErrCheckpointUnknown, t.CheckpointID)
		}
		if err := m.Seek(ctx, pos); err != nil {
			return 0, err
		}
	}
	for i, ev := range t.Hops {
		h, err := m.AddHook(ev, func(uint64, trace.Event, any) HookResult {
			return HookResult_Done
		}, nil)
		if err != nil {
			return 0, fmt.Errorf("hop %d: %w", i, err)
		}
		err = m.Run(ctx)
		h.Close()
		if err != nil {
			return 0, fmt.Errorf("hop %d %s: %w", i, ev, err)
		}
	}
	return m.Position(), nil
}

// Verify replays t and checks that it ends at t.Position. A bare checkpoint
// target carries no position and only has to restore.
func Verify(ctx context.Context, src trace.Source, t hops.Target, cps Checkpoints, opts ...Option) error {
	pos, err := Replay(ctx, src, t, cps, opts...)
	if err != nil {
		return err
	}
	if len(t.Hops) == 0 && t.HasCheckpoint {
		return nil
	}
	if pos != t.Position {
		return fmt.Errorf("%w: reached %d, want %d", ErrTargetMismatch, pos, t.Position)
	}
	return nil
}
