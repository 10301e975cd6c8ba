package hops

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/wnxd/microfi/trace"
	"go.uber.org/zap"
)

// Checkpoint is a saved planner state. Chain ends with the hop whose costs
// triggered the checkpoint, a checkpoint hop at Pos stands in for it.
type Checkpoint struct {
	ID    uint64
	Pos   uint64
	Costs uint64
	Chain []Hop
}

// Target is the navigation plan for one trace position: restore the
// checkpoint if there is one, then arm Hops in order.
type Target struct {
	HasCheckpoint bool
	CheckpointID  uint64
	Position      uint64
	Costs         uint64
	Hops          []trace.Event
}

// Planner computes minimal cost hop chains while streaming a trace forward.
// It is not safe for concurrent use.
type Planner struct {
	src          trace.Source
	cfg          Config
	log          *zap.Logger
	onCheckpoint func(Checkpoint)

	last        map[trace.Event]uint64
	chain       []Hop
	costs       uint64
	checkpoints []Checkpoint
	pos         uint64
	req         uint64
	err         error
}

func NewPlanner(src trace.Source, cfg Config, opts ...Option) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &Planner{
		src:          src,
		cfg:          cfg,
		log:          o.log,
		onCheckpoint: o.onCheckpoint,
		last:         make(map[trace.Event]uint64),
	}, nil
}

func (p *Planner) Config() Config {
	return p.cfg
}

// Position returns the last trace position consumed.
func (p *Planner) Position() uint64 {
	return p.pos
}

func (p *Planner) Chain() []Hop {
	return slices.Clone(p.chain)
}

// Checkpoints returns the checkpoints created so far, indexed by id. The
// chains are shared with the planner and must not be modified.
func (p *Planner) Checkpoints() []Checkpoint {
	return slices.Clone(p.checkpoints)
}

// Expand returns the current chain with every leading checkpoint hop
// replaced by the chain saved in that checkpoint.
func (p *Planner) Expand() []Hop {
	return p.expand(p.chain)
}

func (p *Planner) expand(chain []Hop) []Hop {
	if len(chain) == 0 || !chain[0].IsCheckpoint() || chain[0].Event.Addr >= uint64(len(p.checkpoints)) {
		return slices.Clone(chain)
	}
	cp := p.checkpoints[chain[0].Event.Addr]
	return append(p.expand(cp.Chain), chain[1:]...)
}

// AdvanceTo consumes the trace up to target and returns the plan for it.
// Targets must not decrease between calls, 0 always yields an empty plan.
func (p *Planner) AdvanceTo(target uint64) (Target, error) {
	if p.err != nil {
		return Target{}, p.err
	}
	if target == 0 {
		return Target{}, nil
	}
	if target < p.req {
		return Target{}, fmt.Errorf("%w: %d requested after %d", ErrPositionRegressed, target, p.req)
	}
	p.req = target
	for p.pos < target {
		step, err := p.src.Next()
		if err == io.EOF {
			return Target{}, fmt.Errorf("%w: no step at position %d, trace ends at %d", ErrTraceExhausted, target, p.pos)
		} else if err != nil {
			return Target{}, p.fail(fmt.Errorf("step after position %d: %w", p.pos, err))
		}
		if step.Pos <= p.pos {
			return Target{}, p.fail(fmt.Errorf("%w: position %d follows %d", trace.ErrTraceCorrupt, step.Pos, p.pos))
		}
		if err = p.step(step); err != nil {
			return Target{}, p.fail(err)
		}
	}
	return p.render()
}

func (p *Planner) fail(err error) error {
	p.err = err
	return err
}

func (p *Planner) step(step trace.Step) error {
	pos := step.Pos
	p.pos = pos

	var (
		best    trace.Event
		bestPos uint64 = math.MaxUint64
		found   bool
		reset   bool
	)
	for _, ev := range step.Events {
		if !p.cfg.UseWatchpoints && ev.Access != trace.ACCESS_EXECUTE {
			continue
		}
		last, ok := p.last[ev]
		p.last[ev] = pos
		if !ok {
			// first occurrence, a single hop reaches it
			if !reset {
				p.chain = append(p.chain[:0], Hop{Event: ev, Pos: pos})
				p.costs = COST_CHANGE
				reset = true
			}
			continue
		}
		if last < bestPos {
			best, bestPos, found = ev, last, true
		}
	}
	if reset {
		return nil
	}
	if !found {
		return fmt.Errorf("%w: position %d", ErrNoCandidate, pos)
	}

	forbidden, err := p.prune(best, bestPos)
	if err != nil {
		return err
	}

	if n := len(p.chain); n > 0 {
		p.costs += transition(p.chain[n-1].Event, best)
	} else {
		p.costs += COST_CHANGE
	}
	p.chain = append(p.chain, Hop{Event: best, Pos: pos})

	if p.cfg.UseCheckpoints && p.costs > p.cfg.CheckpointThreshold && !forbidden {
		cp := Checkpoint{
			ID:    uint64(len(p.checkpoints)),
			Pos:   pos,
			Costs: p.costs,
			Chain: slices.Clone(p.chain),
		}
		p.checkpoints = append(p.checkpoints, cp)
		p.chain = append(p.chain[:0], checkpointHop(cp.ID, pos))
		p.costs = p.cfg.CheckpointCosts
		p.log.Debug("creating checkpoint", zap.Uint64("id", cp.ID), zap.Uint64("position", pos), zap.Uint64("costs", cp.Costs))
		if p.onCheckpoint != nil {
			p.onCheckpoint(cp)
		}
	}
	return nil
}

// prune drops trailing hops that the candidate, last seen at bestPos, makes
// redundant. It reports whether a checkpoint hop had to be kept because
// removing it would roll back too few hops.
func (p *Planner) prune(best trace.Event, bestPos uint64) (bool, error) {
	for len(p.chain) > 0 {
		n := len(p.chain)
		last := p.chain[n-1]

		var (
			left Hop
			cp   *Checkpoint
		)
		if n > 1 {
			left = p.chain[n-2]
		} else if last.IsCheckpoint() {
			id := last.Event.Addr
			if id >= uint64(len(p.checkpoints)) {
				return false, fmt.Errorf("%w: unknown checkpoint %d", ErrChainCorrupt, id)
			}
			cp = &p.checkpoints[id]
			if len(cp.Chain) < 2 {
				break
			}
			prev := cp.Chain[:len(cp.Chain)-1]
			if uint64(len(prev)) <= p.cfg.RollbackThreshold || prev[uint64(len(prev))-1-p.cfg.RollbackThreshold].Pos < bestPos {
				return true, nil
			}
			left = prev[len(prev)-1]
		} else {
			break
		}

		if p.cfg.UseWeights {
			if bestPos >= left.Pos {
				break
			}
		} else if bestPos > left.Pos {
			break
		}
		// left was reached on the same step the candidate was last seen, but
		// through another trigger: dropping the tail would make it ambiguous
		if bestPos == left.Pos && left.Event != best {
			break
		}

		if cp != nil {
			n := len(cp.Chain)
			p.costs = cp.Costs - transition(cp.Chain[n-2].Event, cp.Chain[n-1].Event)
			p.chain = slices.Clone(cp.Chain[:n-1])
			p.log.Debug("rewinding checkpoint", zap.Uint64("id", cp.ID), zap.Uint64("position", cp.Pos))
			continue
		}
		p.costs -= transition(left.Event, last.Event)
		p.chain = p.chain[:n-1]
	}
	return false, nil
}

func (p *Planner) render() (Target, error) {
	t := Target{Costs: p.costs}
	chain := p.chain
	if len(chain) > 0 && chain[0].IsCheckpoint() {
		t.HasCheckpoint, t.CheckpointID = true, chain[0].Event.Addr
		chain = chain[1:]
	}
	if len(chain) > 0 {
		t.Position = chain[len(chain)-1].Pos
	}
	t.Hops = make([]trace.Event, len(chain))
	for i, h := range chain {
		if h.IsCheckpoint() {
			return Target{}, p.fail(fmt.Errorf("%w: checkpoint %d after head of chain", ErrChainCorrupt, h.Event.Addr))
		}
		t.Hops[i] = h.Event
	}
	return t, nil
}
