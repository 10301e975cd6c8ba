package hops

import (
	"fmt"
	"math"

	"github.com/wnxd/microfi/trace"
	"go.uber.org/zap"
)

// Estimator approximates hop costs without building chains: every step is
// reached by repeatedly hitting the rarest of its triggers.
type Estimator struct {
	cfg          Config
	log          *zap.Logger
	onCheckpoint func(Checkpoint)

	seen        map[trace.Event]uint64
	sinceCP     map[trace.Event]uint64
	checkpoints uint64
}

func NewEstimator(cfg Config, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &Estimator{
		cfg:          cfg,
		log:          o.log,
		onCheckpoint: o.onCheckpoint,
		seen:         make(map[trace.Event]uint64),
		sinceCP:      make(map[trace.Event]uint64),
	}, nil
}

// Step accounts step and returns the estimated costs of reaching it.
func (e *Estimator) Step(step trace.Step) (uint64, error) {
	var (
		candidate trace.Event
		hits      uint64 = math.MaxUint64
		found     bool
	)
	for _, ev := range step.Events {
		if !e.cfg.UseWatchpoints && ev.Access != trace.ACCESS_EXECUTE {
			continue
		}
		e.seen[ev]++
		e.sinceCP[ev]++
		if n := e.seen[ev]; n < hits {
			candidate, hits, found = ev, n, true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: position %d", ErrNoCandidate, step.Pos)
	}

	costs := COST_CHANGE + COST_NO_CHANGE*(hits-1)
	if e.cfg.UseCheckpoints && costs > e.cfg.CheckpointThreshold {
		costs = COST_CHANGE + COST_NO_CHANGE*(e.sinceCP[candidate]-1) + e.cfg.CheckpointCosts
		if costs > e.cfg.CheckpointThreshold {
			cp := Checkpoint{ID: e.checkpoints, Pos: step.Pos, Costs: costs}
			e.checkpoints++
			clear(e.sinceCP)
			costs = e.cfg.CheckpointCosts
			e.log.Debug("creating checkpoint", zap.Uint64("id", cp.ID), zap.Uint64("position", cp.Pos))
			if e.onCheckpoint != nil {
				e.onCheckpoint(cp)
			}
		}
	}
	return costs, nil
}
