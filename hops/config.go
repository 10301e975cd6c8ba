package hops

import "fmt"

type Config struct {
	UseWatchpoints      bool
	UseWeights          bool
	UseCheckpoints      bool
	CheckpointThreshold uint64
	CheckpointCosts     uint64
	RollbackThreshold   uint64
}

// DefaultConfig plans with breakpoints and watchpoints, weighted ordering and
// no checkpoints.
func DefaultConfig() Config {
	return Config{UseWatchpoints: true, UseWeights: true}
}

func (c Config) Validate() error {
	if !c.UseCheckpoints {
		return nil
	}
	if c.CheckpointThreshold <= c.CheckpointCosts {
		return fmt.Errorf("%w: checkpoint threshold %d must exceed checkpoint costs %d", ErrConfigInvalid, c.CheckpointThreshold, c.CheckpointCosts)
	}
	if limit := (c.CheckpointThreshold - c.CheckpointCosts) / 2; c.RollbackThreshold >= limit {
		return fmt.Errorf("%w: rollback threshold %d must be below %d", ErrConfigInvalid, c.RollbackThreshold, limit)
	}
	return nil
}
