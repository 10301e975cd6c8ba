package hops

import "github.com/wnxd/microfi/trace"

// Single-step cost model of a debugger walking a hop chain. Arming a new
// trigger stops right at the event, re-arming the same one needs an extra
// single step to move past the previous hit.
const (
	COST_CHANGE    uint64 = 1
	COST_NO_CHANGE uint64 = 2
)

// Hop is a trigger to arm and the trace position it was last seen at. A hop
// whose event is a checkpoint access stands for the restored checkpoint with
// the id stored in Addr.
type Hop struct {
	Event trace.Event
	Pos   uint64
}

func (h Hop) IsCheckpoint() bool {
	return h.Event.Access == trace.ACCESS_CHECKPOINT
}

func checkpointHop(id, pos uint64) Hop {
	return Hop{Event: trace.Event{Addr: id, Access: trace.ACCESS_CHECKPOINT}, Pos: pos}
}

func transition(from, to trace.Event) uint64 {
	if from == to {
		return COST_NO_CHANGE
	}
	return COST_CHANGE
}

// Costs recomputes the costs of chain from scratch. A leading checkpoint hop
// costs restore.
func Costs(chain []Hop, restore uint64) uint64 {
	if len(chain) == 0 {
		return 0
	}
	var costs uint64
	if chain[0].IsCheckpoint() {
		costs = restore
	} else {
		costs = COST_CHANGE
	}
	for i := 1; i < len(chain); i++ {
		costs += transition(chain[i-1].Event, chain[i].Event)
	}
	return costs
}
