package hops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microfi/trace"
)

func estimate(t *testing.T, e *Estimator, src trace.Source) []uint64 {
	t.Helper()
	var costs []uint64
	for {
		step, err := src.Next()
		if err != nil {
			return costs
		}
		c, err := e.Step(step)
		require.NoError(t, err)
		costs = append(costs, c)
	}
}

func TestEstimator(t *testing.T) {
	e, err := NewEstimator(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 1, 3, 3, 5}, estimate(t, e, executes(A, B, A, B, A)))
}

func TestEstimatorRarestEvent(t *testing.T) {
	e, err := NewEstimator(DefaultConfig())
	require.NoError(t, err)
	src := trace.Build(
		[]trace.Event{X(A)},
		[]trace.Event{X(A)},
		[]trace.Event{X(A), R(0x2000)},
		[]trace.Event{X(A), R(0x2000)},
	)
	assert.Equal(t, []uint64{1, 3, 1, 3}, estimate(t, e, src))
}

func TestEstimatorCheckpoints(t *testing.T) {
	var created []Checkpoint
	e, err := NewEstimator(withCheckpoints(4, 1, 0),
		WithCheckpointHandler(func(cp Checkpoint) { created = append(created, cp) }))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 1, 3, 3, 1, 2, 2}, estimate(t, e, executes(A, B, A, B, A, B, A)))
	require.Len(t, created, 1)
	assert.Equal(t, uint64(0), created[0].ID)
	assert.Equal(t, uint64(5), created[0].Pos)
}

func TestEstimatorNoCandidate(t *testing.T) {
	e, err := NewEstimator(DefaultConfig())
	require.NoError(t, err)
	_, err = e.Step(trace.Step{Pos: 1})
	assert.ErrorIs(t, err, ErrNoCandidate)
}
