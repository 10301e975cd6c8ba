package collector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wnxd/microfi/hops"
	"github.com/wnxd/microfi/hops/ipmsg"
)

type Mode int

const (
	MODE_RESULTS Mode = iota
	MODE_COSTS
	MODE_STATISTICS
)

var ErrModeInvalid = errors.New("output mode invalid")

func ParseMode(s string) (Mode, error) {
	switch s {
	case "results":
		return MODE_RESULTS, nil
	case "costs":
		return MODE_COSTS, nil
	case "statistics":
		return MODE_STATISTICS, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrModeInvalid, s)
}

func (m Mode) String() string {
	switch m {
	case MODE_RESULTS:
		return "results"
	case MODE_COSTS:
		return "costs"
	case MODE_STATISTICS:
		return "statistics"
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

type Option func(*Collector)

// WithProtobuf writes results as a message stream instead of text lines.
func WithProtobuf(w *ipmsg.Writer) Option {
	return func(c *Collector) {
		c.pw = w
	}
}

// WithCheckpointLog writes one "<n> <position>" line per checkpoint to w.
func WithCheckpointLog(w io.Writer) Option {
	return func(c *Collector) {
		c.cpw = bufio.NewWriter(w)
	}
}

func WithMetrics(m *Metrics, traceName string) Option {
	return func(c *Collector) {
		c.results = m.ResultsTotal.WithLabelValues(traceName)
		c.checkpoints = m.CheckpointsTotal.WithLabelValues(traceName)
		c.costs = m.Costs.WithLabelValues(traceName)
	}
}

// Collector writes the outcome of one planning session.
type Collector struct {
	mode Mode
	w    *bufio.Writer
	pw   *ipmsg.Writer
	cpw  *bufio.Writer

	results     prometheus.Counter
	checkpoints prometheus.Counter
	costs       prometheus.Observer

	nresults     uint64
	ncheckpoints uint64
	meanCosts    float64
	start        time.Time
	runtime      time.Duration
	heap         uint64
}

func New(w io.Writer, mode Mode, opts ...Option) *Collector {
	c := &Collector{mode: mode, w: bufio.NewWriter(w)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) StartTimer() {
	c.start = time.Now()
}

func (c *Collector) StopTimer() {
	c.runtime = time.Since(c.start)
}

// SampleMemory records the heap size if it is the largest seen so far.
func (c *Collector) SampleMemory() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.heap = max(c.heap, ms.HeapAlloc)
}

// AddTarget records the plan for one trace position.
func (c *Collector) AddTarget(t hops.Target) error {
	c.account(t.Costs)
	switch c.mode {
	case MODE_COSTS:
		return c.writeCosts(t.Costs)
	case MODE_RESULTS:
		m, err := ipmsg.FromTarget(t)
		if err != nil {
			return err
		}
		if c.pw != nil {
			return c.pw.Write(m)
		}
		if s := m.String(); s != "" {
			_, err = fmt.Fprintln(c.w, s)
		}
		return err
	}
	return nil
}

// AddCosts records a position for which only costs were estimated.
func (c *Collector) AddCosts(costs uint64) error {
	c.account(costs)
	if c.mode == MODE_COSTS {
		return c.writeCosts(costs)
	}
	return nil
}

func (c *Collector) account(costs uint64) {
	c.nresults++
	c.meanCosts += (float64(costs) - c.meanCosts) / float64(c.nresults)
	if c.results != nil {
		c.results.Inc()
		c.costs.Observe(float64(costs))
	}
}

func (c *Collector) writeCosts(costs uint64) error {
	_, err := fmt.Fprintf(c.w, "%d %d\n", c.nresults-1, costs)
	return err
}

func (c *Collector) AddCheckpoint(cp hops.Checkpoint) error {
	c.ncheckpoints++
	if c.checkpoints != nil {
		c.checkpoints.Inc()
	}
	if c.cpw == nil {
		return nil
	}
	_, err := fmt.Fprintf(c.cpw, "%d %d\n", cp.ID, cp.Pos)
	return err
}

func (c *Collector) Results() uint64 {
	return c.nresults
}

func (c *Collector) Checkpoints() uint64 {
	return c.ncheckpoints
}

func (c *Collector) MeanCosts() float64 {
	return c.meanCosts
}

// Finish writes the statistics line in statistics mode and flushes all
// outputs. The underlying writers stay open.
func (c *Collector) Finish() error {
	var errs []error
	if c.mode == MODE_STATISTICS {
		_, err := fmt.Fprintf(c.w, "%d %g %d %g %d\n", c.nresults, c.runtime.Seconds(), c.heap, c.meanCosts, c.ncheckpoints)
		errs = append(errs, err)
	}
	errs = append(errs, c.w.Flush())
	if c.cpw != nil {
		errs = append(errs, c.cpw.Flush())
	}
	return errors.Join(errs...)
}
