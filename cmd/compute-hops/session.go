package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/wnxd/microfi/hops"
	"github.com/wnxd/microfi/hops/ipmsg"
	"github.com/wnxd/microfi/internal/collector"
	"github.com/wnxd/microfi/trace"
	"github.com/wnxd/microfi/trace/protostream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// positions between cancellation checks and memory samples
const checkInterval = 1 << 14

type session struct {
	id       string
	name     string
	input    string
	output   string
	cpOutput string
}

func run(ctx context.Context, log *zap.Logger, s settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var metrics *collector.Metrics
	if s.metricsTo != "" {
		metrics = collector.NewMetrics()
	}

	sessions := make([]session, len(s.inputs))
	for i, input := range s.inputs {
		sess := session{
			id:       uuid.NewString(),
			name:     filepath.Base(input),
			input:    input,
			output:   s.output,
			cpOutput: s.cpOutput,
		}
		if s.multi {
			base := strings.TrimSuffix(sess.name, filepath.Ext(sess.name))
			sess.output = filepath.Join(s.output, base+".hops")
			if s.cpOutput != "" {
				sess.cpOutput = filepath.Join(s.cpOutput, base+".cp")
			}
		}
		sessions[i] = sess
	}
	if s.multi {
		if err := os.MkdirAll(s.output, 0o755); err != nil {
			return err
		}
		if s.cpOutput != "" {
			if err := os.MkdirAll(s.cpOutput, 0o755); err != nil {
				return err
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			logger := log.With(zap.String("session", sess.id), zap.String("trace", sess.name))
			if err := sess.run(ctx, logger, s, metrics); err != nil {
				logger.Error("planning failed", zap.Error(err))
				return fmt.Errorf("%s: %w", sess.input, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if metrics != nil {
		return metrics.WriteFile(s.metricsTo)
	}
	return nil
}

func (sess session) run(ctx context.Context, log *zap.Logger, s settings, metrics *collector.Metrics) (err error) {
	r, err := protostream.Open(sess.input)
	if err != nil {
		return err
	}
	defer r.Close()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = errors.Join(err, closers[i].Close())
		}
	}()

	var out io.Writer = os.Stdout
	if sess.output != "-" {
		f, err := os.Create(sess.output)
		if err != nil {
			return err
		}
		closers = append(closers, f)
		out = f
	}

	var opts []collector.Option
	if s.protobuf {
		pw := ipmsg.NewWriter(out, true)
		closers = append(closers, pw)
		opts = append(opts, collector.WithProtobuf(pw))
	}
	if sess.cpOutput != "" {
		f, err := os.Create(sess.cpOutput)
		if err != nil {
			return err
		}
		closers = append(closers, f)
		opts = append(opts, collector.WithCheckpointLog(f))
	}
	if metrics != nil {
		opts = append(opts, collector.WithMetrics(metrics, sess.name))
	}
	coll := collector.New(out, s.mode, opts...)

	var cpErr error
	onCheckpoint := hops.WithCheckpointHandler(func(cp hops.Checkpoint) {
		cpErr = errors.Join(cpErr, coll.AddCheckpoint(cp))
	})

	log.Info("planning started", zap.String("input", sess.input), zap.Bool("simple", s.simple))
	src := trace.Limit(r, s.maxSteps)
	coll.StartTimer()
	if s.simple {
		err = estimate(ctx, src, s.planner, coll, hops.WithLogger(log), onCheckpoint)
	} else {
		err = plan(ctx, src, s.planner, coll, hops.WithLogger(log), onCheckpoint)
	}
	coll.StopTimer()
	coll.SampleMemory()
	if err = errors.Join(err, cpErr); err != nil {
		return err
	}
	log.Info("planning finished",
		zap.Uint64("results", coll.Results()),
		zap.Uint64("checkpoints", coll.Checkpoints()),
		zap.Float64("mean_costs", coll.MeanCosts()))
	return coll.Finish()
}

func plan(ctx context.Context, src trace.Source, cfg hops.Config, coll *collector.Collector, opts ...hops.Option) error {
	p, err := hops.NewPlanner(src, cfg, opts...)
	if err != nil {
		return err
	}
	for pos := uint64(1); ; pos++ {
		if pos%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			coll.SampleMemory()
		}
		t, err := p.AdvanceTo(pos)
		if errors.Is(err, hops.ErrTraceExhausted) {
			return nil
		} else if err != nil {
			return err
		}
		if err := coll.AddTarget(t); err != nil {
			return err
		}
	}
}

func estimate(ctx context.Context, src trace.Source, cfg hops.Config, coll *collector.Collector, opts ...hops.Option) error {
	e, err := hops.NewEstimator(cfg, opts...)
	if err != nil {
		return err
	}
	for n := uint64(1); ; n++ {
		if n%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			coll.SampleMemory()
		}
		step, err := src.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		costs, err := e.Step(step)
		if err != nil {
			return err
		}
		if err := coll.AddCosts(costs); err != nil {
			return err
		}
	}
}
