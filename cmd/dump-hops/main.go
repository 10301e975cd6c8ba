package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/wnxd/microfi/hops/ipmsg"
	"github.com/wnxd/microfi/replay"
	"github.com/wnxd/microfi/trace/protostream"
)

type options struct {
	verbose     bool
	tracePath   string
	checkpoints string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "dump-hops file",
		Short:         "Print a protobuf hop stream as text",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			var v *verifier
			if opts.tracePath != "" {
				if v, err = newVerifier(opts.tracePath, opts.checkpoints); err != nil {
					return err
				}
			}
			return dump(cmd.Context(), cmd.OutOrStdout(), f, opts.verbose, v)
		},
	}
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Also print target position and costs")
	cmd.Flags().StringVar(&opts.tracePath, "trace", "", "Replay every message on this trace and fail on a mismatch")
	cmd.Flags().StringVar(&opts.checkpoints, "checkpoints", "", "Checkpoint log written by compute-hops --cp-output")
	return cmd
}

// verifier replays hop chains on a fresh reader of the trace for every
// message.
type verifier struct {
	path string
	cps  map[uint64]uint64
}

func newVerifier(path, cpPath string) (*verifier, error) {
	v := &verifier{path: path, cps: make(map[uint64]uint64)}
	if cpPath == "" {
		return v, nil
	}
	f, err := os.Open(cpPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for line := 1; s.Scan(); line++ {
		var id, pos uint64
		if _, err := fmt.Sscan(s.Text(), &id, &pos); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", cpPath, line, err)
		}
		v.cps[id] = pos
	}
	return v, s.Err()
}

func (v *verifier) lookup(id uint64) (uint64, bool) {
	pos, ok := v.cps[id]
	return pos, ok
}

func (v *verifier) verify(ctx context.Context, m ipmsg.Message) error {
	target, err := m.Target()
	if err != nil {
		return err
	}
	src, err := protostream.Open(v.path)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := replay.Verify(ctx, src, target, v.lookup); err != nil {
		return fmt.Errorf("%s: %w", m, err)
	}
	return nil
}

func dump(ctx context.Context, w io.Writer, r io.Reader, verbose bool, v *verifier) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mr, err := ipmsg.NewReader(r)
	if err != nil {
		return err
	}
	defer mr.Close()
	for {
		m, err := mr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		if v != nil {
			if err := v.verify(ctx, m); err != nil {
				return err
			}
		}
		if verbose {
			_, err = fmt.Fprintf(w, "%d %d %s\n", m.TargetTracePosition, m.Costs, m)
		} else {
			_, err = fmt.Fprintln(w, m)
		}
		if err != nil {
			return err
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
