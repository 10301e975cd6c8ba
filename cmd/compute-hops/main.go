package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wnxd/microfi/config"
	"github.com/wnxd/microfi/hops"
	"github.com/wnxd/microfi/internal/collector"
	"github.com/wnxd/microfi/internal/logging"
	"go.uber.org/zap"
)

var errUsage = errors.New("invalid usage")

type options struct {
	inputs      []string
	output      string
	mode        string
	algorithm   string
	protobuf    bool
	useCosts    bool
	watchpoints bool
	checkpoints bool
	cpThreshold uint64
	cpCosts     uint64
	cpRollback  uint64
	cpOutput    string
	configPath  string
	metricsFile string
	maxSteps    uint64
	verbose     bool

	logger *zap.Logger
}

// settings is the validated result of flags and config file.
type settings struct {
	planner   hops.Config
	maxSteps  uint64
	mode      collector.Mode
	simple    bool
	protobuf  bool
	output    string
	cpOutput  string
	multi     bool
	inputs    []string
	metricsTo string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "compute-hops -i trace [-i trace ...]",
		Short: "Compute hop chains for every position of an execution trace",
		Long: `compute-hops streams one or more execution traces and, for every trace
position, plans the cheapest chain of breakpoints and watchpoints a debugger
has to arm to stop there. Several traces are planned concurrently, each into
its own output file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			opts.logger, err = logging.New(opts.verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts.logger, s)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.inputs, "input-file", "i", nil, "Input trace file path, repeatable")
	f.StringVarP(&opts.output, "output-file", "o", "-", "Output file, a directory with several inputs, - for stdout")
	f.StringVarP(&opts.mode, "output-mode", "m", "results", "Output mode (results, costs, statistics)")
	f.StringVarP(&opts.algorithm, "algorithm", "a", "smart", "Hop algorithm (smart, simple)")
	f.BoolVarP(&opts.protobuf, "protobuf-output", "b", false, "Write results as a gzip compressed protobuf stream")
	f.BoolVarP(&opts.useCosts, "use-costs", "c", false, "Use hop costs for calculations of the smart algorithm")
	f.BoolVarP(&opts.watchpoints, "use-watchpoints", "w", false, "Use watchpoints as additional hop candidates")
	f.BoolVar(&opts.checkpoints, "use-checkpoints", false, "Use checkpoints to cap costs of long hop chains")
	f.Uint64Var(&opts.cpThreshold, "cp-costs-threshold", 0, "Costs at which a checkpoint is created")
	f.Uint64Var(&opts.cpCosts, "cp-costs", 0, "Costs of restoring a checkpoint")
	f.Uint64Var(&opts.cpRollback, "cp-rollback-threshold", 0, "Minimal number of hops rolled back beyond a checkpoint, below (cp-costs-threshold - cp-costs) / 2")
	f.StringVar(&opts.cpOutput, "cp-output", "", "Checkpoint output file, a directory with several inputs")
	f.StringVar(&opts.configPath, "config", "", "TOML or YAML config file, flags take precedence")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write prometheus metrics to this file when done")
	f.Uint64Var(&opts.maxSteps, "max-steps", 0, "Stop after this many trace steps, 0 reads the whole trace")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	_ = cmd.MarkFlagRequired("input-file")
	return cmd
}

func resolve(cmd *cobra.Command, opts *options) (settings, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return settings{}, err
		}
	}
	f := cmd.Flags()
	p := &cfg.Planner
	if f.Changed("use-watchpoints") {
		p.UseWatchpoints = opts.watchpoints
	}
	if f.Changed("use-costs") {
		p.UseWeights = opts.useCosts
	}
	if f.Changed("use-checkpoints") {
		p.UseCheckpoints = opts.checkpoints
	}
	if f.Changed("max-steps") {
		p.MaxSteps = opts.maxSteps
	}

	cpFlags := 0
	for _, name := range []string{"cp-costs-threshold", "cp-costs", "cp-rollback-threshold"} {
		if f.Changed(name) {
			cpFlags++
		}
	}
	switch {
	case p.UseCheckpoints && opts.configPath == "" && cpFlags != 3:
		return settings{}, fmt.Errorf("%w: with checkpoints enabled, cp-costs-threshold, cp-costs and cp-rollback-threshold must be defined", errUsage)
	case !p.UseCheckpoints && cpFlags > 0:
		return settings{}, fmt.Errorf("%w: with checkpoints disabled, cp-costs-threshold, cp-costs and cp-rollback-threshold must not be defined", errUsage)
	}
	if f.Changed("cp-costs-threshold") {
		p.CheckpointThreshold = opts.cpThreshold
	}
	if f.Changed("cp-costs") {
		p.CheckpointCosts = opts.cpCosts
	}
	if f.Changed("cp-rollback-threshold") {
		p.RollbackThreshold = opts.cpRollback
	}
	if p.UseCheckpoints && opts.cpOutput == "" {
		return settings{}, fmt.Errorf("%w: with checkpoints enabled, --cp-output must be defined", errUsage)
	}
	if err := cfg.Validate(); err != nil {
		return settings{}, err
	}

	mode, err := collector.ParseMode(opts.mode)
	if err != nil {
		return settings{}, err
	}
	var simple bool
	switch opts.algorithm {
	case "smart":
	case "simple":
		simple = true
		if f.Changed("use-costs") && opts.useCosts {
			return settings{}, fmt.Errorf("%w: hop costs can only be used with the smart algorithm", errUsage)
		}
	default:
		return settings{}, fmt.Errorf("%w: unknown algorithm %q", errUsage, opts.algorithm)
	}
	if opts.protobuf && (opts.output == "" || opts.output == "-") {
		return settings{}, fmt.Errorf("%w: protobuf output needs an output file", errUsage)
	}
	multi := len(opts.inputs) > 1
	if multi && (opts.output == "" || opts.output == "-") {
		return settings{}, fmt.Errorf("%w: several inputs need an output directory", errUsage)
	}

	return settings{
		planner:   p.Hops(),
		maxSteps:  p.MaxSteps,
		mode:      mode,
		simple:    simple,
		protobuf:  opts.protobuf,
		output:    opts.output,
		cpOutput:  opts.cpOutput,
		multi:     multi,
		inputs:    opts.inputs,
		metricsTo: opts.metricsFile,
	}, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
