package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wnxd/microfi/config"
	"github.com/wnxd/microfi/emulator"
	"github.com/wnxd/microfi/faultspace"
	"github.com/wnxd/microfi/internal/fakeemu"
	"github.com/wnxd/microfi/internal/logging"
	"go.uber.org/zap"
)

var errUsage = errors.New("invalid usage")

type options struct {
	configPath string
	verbose    bool
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "fsp",
		Short:         "Inspect the fault space of a configured target",
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
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML or YAML fault space config")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	_ = cmd.MarkPersistentFlagRequired("config")

	cmd.AddCommand(
		newLayoutCmd(opts),
		newDecodeCmd(opts),
		newEncodeRegCmd(opts),
		newInjectCmd(opts),
	)
	return cmd
}

// open builds the configured fault space on top of a fresh fake target.
func (o *options) open() (*faultspace.Space, *fakeemu.Emulator, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	arch := emulator.ARCH_UNKNOWN
	if cfg.FaultSpace.Arch != "" {
		if arch, err = emulator.ParseArch(cfg.FaultSpace.Arch); err != nil {
			return nil, nil, err
		}
	}
	emu := fakeemu.New(arch)
	space, err := cfg.FaultSpace.Build(emu, faultspace.WithLogger(o.logger))
	if err != nil {
		return nil, nil, err
	}
	return space, emu, nil
}

func newLayoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the areas of the fault space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			space, _, err := opts.open()
			if err != nil {
				return err
			}
			defer space.Close()
			w := cmd.OutOrStdout()
			for _, a := range space.Areas() {
				fmt.Fprintf(w, "%-12s %#x %#x\n", a.Name(), a.Offset(), a.Size())
			}
			fmt.Fprintf(w, "%-12s %#x\n", "total", space.Size())
			return nil
		},
	}
}

func newDecodeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "decode address...",
		Short: "Describe the elements at fault space addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			space, _, err := opts.open()
			if err != nil {
				return err
			}
			defer space.Close()
			for _, arg := range args {
				addr, err := parseUint(arg)
				if err != nil {
					return err
				}
				e, err := space.Decode(addr)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%#x %s\n", addr, e)
			}
			return nil
		},
	}
}

func registerArea(space *faultspace.Space) (*faultspace.RegisterArea, error) {
	for _, a := range space.Areas() {
		if regs, ok := a.(*faultspace.RegisterArea); ok {
			return regs, nil
		}
	}
	return nil, fmt.Errorf("%w: no register area configured", faultspace.ErrAreaNotFound)
}

func newEncodeRegCmd(opts *options) *cobra.Command {
	var bits string
	cmd := &cobra.Command{
		Use:   "encode-reg register",
		Short: "Print the fault space addresses of a register",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			space, _, err := opts.open()
			if err != nil {
				return err
			}
			defer space.Close()
			regs, err := registerArea(space)
			if err != nil {
				return err
			}
			info, err := regs.Register(args[0])
			if err != nil {
				return err
			}
			offset, width := uint(0), info.Width
			if bits != "" {
				if offset, width, err = parseBits(bits); err != nil {
					return err
				}
			}
			groups, err := regs.EncodeView(info.Reg, offset, width)
			if err != nil {
				return err
			}
			for _, g := range groups {
				addr, err := space.Encode(g.Element)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%#x mask=%#02x %s\n", addr, g.Mask, g.Element)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bits, "bits", "", "Bit range offset:width of a register view")
	return cmd
}

func newInjectCmd(opts *options) *cobra.Command {
	var (
		flip int
		set  string
		regs []string
		mems []string
	)
	cmd := &cobra.Command{
		Use:   "inject address",
		Short: "Inject a fault into a fake target and show the result",
		Long: `inject prepares a fake target with the given register and memory values,
injects one fault at the fault space address and prints the byte before and
after. Without --flip or --set all bits of the byte are inverted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseUint(args[0])
			if err != nil {
				return err
			}
			fn := faultspace.Injector(faultspace.Invert)
			switch {
			case flip >= 0 && set != "":
				return fmt.Errorf("%w: --flip and --set exclude each other", errUsage)
			case flip >= 8:
				return fmt.Errorf("%w: bit %d out of range", errUsage, flip)
			case flip >= 0:
				fn = faultspace.FlipBit(uint(flip))
			case set != "":
				v, err := strconv.ParseUint(set, 0, 8)
				if err != nil {
					return fmt.Errorf("%w: %w", errUsage, err)
				}
				fn = faultspace.Set(byte(v))
			}

			space, emu, err := opts.open()
			if err != nil {
				return err
			}
			defer space.Close()
			if err := prepare(space, emu, regs, mems); err != nil {
				return err
			}

			e, err := space.Decode(addr)
			if err != nil {
				return err
			}
			res, err := e.Inject(fn)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n%#02x -> %#02x\n", e, res.Original, res.Injected)
			if re, ok := e.(*faultspace.RegisterElement); ok {
				v, err := emu.RegRead(re.Register().Reg)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s = %#x\n", re.Register().Name, v)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&flip, "flip", -1, "Flip this bit of the byte")
	cmd.Flags().StringVar(&set, "set", "", "Overwrite the byte with this value")
	cmd.Flags().StringArrayVar(&regs, "reg", nil, "Initial register value name=value, repeatable")
	cmd.Flags().StringArrayVar(&mems, "mem", nil, "Initial memory byte address=value, repeatable")
	return cmd
}

func prepare(space *faultspace.Space, emu *fakeemu.Emulator, regs, mems []string) error {
	for _, kv := range regs {
		name, value, err := splitAssign(kv)
		if err != nil {
			return err
		}
		area, err := registerArea(space)
		if err != nil {
			return err
		}
		info, err := area.Register(name)
		if err != nil {
			return err
		}
		if err := emu.RegWrite(info.Reg, value); err != nil {
			return err
		}
	}
	for _, kv := range mems {
		key, value, err := splitAssign(kv)
		if err != nil {
			return err
		}
		addr, err := parseUint(key)
		if err != nil {
			return err
		}
		if value > 0xff {
			return fmt.Errorf("%w: memory value %#x exceeds a byte", errUsage, value)
		}
		if err := emu.MemWrite(addr, []byte{byte(value)}); err != nil {
			return err
		}
	}
	return nil
}

func splitAssign(kv string) (string, uint64, error) {
	key, raw, ok := strings.Cut(kv, "=")
	if !ok {
		return "", 0, fmt.Errorf("%w: expected key=value, got %q", errUsage, kv)
	}
	v, err := parseUint(raw)
	return strings.TrimSpace(key), v, err
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errUsage, err)
	}
	return v, nil
}

func parseBits(s string) (uint, uint, error) {
	off, width, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: expected offset:width, got %q", errUsage, s)
	}
	o, err := strconv.ParseUint(off, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", errUsage, err)
	}
	w, err := strconv.ParseUint(width, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", errUsage, err)
	}
	return uint(o), uint(w), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
