package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/ardnew/mcuhal/board"
	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
	"github.com/ardnew/mcuhal/pkg/prof"
)

// options holds the persistent flags shared by every command.
type options struct {
	board   string
	mem     string
	memBase string
	format  string
	verbose bool
	json    bool
	trace   []string

	cpuProfile string
	memProfile string
	session    *prof.Session

	registry *board.Registry
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "halctl",
		Short:         "Inspect MCU boards and peripheral registers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd.ErrOrStderr(), opts.verbose, opts.json)
			for _, c := range opts.trace {
				pkg.SetComponentLevel(pkg.Component(c), slog.LevelDebug)
			}
			if opts.format != "text" && opts.format != "yaml" {
				return fmt.Errorf("--format %q: want text or yaml: %w", opts.format, pkg.ErrInvalidParameter)
			}
			s, err := prof.Start(opts.cpuProfile, opts.memProfile)
			if err != nil {
				return err
			}
			opts.session = s
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return opts.session.Stop()
		},
	}

	def := os.Getenv("HALCTL_BOARD")
	if def == "" {
		def = "pico"
	}
	f := cmd.PersistentFlags()
	f.StringVarP(&opts.board, "board", "b", def, "board name (default from $HALCTL_BOARD)")
	f.StringVar(&opts.mem, "mem", mmio.DevMem, "physical memory device or register snapshot file")
	f.StringVar(&opts.memBase, "mem-base", "0", "bus address of offset zero in --mem")
	f.StringVarP(&opts.format, "format", "o", "text", "output format: text or yaml")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	f.BoolVar(&opts.json, "json", false, "log as JSON")
	f.StringSliceVar(&opts.trace, "trace", nil, "debug-log only these components (spi, uart, mmio, reset, board, ...)")
	f.StringVar(&opts.cpuProfile, "cpuprofile", "", "write a CPU profile (profile builds)")
	f.StringVar(&opts.memProfile, "memprofile", "", "write a heap profile on exit (profile builds)")

	cmd.AddCommand(
		newBoardsCmd(),
		newPeripheralsCmd(opts),
		newOrderCmd(opts),
		newRegsCmd(opts),
		newPeekCmd(opts),
		newPokeCmd(opts),
		newDumpCmd(opts),
		newWaitCmd(opts),
		newResetCmd(opts),
	)
	return cmd
}

// setupLogging installs a colourised tint handler, or a JSON handler when
// requested, on the shared HAL logger.
func setupLogging(w io.Writer, verbose, json bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	pkg.SetLogLevel(level)
	pkg.ResetComponentLevels()
	if json {
		pkg.SetLogger(pkg.NewJSONLogger(w, nil))
		return
	}
	pkg.SetLogger(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      pkg.LevelFloor(),
		TimeFormat: time.Kitchen,
		NoColor:    !colorful(w),
	})))
}

func colorful(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func (o *options) findBoard() (*board.Board, error) {
	return board.Find(o.board)
}

// claim takes the named peripherals of b for the running command. Names
// are claimed once even if repeated; release returns every handle taken.
func (o *options) claim(b *board.Board, names ...string) (hs []*board.Handle, release func(), err error) {
	if o.registry == nil || o.registry.Board() != b {
		o.registry = board.NewRegistry(b)
	}
	release = func() {
		for _, h := range hs {
			if err := o.registry.Release(h); err != nil {
				pkg.LogWarn(pkg.ComponentCLI, "release failed", "peripheral", h.Name(), "error", err)
			}
		}
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if p, ok := b.Peripheral(name); ok {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
		}
		h, err := o.registry.Claim(name)
		if err != nil {
			release()
			return nil, nil, err
		}
		hs = append(hs, h)
	}
	return hs, release, nil
}
