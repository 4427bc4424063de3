package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/mcuhal/board"
	"github.com/ardnew/mcuhal/chip/rp2040"
	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// target is a register selected on the command line.
type target struct {
	p    *board.Peripheral
	addr uintptr
}

func (t target) String() string {
	return registerAt(t.p, t.addr)
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("number %q: %w", s, pkg.ErrInvalidParameter)
	}
	return v, nil
}

// resolve parses PERIPHERAL, PERIPHERAL.REGISTER, PERIPHERAL+OFFSET or a
// bus address inside a known peripheral.
func resolve(b *board.Board, s string) (target, error) {
	if v, err := parseUint(s); err == nil {
		p, ok := b.PeripheralAt(uintptr(v))
		if !ok {
			return target{}, fmt.Errorf("%#x is not inside a peripheral of %s: %w",
				v, b.Name, pkg.ErrInvalidAddress)
		}
		return target{p, uintptr(v)}, nil
	}

	name, rest, sep := s, "", byte(0)
	if i := strings.IndexAny(s, ".+"); i >= 0 {
		name, rest, sep = s[:i], s[i+1:], s[i]
	}
	p, ok := b.Peripheral(name)
	if !ok {
		return target{}, fmt.Errorf("board %s: peripheral %q: %w", b.Name, name, pkg.ErrNotFound)
	}

	var off uintptr
	switch sep {
	case '.':
		regs, err := layout(p.Kind)
		if err != nil {
			return target{}, err
		}
		found := false
		for _, r := range regs {
			if strings.EqualFold(r.Name, rest) {
				off, found = r.Offset, true
				break
			}
		}
		if !found {
			return target{}, fmt.Errorf("%s has no register %q: %w", p.Kind, rest, pkg.ErrNotFound)
		}
	case '+':
		v, err := parseUint(rest)
		if err != nil {
			return target{}, err
		}
		off = uintptr(v)
	}
	if off%4 != 0 || off+4 > uintptr(p.Size) {
		return target{}, fmt.Errorf("%s+%#x: %w", p.Name, off, pkg.ErrInvalidAddress)
	}
	return target{p, uintptr(p.Base) + off}, nil
}

// window maps size bytes at base from the memory source.
func (o *options) window(base, size uintptr, readOnly bool) (*mmio.Window, error) {
	fb, err := parseUint(o.memBase)
	if err != nil {
		return nil, fmt.Errorf("--mem-base: %w", err)
	}
	opts := []mmio.MapOption{mmio.FileBase(uintptr(fb))}
	if readOnly {
		opts = append(opts, mmio.ReadOnly())
	}
	return mmio.Map(o.mem, base, size, opts...)
}

// register maps the single register named by arg.
func (o *options) register(arg string, readOnly bool) (target, *mmio.U32, func() error, error) {
	b, err := o.findBoard()
	if err != nil {
		return target{}, nil, nil, err
	}
	t, err := resolve(b, arg)
	if err != nil {
		return target{}, nil, nil, err
	}
	_, release, err := o.claim(b, t.p.Name)
	if err != nil {
		return target{}, nil, nil, err
	}
	w, err := o.window(t.addr, 4, readOnly)
	if err != nil {
		release()
		return target{}, nil, nil, err
	}
	r, err := w.Reg32(t.addr)
	if err != nil {
		w.Close()
		release()
		return target{}, nil, nil, err
	}
	done := func() error {
		defer release()
		return w.Close()
	}
	return t, r, done, nil
}

func newPeekCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "peek TARGET",
		Short: "Read one register",
		Long: "Read one register. TARGET is PERIPHERAL, PERIPHERAL.REGISTER,\n" +
			"PERIPHERAL+OFFSET or a bus address inside a known peripheral.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, r, done, err := opts.register(args[0], true)
			if err != nil {
				return err
			}
			defer done()
			fmt.Fprintf(cmd.OutOrStdout(), "%v %s = 0x%08x\n", board.Addr(t.addr), t, r.Load())
			return nil
		},
	}
}

func newPokeCmd(opts *options) *cobra.Command {
	var mask string
	cmd := &cobra.Command{
		Use:   "poke TARGET VALUE",
		Short: "Write one register",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseUint(args[1])
			if err != nil {
				return err
			}
			m := uint64(0xFFFF_FFFF)
			if mask != "" {
				if m, err = parseUint(mask); err != nil {
					return err
				}
			}
			if v > 0xFFFF_FFFF || m > 0xFFFF_FFFF {
				return fmt.Errorf("value %#x mask %#x: %w", v, m, pkg.ErrInvalidParameter)
			}
			t, r, done, err := opts.register(args[0], false)
			if err != nil {
				return err
			}
			defer done()
			old := r.Load()
			if m == 0xFFFF_FFFF {
				r.Store(uint32(v))
			} else {
				r.StoreBits(uint32(m), uint32(v))
			}
			mmio.Barrier()
			pkg.LogInfo(pkg.ComponentCLI, "poke", "register", t.String(),
				"old", fmt.Sprintf("0x%08x", old), "value", fmt.Sprintf("0x%08x", v))
			fmt.Fprintf(cmd.OutOrStdout(), "%v %s = 0x%08x (was 0x%08x)\n", board.Addr(t.addr), t, r.Load(), old)
			return nil
		},
	}
	cmd.Flags().StringVar(&mask, "mask", "", "only write the bits in MASK")
	return cmd
}

// dumpEntry is one register of a dump.
type dumpEntry struct {
	Name  string     `yaml:"name"`
	Addr  board.Addr `yaml:"addr"`
	Value uint32     `yaml:"value"`
}

func newDumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump PERIPHERAL",
		Short: "Read every register of a peripheral",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.findBoard()
			if err != nil {
				return err
			}
			hs, release, err := opts.claim(b, args[0])
			if err != nil {
				return err
			}
			defer release()
			p := hs[0].Peripheral()
			w, err := opts.window(hs[0].Base(), uintptr(p.Size), true)
			if err != nil {
				return err
			}
			defer w.Close()

			regs, err := layout(p.Kind)
			if err != nil {
				for off := uintptr(0); off+4 <= uintptr(p.Size); off += 4 {
					regs = append(regs, mmio.Register{Name: fmt.Sprintf("+%#x", off), Offset: off})
				}
			}
			entries := make([]dumpEntry, 0, len(regs))
			for _, r := range regs {
				reg, err := w.Reg32(uintptr(p.Base) + r.Offset)
				if err != nil {
					return err
				}
				entries = append(entries, dumpEntry{r.Name, p.Base + board.Addr(r.Offset), reg.Load()})
			}

			if opts.format == "yaml" {
				return writeYAML(cmd.OutOrStdout(), map[string][]dumpEntry{p.Name: entries})
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%v  %-12s 0x%08x\n", e.Addr, e.Name, e.Value)
			}
			return nil
		},
	}
}

func newWaitCmd(opts *options) *cobra.Command {
	var (
		timeout time.Duration
		cleared bool
	)
	cmd := &cobra.Command{
		Use:   "wait TARGET MASK",
		Short: "Wait until the bits in MASK are set (or clear) in a register",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseUint(args[1])
			if err != nil {
				return err
			}
			t, r, done, err := opts.register(args[0], true)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if cleared {
				err = mmio.WaitClear(ctx, r, uint32(m))
			} else {
				err = mmio.WaitBits(ctx, r, uint32(m))
			}
			if err != nil {
				return fmt.Errorf("%s: %w", t, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = 0x%08x\n", t, r.Load())
			return nil
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", time.Second, "give up after this long")
	cmd.Flags().BoolVar(&cleared, "clear", false, "wait for the bits to clear")
	return cmd
}

func newResetCmd(opts *options) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "reset PERIPHERAL...",
		Short: "Cycle peripherals through the reset controller",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.findBoard()
			if err != nil {
				return err
			}
			mask, err := b.ResetMask(args...)
			if err != nil {
				return err
			}
			p, ok := b.Peripheral("resets")
			if !ok || p.Kind != "rp2040.resets" {
				return fmt.Errorf("board %s has no reset controller: %w", b.Name, pkg.ErrNotSupported)
			}
			// The controller and every peripheral being cycled are held
			// for the duration.
			hs, release, err := opts.claim(b, append([]string{p.Name}, args...)...)
			if err != nil {
				return err
			}
			defer release()
			ctl := hs[0]
			w, err := opts.window(ctl.Base(), uintptr(p.Size), false)
			if err != nil {
				return err
			}
			defer w.Close()
			regs, err := mmio.View[rp2040.ResetsRegs](w, ctl.Base())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := rp2040.NewResets(regs).Cycle(ctx, mask); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s (mask 0x%08x)\n", strings.Join(args, " "), mask)
			return nil
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", time.Second, "give up after this long")
	return cmd
}
