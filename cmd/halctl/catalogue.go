package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ardnew/mcuhal/board"
	"github.com/ardnew/mcuhal/pkg"
)

func newBoardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the supported boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BOARD\tCHIP\tCORE\tCLOCK")
			for _, name := range board.Default().Names() {
				b, _ := board.Find(name)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", b.Name, b.Chip, b.Core, b.ClockHz)
			}
			return tw.Flush()
		},
	}
}

func newPeripheralsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "peripherals",
		Aliases: []string{"periph"},
		Short:   "List the peripherals of the selected board",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := opts.findBoard()
			if err != nil {
				return err
			}
			if opts.format == "yaml" {
				return writeYAML(cmd.OutOrStdout(), b)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tBASE\tSIZE\tIRQ\tRESET\tDEPENDS")
			for _, name := range b.Names() {
				p, _ := b.Peripheral(name)
				fmt.Fprintf(tw, "%s\t%s\t%v\t%#x\t%s\t%s\t%s\n",
					p.Name, p.Kind, p.Base, uintptr(p.Size),
					optional(p.IRQ), optional(p.Reset), strings.Join(p.Depends, ","))
			}
			return tw.Flush()
		},
	}
}

func newOrderCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "order [PERIPHERAL...]",
		Short: "Print the order in which peripherals must be brought up",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.findBoard()
			if err != nil {
				return err
			}
			order, err := b.BringUpOrder(args...)
			if err != nil {
				return err
			}
			for i, name := range order {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d %s\n", i+1, name)
			}
			return nil
		},
	}
}

func newRegsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "regs PERIPHERAL|KIND",
		Short: "Print the register layout of a peripheral or peripheral kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, base := args[0], uintptr(0)
			if b, err := opts.findBoard(); err == nil {
				if p, ok := b.Peripheral(args[0]); ok {
					kind, base = p.Kind, uintptr(p.Base)
				}
			}
			regs, err := layout(kind)
			if err != nil {
				return fmt.Errorf("%w (known kinds: %s)", err, strings.Join(kindNames(), ", "))
			}
			w := cmd.OutOrStdout()
			for _, r := range regs {
				if base != 0 {
					fmt.Fprintf(w, "%v  +0x%03x  %s\n", board.Addr(base+r.Offset), r.Offset, r.Name)
				} else {
					fmt.Fprintf(w, "+0x%03x  %s\n", r.Offset, r.Name)
				}
			}
			return nil
		},
	}
}

func optional(v *uint8) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w: %v", pkg.ErrGeneric, err)
	}
	return enc.Close()
}
