package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/engine"
)

// ReceiveOptions holds flags for the receive command.
type ReceiveOptions struct {
	*RootOptions
	Qty      string
	UnitCost string
	At       string
	Note     string
}

// NewReceiveCommand creates the receive command.
func NewReceiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReceiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "receive <material>",
		Short: "Record a purchase into a new lot",
		Long: `Record a purchase. The quantity becomes a new lot at the given unit cost.
--at backdates the lot for FIFO purposes.

Example:
  roastery receive green-eth --qty 60 --unit-cost 7.25 --at 2024-02-28 --note "lot 114"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Qty, "qty", "", "quantity received (required)")
	cmd.Flags().StringVar(&opts.UnitCost, "unit-cost", "", "cost per unit (required)")
	cmd.Flags().StringVar(&opts.At, "at", "", "acquisition time (default now)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free-text note")
	_ = cmd.MarkFlagRequired("qty")
	_ = cmd.MarkFlagRequired("unit-cost")

	return cmd
}

func runReceive(opts *ReceiveOptions, materialID string, cmd *cobra.Command) error {
	req := engine.RecordRequest{Kind: domain.KindPurchase, MaterialID: materialID, Note: opts.Note}
	var err error
	if req.Quantity, err = parseDecimal("qty", opts.Qty); err != nil {
		return err
	}
	if req.UnitCost, err = parseDecimal("unit-cost", opts.UnitCost); err != nil {
		return err
	}
	if req.AcquiredAt, err = parseTime("at", opts.At); err != nil {
		return err
	}
	return record(opts.RootOptions, req, cmd)
}

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Qty      string
	UnitCost string
	Note     string
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <sale|loss|adjustment> <material>",
		Short: "Record a sale, loss or count adjustment",
		Long: `Record a stock movement outside production.

Sales and losses draw from the oldest lots first. An adjustment is signed:
a positive one creates a lot at --unit-cost, a negative one draws like a loss.

Examples:
  roastery record sale roasted-house --qty 2.5
  roastery record loss green-bra --qty 0.4 --note "water damage"
  roastery record adjustment green-eth --qty=-1.2 --note "stocktake"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Qty, "qty", "", "quantity (required; signed for adjustments)")
	cmd.Flags().StringVar(&opts.UnitCost, "unit-cost", "", "cost per unit of a positive adjustment")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free-text note")
	_ = cmd.MarkFlagRequired("qty")

	return cmd
}

func runRecord(opts *RecordOptions, kind, materialID string, cmd *cobra.Command) error {
	req := engine.RecordRequest{
		Kind:       domain.EntryKind(strings.ToUpper(kind)),
		MaterialID: materialID,
		Note:       opts.Note,
	}
	switch req.Kind {
	case domain.KindSale, domain.KindLoss, domain.KindAdjustment:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be sale, loss or adjustment", kind))
	}

	var err error
	if req.Quantity, err = parseDecimal("qty", opts.Qty); err != nil {
		return err
	}
	if opts.UnitCost != "" {
		if req.UnitCost, err = parseDecimal("unit-cost", opts.UnitCost); err != nil {
			return err
		}
	}
	return record(opts.RootOptions, req, cmd)
}

func record(opts *RootOptions, req engine.RecordRequest, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := opts.formatter(cmd)
	res, err := a.engine.Record(commandContext(cmd), req)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.JSON(res)
	}

	w := f.Writer
	e := res.Entry
	fmt.Fprintf(w, "✓ %s %s %s (entry %s)\n", e.Kind, e.MaterialID, e.Delta.String(), e.ID)
	if res.Lot != nil {
		fmt.Fprintf(w, "  New lot %s at %s per unit\n", res.Lot.ID, money(res.Lot.UnitCost))
	}
	for _, d := range res.Draws {
		fmt.Fprintf(w, "  Drew %s from lot %s at %s\n", weight(d.Quantity), d.LotID, money(d.UnitCost))
	}
	fmt.Fprintf(w, "  Cost %s\n", money(e.Cost))
	return nil
}

// ReverseOptions holds flags for the reverse command.
type ReverseOptions struct {
	*RootOptions
	Note string
}

// NewReverseCommand creates the reverse command.
func NewReverseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReverseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reverse <entry-id>",
		Short: "Append the compensating entry for a mistaken ledger entry",
		Long: `Append the compensating entry for a mistaken ledger entry. The ledger is
never edited. Production entries cannot be reversed, and a purchase can only be
reversed while nothing has been drawn from its lot.

Example:
  roastery reverse 0190a4c2-7c1e-7d7a-9f3e-2b6d1c0e8a41 --note "keyed twice"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReverse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Note, "note", "", "why the entry is reversed")

	return cmd
}

func runReverse(opts *ReverseOptions, entryID string, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := opts.formatter(cmd)
	rev, err := a.engine.Reverse(commandContext(cmd), entryID, opts.Note)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.JSON(rev)
	}
	fmt.Fprintf(f.Writer, "✓ Reversed %s with %s (%s %s)\n", entryID, rev.ID, rev.MaterialID, rev.Delta.String())
	return nil
}
