package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/engine"
)

// ExecuteOptions holds flags for the execute command.
type ExecuteOptions struct {
	*RootOptions
	Inputs map[string]string
	Output string
	Target string
	Loss   map[string]string
	Notes  string
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecuteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "execute <recipe>",
		Short: "Record a roast and consume its inputs",
		Long: `Record a roast as it happened: the green weight put in per component and
the roasted weight that came out. Inputs are drawn from the oldest lots first,
the output becomes a new lot at the pooled cost of what was consumed, and the
batch is written. Either all of it is recorded or none of it.

Exit codes:
  0 - Batch recorded
  1 - Rejected (insufficient stock, invalid quantities, etc.)
  2 - Command error

Examples:
  roastery execute house --input green-eth=12 --input green-bra=8 --output 17.2
  roastery execute house --input green-eth=12,green-bra=8 --output 17.2 --target 17
  roastery execute eth-light --input green-eth=5 --output 4.3 --notes "sample roast"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringToStringVar(&opts.Inputs, "input", nil, "green weight put in per material (material=weight)")
	cmd.Flags().StringVar(&opts.Output, "output", "", "roasted weight that came out (required)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "weight the roast was planned for (default: output)")
	cmd.Flags().StringToStringVar(&opts.Loss, "loss", nil, "loss rate the roast was planned with (material=rate)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-text notes for the batch")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (o *ExecuteOptions) request(recipeID string) (engine.ExecuteRequest, error) {
	req := engine.ExecuteRequest{RecipeID: recipeID, Notes: o.Notes}
	var err error
	if req.Inputs, err = parseDecimalMap("input", o.Inputs); err != nil {
		return req, err
	}
	if req.OutputWeight, err = parseDecimal("output", o.Output); err != nil {
		return req, err
	}
	if o.Target != "" {
		target, err := parseDecimal("target", o.Target)
		if err != nil {
			return req, err
		}
		req.TargetOutputWeight = decimal.NewNullDecimal(target)
	}
	if req.LossRateOverrides, err = parseDecimalMap("loss", o.Loss); err != nil {
		return req, err
	}
	return req, nil
}

func runExecute(opts *ExecuteOptions, recipeID string, cmd *cobra.Command) error {
	req, err := opts.request(recipeID)
	if err != nil {
		return err
	}

	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := opts.formatter(cmd)
	batch, err := a.engine.Execute(commandContext(cmd), req)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.JSON(batch)
	}
	fmt.Fprintf(f.Writer, "✓ Batch %s recorded\n\n", batch.ID)
	printBatch(f, batch)
	return nil
}

func printBatch(f *OutputFormatter, b *domain.ProductionBatch) {
	w := f.Writer
	fmt.Fprintf(w, "Batch %s  %s (%s) -> %s\n", b.ID, b.RecipeID, b.RecipeKind, b.OutputMaterialID)
	fmt.Fprintf(w, "Produced: %s\n", b.ProducedAt.Format("2006-01-02 15:04:05 MST"))
	if b.Notes != "" {
		fmt.Fprintf(w, "Notes:    %s\n", b.Notes)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-18s %6s %6s %10s %10s %12s\n", "MATERIAL", "RATIO", "LOSS", "PLANNED", "ACTUAL", "COST")
	for _, c := range b.Components {
		fmt.Fprintf(w, "  %-18s %6s %6s %10s %10s %12s\n",
			c.MaterialID, c.Ratio.String(), rate(c.LossRate), weight(c.Planned), weight(c.Actual), money(c.Cost))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Input:         %s (planned %s for %s)\n", weight(b.ActualInputTotal), weight(b.PlannedInputTotal), weight(b.TargetOutputWeight))
	fmt.Fprintf(w, "Output:        %s into lot %s\n", weight(b.ActualOutputWeight), b.OutputLotID)
	fmt.Fprintf(w, "Realized loss: %s\n", rate(b.RealizedLossRate))
	fmt.Fprintf(w, "Cost:          %s (%s per unit)\n", money(b.TotalCost), money(b.UnitCost))
}
