package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/roastery/internal/domain"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Target string
	Loss   map[string]string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <recipe>",
		Short: "Compute the green inputs for a target roasted weight",
		Long: `Work backwards from the roasted weight you want to the green weight of
each component, using the component's loss rate. Current stock is compared but
nothing is reserved or written.

Examples:
  roastery plan house --target 20
  roastery plan house --target 20 --loss green-bra=0.14
  roastery plan house --target 20 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "roasted output weight to plan for (required)")
	cmd.Flags().StringToStringVar(&opts.Loss, "loss", nil, "loss rate override per material (material=rate)")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runPlan(opts *PlanOptions, recipeID string, cmd *cobra.Command) error {
	target, err := parseDecimal("target", opts.Target)
	if err != nil {
		return err
	}
	loss, err := parseDecimalMap("loss", opts.Loss)
	if err != nil {
		return err
	}

	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := opts.formatter(cmd)
	plan, err := a.engine.Plan(commandContext(cmd), recipeID, target, loss)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.JSON(plan)
	}
	printPlan(f, plan)
	return nil
}

func printPlan(f *OutputFormatter, p *domain.Plan) {
	w := f.Writer
	fmt.Fprintf(w, "Plan %s (%s) -> %s, target %s\n\n", p.RecipeID, p.Kind, p.OutputMaterialID, weight(p.TargetOutputWeight))
	fmt.Fprintf(w, "  %-18s %6s %6s  %-9s %10s %10s %10s\n", "MATERIAL", "RATIO", "LOSS", "SOURCE", "REQUIRED", "STOCK", "SHORT")
	for _, l := range p.Lines {
		fmt.Fprintf(w, "  %-18s %6s %6s  %-9s %10s %10s %10s\n",
			l.MaterialID, l.Ratio.String(), rate(l.LossRate), l.LossRateSource,
			weight(l.RequiredInput), weight(l.CurrentStock), weight(l.Shortfall))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total input:    %s\n", weight(p.TotalRequiredInput))
	fmt.Fprintf(w, "Effective loss: %s\n", rate(p.EffectiveLossRate))
	if p.Feasible {
		fmt.Fprintln(w, "✓ Stock covers this plan")
		return
	}
	fmt.Fprintf(w, "✗ Short by %s in total\n", weight(p.TotalShortfall))
}
