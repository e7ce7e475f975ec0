package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// StockOptions holds flags for the stock command.
type StockOptions struct {
	*RootOptions
	All bool
}

// NewStockCommand creates the stock command.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stock <material>",
		Short: "Show a material's stock and its lots",
		Long: `Show a material's stock, derived from the ledger, and the lots making it
up in the order they will be consumed.

Examples:
  roastery stock green-eth
  roastery stock roasted-house --all`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStock(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "include exhausted lots")

	return cmd
}

func runStock(opts *StockOptions, materialID string, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := opts.formatter(cmd)
	ctx := commandContext(cmd)
	report, err := a.engine.Stock(ctx, materialID)
	if err != nil {
		return f.Fail(err)
	}
	if opts.All {
		if report.Lots, err = a.engine.Lots(ctx, materialID, true); err != nil {
			return f.Fail(err)
		}
	}

	if opts.Format == "json" {
		return f.JSON(report)
	}

	w := f.Writer
	m := report.Material
	fmt.Fprintf(w, "%s (%s, %s)\n", m.ID, m.Name, m.Category)
	fmt.Fprintf(w, "Stock: %s  Value: %s\n", weight(report.Stock), money(report.Value))
	if len(report.Lots) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-16s %-38s %10s %10s %10s\n", "ACQUIRED", "LOT", "ORIGINAL", "REMAINING", "UNIT COST")
	for _, l := range report.Lots {
		fmt.Fprintf(w, "  %-16s %-38s %10s %10s %10s\n",
			l.AcquiredAt.Format("2006-01-02 15:04"), l.ID, weight(l.Original), weight(l.Remaining), money(l.UnitCost))
	}
	return nil
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate and list the material and recipe catalog",
		Long: `Load the catalog's .cue files, validate them against the schema and
list the materials and recipes. The database is not opened.

Exit codes:
  0 - Catalog is valid
  2 - Catalog failed to load

Example:
  roastery catalog --catalog ./catalog`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, cmd)
		},
	}
	return cmd
}

func runCatalog(opts *RootOptions, cmd *cobra.Command) error {
	_, cat, err := opts.loadCatalog()
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		return f.JSON(map[string]any{
			"materials": cat.Materials(),
			"recipes":   cat.Recipes(),
		})
	}

	w := f.Writer
	fmt.Fprintln(w, "Materials:")
	for _, m := range cat.Materials() {
		loss := "-"
		if m.LossRate.Valid {
			loss = rate(m.LossRate.Decimal)
		}
		fmt.Fprintf(w, "  %-18s %-9s %6s  %s\n", m.ID, m.Category, loss, m.Name)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recipes:")
	for _, r := range cat.Recipes() {
		fmt.Fprintf(w, "  %-18s %-6s -> %s\n", r.ID, r.Kind(), r.OutputMaterialID)
		for _, c := range r.Components {
			fmt.Fprintf(w, "      %-18s %s\n", c.MaterialID, c.Ratio.String())
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "✓ %d materials, %d recipes\n", len(cat.Materials()), len(cat.Recipes()))
	return nil
}
