package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/store"
)

// BatchesOptions holds flags for the batches command.
type BatchesOptions struct {
	*RootOptions
	From     string
	To       string
	Material string
	Kind     string
	Limit    int
	Cursor   string
}

// NewBatchesCommand creates the batches command.
func NewBatchesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List production batches, newest first",
		Long: `List production batches, newest first, one page at a time.

--material matches batches that consumed or produced the material.
Pass the printed cursor to --cursor to fetch the next page.

Examples:
  roastery batches
  roastery batches --from 2024-03-01 --to 2024-04-01 --kind BLEND
  roastery batches --material green-eth --limit 10 --cursor c2VxOjQy`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatches(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "earliest production time, inclusive")
	cmd.Flags().StringVar(&opts.To, "to", "", "latest production time, exclusive")
	cmd.Flags().StringVar(&opts.Material, "material", "", "only batches that used or produced this material")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only SINGLE or BLEND batches")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, fmt.Sprintf("page size (default %d, max %d)", store.DefaultPageSize, store.MaxPageSize))
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "continue after a previous page")

	return cmd
}

func (o *BatchesOptions) filter() (domain.BatchFilter, error) {
	f := domain.BatchFilter{
		MaterialID: o.Material,
		RecipeKind: domain.RecipeKind(strings.ToUpper(o.Kind)),
		Limit:      o.Limit,
		Cursor:     o.Cursor,
	}
	switch f.RecipeKind {
	case "", domain.RecipeSingle, domain.RecipeBlend:
	default:
		return f, NewExitError(ExitCommandError, fmt.Sprintf("invalid --kind %q: must be SINGLE or BLEND", o.Kind))
	}
	var err error
	if f.From, err = parseTime("from", o.From); err != nil {
		return f, err
	}
	if f.To, err = parseTime("to", o.To); err != nil {
		return f, err
	}
	return f, nil
}

func runBatches(opts *BatchesOptions, cmd *cobra.Command) error {
	filter, err := opts.filter()
	if err != nil {
		return err
	}

	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := opts.formatter(cmd)
	page, err := a.engine.ListBatches(commandContext(cmd), filter)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.JSON(page)
	}

	w := f.Writer
	if len(page.Batches) == 0 {
		fmt.Fprintln(w, "No batches found.")
		return nil
	}
	fmt.Fprintf(w, "%-16s %-17s %-12s %-6s %10s %10s %6s %10s\n",
		"PRODUCED", "BATCH", "RECIPE", "KIND", "INPUT", "OUTPUT", "LOSS", "UNIT COST")
	for _, b := range page.Batches {
		fmt.Fprintf(w, "%-16s %-17s %-12s %-6s %10s %10s %6s %10s\n",
			b.ProducedAt.Format("2006-01-02 15:04"), b.ID, b.RecipeID, b.RecipeKind,
			weight(b.ActualInputTotal), weight(b.ActualOutputWeight), rate(b.RealizedLossRate), money(b.UnitCost))
	}
	if page.NextCursor != "" {
		fmt.Fprintf(w, "\nMore batches: --cursor %s\n", page.NextCursor)
	}
	return nil
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <id>",
		Short: "Show one production batch",
		Long: `Show one production batch with its planned and actual component weights.

Example:
  roastery batch RB-20240301-001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runBatch(opts *RootOptions, id string, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	f := opts.formatter(cmd)
	batch, err := a.engine.GetBatch(commandContext(cmd), id)
	if err != nil {
		return f.Fail(err)
	}

	if opts.Format == "json" {
		return f.JSON(batch)
	}
	printBatch(f, &batch)
	return nil
}
