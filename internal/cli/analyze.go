package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roverlab/traverse/pkg/analyze"
	"github.com/roverlab/traverse/pkg/store"
)

// analyzeCommand creates the analyze command.
func (c *CLI) analyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Recompute statistics for stored paths",
	}

	cmd.AddCommand(c.analyzeStatsCommand())
	cmd.AddCommand(c.analyzeVerifyCommand())
	cmd.AddCommand(c.analyzeTradeoffCommand())

	return cmd
}

// analyzeStatsCommand creates the "analyze stats" subcommand.
func (c *CLI) analyzeStatsCommand() *cobra.Command {
	var (
		mapPath           string
		exposureLayer     string
		exposureThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "stats [id]",
		Short: "Recompute layer statistics for one stored path",
		Long: `Recompute per-layer statistics for one stored path.

The record's coordinate sequence is replayed against the terrain stack of
the given map: path length, min/max/mean per layer, and optionally the
fraction of path length exposed above a layer threshold.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore()
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer st.Close(cmd.Context())

			rec, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			runner, err := c.newRunner(true, nil)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			stack, _, err := runner.LoadStack(mapPath)
			if err != nil {
				return err
			}

			stats, err := analyze.Summarize(stack, rec, analyze.Options{
				ExposureLayer:     exposureLayer,
				ExposureThreshold: exposureThreshold,
			})
			if err != nil {
				return err
			}

			printKeyValue("ID", stats.ID)
			printKeyValue("Steps", strconv.Itoa(stats.Steps))
			printKeyValue("Length", fmt.Sprintf("%.2f m", stats.Length))
			printKeyValue("Cost", formatCost(rec))
			if stats.Exposure >= 0 {
				printKeyValue("Exposure", fmt.Sprintf("%.1f%%", stats.Exposure*100))
			}
			printNewline()
			for _, ls := range stats.Layers {
				unit := ls.Unit
				if unit != "" {
					unit = " " + unit
				}
				printDetail("%-12s min %.3g  max %.3g  mean %.3g%s", ls.Layer, ls.Min, ls.Max, ls.Mean, unit)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mapPath, "map", "m", "", "map configuration file (required)")
	cmd.Flags().StringVar(&exposureLayer, "exposure-layer", "", "layer for the exposure metric")
	cmd.Flags().Float64Var(&exposureThreshold, "exposure-threshold", 0, "layer value above which a step counts as exposed")
	_ = cmd.MarkFlagRequired("map")

	return cmd
}

// analyzeVerifyCommand creates the "analyze verify" subcommand.
func (c *CLI) analyzeVerifyCommand() *cobra.Command {
	var (
		mapPath   string
		planPath  string
		tolerance float64
	)

	cmd := &cobra.Command{
		Use:   "verify [id]",
		Short: "Replay a stored path and verify its cost vector",
		Long: `Replay a stored path against a freshly built cost map and compare the
recomputed cost vector against the stored one. A mismatch means the record
was planned against different configuration or terrain data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore()
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer st.Close(cmd.Context())

			rec, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			runner, err := c.newRunner(true, nil)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			rebuild := newProgress(c.Logger)
			stack, _, err := runner.LoadStack(mapPath)
			if err != nil {
				return err
			}
			g, _, err := runner.BuildGraph(cmd.Context(), stack, planPath)
			if err != nil {
				return err
			}
			rebuild.done("Rebuilt cost map")

			ok, err := analyze.VerifyCost(g, rec, tolerance)
			if err != nil {
				return err
			}
			if !ok {
				replayed, _ := analyze.Replay(g, rec)
				printError("Cost mismatch: stored %v, replayed %v", rec.Cost, replayed)
				return fmt.Errorf("record %s does not match this cost map", rec.ID)
			}
			printSuccess("Cost verified within tolerance %g", tolerance)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mapPath, "map", "m", "", "map configuration file (required)")
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "plan configuration file (required)")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 1e-9, "per-component absolute tolerance")
	_ = cmd.MarkFlagRequired("map")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

// analyzeTradeoffCommand creates the "analyze tradeoff" subcommand.
func (c *CLI) analyzeTradeoffCommand() *cobra.Command {
	var configRef string

	cmd := &cobra.Command{
		Use:   "tradeoff",
		Short: "Summarize exchange rates across a stored front",
		Long: `Summarize pairwise objective exchange rates across stored records.

For each objective pair the average marginal rate is reported: how much of
one objective a route gives up per unit gained on the other. Use --config
to restrict the analysis to records planned with one configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore()
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer st.Close(cmd.Context())

			recs, err := st.List(cmd.Context(), store.Filter{})
			if err != nil {
				return err
			}
			if configRef != "" {
				kept := recs[:0]
				for _, r := range recs {
					if r.ConfigRef == configRef {
						kept = append(kept, r)
					}
				}
				recs = kept
			}

			tradeoffs, err := analyze.FrontTradeOff(recs)
			if err != nil {
				return err
			}
			for _, to := range tradeoffs {
				printDetail("%s %s %s: %.4g per unit (%d samples)", to.A, iconArrow, to.B, to.Rate, to.Samples)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configRef, "config", "", "restrict to records with this config hash")

	return cmd
}
