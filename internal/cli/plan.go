package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/roverlab/traverse/pkg/pipeline"
	"github.com/roverlab/traverse/pkg/search"
	"github.com/roverlab/traverse/pkg/store"
	"github.com/roverlab/traverse/pkg/terrain"
)

// planCommand creates the plan command.
func (c *CLI) planCommand() *cobra.Command {
	var (
		startStr string
		goalStr  string
		noCache  bool
		browse   bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute the Pareto front between two map cells",
		Long: `Compute the Pareto front of routes between two map cells.

The plan command compiles the map's terrain layers and the plan's robot
limits and objectives into a cost map graph, then searches it exhaustively.
Every printed route is non-dominated: no other route is at least as good on
all objectives and strictly better on one.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			opts.Start, err = parseCoord(startStr)
			if err != nil {
				return fmt.Errorf("parse --start: %w", err)
			}
			opts.Goal, err = parseCoord(goalStr)
			if err != nil {
				return fmt.Errorf("parse --goal: %w", err)
			}
			return c.runPlan(cmd, opts, noCache, browse)
		},
	}

	cmd.Flags().StringVarP(&opts.MapConfig, "map", "m", "", "map configuration file (required)")
	cmd.Flags().StringVarP(&opts.PlanConfig, "plan", "p", "", "plan configuration file (required)")
	cmd.Flags().StringVarP(&startStr, "start", "s", "", "start cell as row,col (required)")
	cmd.Flags().StringVarP(&goalStr, "goal", "g", "", "goal cell as row,col (required)")
	cmd.Flags().IntVar(&opts.LabelCap, "label-cap", 0, "bound stored labels per cell (0 = exhaustive)")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "persist the front to the record store")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&browse, "browse", false, "browse the front interactively")
	_ = cmd.MarkFlagRequired("map")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("goal")

	return cmd
}

// runPlan executes the pipeline and prints the front.
func (c *CLI) runPlan(cmd *cobra.Command, opts pipeline.Options, noCache, browse bool) error {
	var st store.Store
	if opts.Save {
		var err error
		st, err = newStore()
		if err != nil {
			return fmt.Errorf("open record store: %w", err)
		}
		defer st.Close(cmd.Context())
	}

	runner, err := c.newRunner(noCache, st)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}

	opts.Logger = c.Logger

	ctx := cmd.Context()
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Planning %v %s %v...", opts.Start, iconArrow, opts.Goal))
	spinner.Start()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Planning failed")
		return err
	}
	spinner.Stop()

	switch result.Status {
	case search.StatusNoPath:
		printWarning("No route: the goal is unreachable from the start")
		return nil
	case search.StatusComplete:
		printSuccess("Found %d Pareto-optimal route(s)", len(result.Front))
	}
	if result.Truncated {
		printWarning("Label cap reached: the front may be incomplete")
	}
	printSearchStats(len(result.Front), result.Stats.Expanded, result.CacheInfo.PlanHit)

	printNewline()
	printFront(result.Objectives, result.Front)

	if len(result.RecordIDs) > 0 {
		printNewline()
		printInfo("Saved %d record(s)", len(result.RecordIDs))
		for _, id := range result.RecordIDs {
			printDetail("%s", id)
		}
		printNextStep("Inspect them", "traverse records list")
	}

	if browse && len(result.Front) > 0 {
		return browseRecords(frontRecords(result))
	}
	return nil
}

// frontRecords wraps a fresh front as records for the interactive browser.
// Saved routes keep their store IDs; unsaved ones get positional stand-ins.
func frontRecords(result *pipeline.Result) []*store.PathRecord {
	recs := make([]*store.PathRecord, len(result.Front))
	for i, p := range result.Front {
		rec := &store.PathRecord{
			Coords:     p.Coords,
			Cost:       p.Cost,
			Objectives: result.Objectives,
			ConfigRef:  result.ConfigHash,
		}
		if i < len(result.RecordIDs) {
			rec.ID = result.RecordIDs[i]
			rec.Seq = int64(i + 1)
		} else {
			rec.ID = "route-" + strconv.Itoa(i+1)
		}
		recs[i] = rec
	}
	return recs
}

// printFront renders the Pareto front as a table, one row per route.
func printFront(objectives []string, front []search.Path) {
	headers := append([]string{"#"}, objectives...)
	headers = append(headers, "steps")

	rows := make([][]string, len(front))
	for i, p := range front {
		row := []string{strconv.Itoa(i + 1)}
		for _, v := range p.Cost {
			row = append(row, strconv.FormatFloat(v, 'g', 6, 64))
		}
		row = append(row, strconv.Itoa(len(p.Coords)-1))
		rows[i] = row
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			}
			if col == 0 {
				return StyleDim
			}
			return StyleValue
		})
	fmt.Println(t.Render())
}

// parseCoord parses a "row,col" cell reference.
func parseCoord(s string) (terrain.Coord, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return terrain.Coord{}, fmt.Errorf("expected row,col, got %q", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return terrain.Coord{}, fmt.Errorf("bad row %q", parts[0])
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return terrain.Coord{}, fmt.Errorf("bad col %q", parts[1])
	}
	return terrain.Coord{Row: row, Col: col}, nil
}
