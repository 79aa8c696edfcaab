package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/roverlab/traverse/pkg/store"
)

// recordsCommand creates the records management command.
func (c *CLI) recordsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage stored path records",
	}

	cmd.AddCommand(c.recordsListCommand())
	cmd.AddCommand(c.recordsShowCommand())
	cmd.AddCommand(c.recordsDeleteCommand())
	cmd.AddCommand(c.recordsExportCommand())
	cmd.AddCommand(c.recordsBrowseCommand())

	return cmd
}

// recordsListCommand creates the "records list" subcommand.
func (c *CLI) recordsListCommand() *cobra.Command {
	var (
		component int
		minStr    string
		maxStr    string
		sortBy    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored path records",
		Long: `List stored path records.

Records can be filtered by an inclusive bound on one cost component and
sorted by any component. Without --sort, records keep insertion order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := buildFilter(component, minStr, maxStr, sortBy)
			if err != nil {
				return err
			}

			st, err := newStore()
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer st.Close(cmd.Context())

			recs, err := st.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				printInfo("No records stored")
				return nil
			}
			printRecordTable(recs)
			return nil
		},
	}

	cmd.Flags().IntVar(&component, "component", 0, "cost component index the bound applies to")
	cmd.Flags().StringVar(&minStr, "min", "", "inclusive lower bound on the component")
	cmd.Flags().StringVar(&maxStr, "max", "", "inclusive upper bound on the component")
	cmd.Flags().IntVar(&sortBy, "sort", -1, "cost component index to sort by (ascending)")

	return cmd
}

// recordsShowCommand creates the "records show" subcommand.
func (c *CLI) recordsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one path record",
		Args:  cobra.ExactArgs(1),
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

			printKeyValue("ID", rec.ID)
			printKeyValue("Sequence", strconv.FormatInt(rec.Seq, 10))
			printKeyValue("Steps", strconv.Itoa(len(rec.Coords)-1))
			printKeyValue("Cost", formatCost(rec))
			printKeyValue("Config", rec.ConfigRef)
			printKeyValue("Created", rec.CreatedAt.Format(time.RFC3339))
			printKeyValue("Route", fmt.Sprintf("%v %s %v", rec.Coords[0], iconArrow, rec.Coords[len(rec.Coords)-1]))
			return nil
		},
	}
}

// recordsDeleteCommand creates the "records delete" subcommand.
func (c *CLI) recordsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one path record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStore()
			if err != nil {
				return fmt.Errorf("open record store: %w", err)
			}
			defer st.Close(cmd.Context())

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		},
	}
}

// recordsExportCommand creates the "records export" subcommand.
func (c *CLI) recordsExportCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export one path record as JSON or CSV",
		Long: `Export one path record.

JSON exports the full record. CSV exports the coordinate sequence, one
row,col pair per line, for loading into external tools.`,
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

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := exportRecord(w, rec, format); err != nil {
				return err
			}
			if output != "" {
				printFile(output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "export format: json, csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

// recordsBrowseCommand creates the "records browse" subcommand.
func (c *CLI) recordsBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse stored records interactively",
		Args:  cobra.NoArgs,
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
			if len(recs) == 0 {
				printInfo("No records stored")
				return nil
			}
			return browseRecords(recs)
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

// buildFilter turns list flags into a store filter.
func buildFilter(component int, minStr, maxStr string, sortBy int) (store.Filter, error) {
	var f store.Filter
	if sortBy >= 0 {
		f.SortComponent = &sortBy
	}
	if minStr == "" && maxStr == "" {
		return f, nil
	}

	bound := store.Bound{Component: component}
	if minStr != "" {
		v, err := strconv.ParseFloat(minStr, 64)
		if err != nil {
			return f, fmt.Errorf("bad --min %q", minStr)
		}
		bound.Min = &v
	}
	if maxStr != "" {
		v, err := strconv.ParseFloat(maxStr, 64)
		if err != nil {
			return f, fmt.Errorf("bad --max %q", maxStr)
		}
		bound.Max = &v
	}
	f.Bounds = append(f.Bounds, bound)
	return f, nil
}

// printRecordTable renders stored records as a table.
func printRecordTable(recs []*store.PathRecord) {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			strconv.FormatInt(r.Seq, 10),
			shortID(r.ID),
			formatCost(r),
			strconv.Itoa(len(r.Coords) - 1),
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Seq", "ID", "Cost", "Steps", "Created").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			}
			if col == 0 || col == 4 {
				return StyleDim
			}
			return StyleValue
		})
	fmt.Println(t.Render())
}

// formatCost formats a record's cost vector, labeled when objective names
// were stored.
func formatCost(rec *store.PathRecord) string {
	parts := make([]string, len(rec.Cost))
	for i, v := range rec.Cost {
		val := strconv.FormatFloat(v, 'g', 4, 64)
		if i < len(rec.Objectives) {
			parts[i] = rec.Objectives[i] + "=" + val
		} else {
			parts[i] = val
		}
	}
	return strings.Join(parts, " ")
}

// shortID abbreviates a record ID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// exportRecord writes a record in the requested format.
func exportRecord(w io.Writer, rec *store.PathRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"row", "col"}); err != nil {
			return err
		}
		for _, c := range rec.Coords {
			if err := cw.Write([]string{strconv.Itoa(c.Row), strconv.Itoa(c.Col)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q (want json or csv)", format)
	}
}
