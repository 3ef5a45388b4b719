package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/runrec"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored calculation runs",
	Long:  "Commands for listing, viewing, verifying, and exporting run records.",
}

func runsStore(cmd *cobra.Command) (store.Store, error) {
	ctx := cmd.Context()
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func runsFilter(cmd *cobra.Command) store.RunFilter {
	org, _ := cmd.Flags().GetString("org")
	deal, _ := cmd.Flags().GetString("deal")
	posture, _ := cmd.Flags().GetString("posture")
	limit, _ := cmd.Flags().GetInt("limit")

	return store.RunFilter{
		OrgID:   org,
		DealID:  deal,
		Posture: policy.Posture(posture),
		Limit:   limit,
	}
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List calculation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := runsStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(cmd.Context(), runsFilter(cmd))
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := runsStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs verify --

var runsVerifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Recompute a stored run's hashes and check for tampering",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := runsStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "runs verify")
		}

		if err := runrec.Verify(run); err != nil {
			return err
		}
		fmt.Printf("run %s: hashes verified\n", run.ID)
		return nil
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := runsStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(cmd.Context(), runsFilter(cmd))
		if err != nil {
			return eris.Wrap(err, "runs export")
		}
		if len(runs) == 0 {
			return eris.New("no runs to export")
		}

		out, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "xlsx":
			err = exportRunsXLSX(runs, out)
		case "csv":
			err = exportRunsCSV(runs, out)
		default:
			err = eris.Errorf("unsupported export format: %s", format)
		}
		if err != nil {
			return err
		}
		fmt.Printf("exported %d runs to %s\n", len(runs), out)
		return nil
	},
}

var exportHeader = []string{
	"ID", "Org", "Deal", "Posture", "Created",
	"Workflow", "Primary Offer", "Respect Floor", "Buyer Ceiling",
	"Input Hash", "Output Hash", "Policy Hash",
}

// exportRunsXLSX writes one row per run with its identity, hashes, and the
// headline output numbers pulled from the stored output envelope.
func exportRunsXLSX(runs []runrec.Run, path string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Runs")
	if err != nil {
		return eris.Wrap(err, "runs export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().Value = h
	}

	for _, r := range runs {
		row := sheet.AddRow()
		row.AddCell().Value = r.ID.String()
		row.AddCell().Value = r.OrgID
		row.AddCell().Value = r.DealID
		row.AddCell().Value = string(r.Posture)
		row.AddCell().Value = r.CreatedAt.Format("2006-01-02 15:04:05")

		outputs, _ := r.Output["outputs"].(map[string]any)
		row.AddCell().Value = outputString(outputs, "workflow_state")
		addNumberCell(row, outputs, "primary_offer")
		addNumberCell(row, outputs, "respect_floor")
		addNumberCell(row, outputs, "buyer_ceiling")

		row.AddCell().Value = r.InputHash
		row.AddCell().Value = r.OutputHash
		row.AddCell().Value = r.PolicyHash
	}

	return eris.Wrapf(file.Save(path), "runs export: save %s", path)
}

// exportRunsCSV writes the same columns as the xlsx export.
func exportRunsCSV(runs []runrec.Run, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "runs export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return eris.Wrap(err, "runs export: write header")
	}
	for _, r := range runs {
		outputs, _ := r.Output["outputs"].(map[string]any)
		record := []string{
			r.ID.String(),
			r.OrgID,
			r.DealID,
			string(r.Posture),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			outputString(outputs, "workflow_state"),
			outputNumber(outputs, "primary_offer"),
			outputNumber(outputs, "respect_floor"),
			outputNumber(outputs, "buyer_ceiling"),
			r.InputHash,
			r.OutputHash,
			r.PolicyHash,
		}
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "runs export: write row")
		}
	}
	w.Flush()
	return eris.Wrapf(w.Error(), "runs export: flush %s", path)
}

func outputNumber(outputs map[string]any, key string) string {
	if n, ok := outputs[key].(float64); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func outputString(outputs map[string]any, key string) string {
	s, _ := outputs[key].(string)
	return s
}

func addNumberCell(row *xlsx.Row, outputs map[string]any, key string) {
	if n, ok := outputs[key].(float64); ok {
		row.AddCell().SetFloat(n)
		return
	}
	row.AddCell().Value = ""
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []runrec.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORG\tDEAL\tPOSTURE\tWORKFLOW\tCREATED")
	fmt.Fprintln(w, "--\t---\t----\t-------\t--------\t-------")

	for _, r := range runs {
		outputs, _ := r.Output["outputs"].(map[string]any)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID.String()),
			r.OrgID,
			r.DealID,
			r.Posture,
			outputString(outputs, "workflow_state"),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()
}

// truncateID shortens a run UUID for display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	for _, c := range []*cobra.Command{runsListCmd, runsExportCmd} {
		c.Flags().String("org", "", "filter by org identifier")
		c.Flags().String("deal", "", "filter by deal identifier")
		c.Flags().String("posture", "", "filter by posture")
		c.Flags().Int("limit", 50, "max number of runs")
	}
	runsExportCmd.Flags().String("output", "runs.xlsx", "output file path")
	runsExportCmd.Flags().String("format", "xlsx", "export format (xlsx or csv)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsVerifyCmd)
	runsCmd.AddCommand(runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}
