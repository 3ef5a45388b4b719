package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/engine"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <deal.json> [more-deals.json...]",
	Short: "Underwrite one or more deals",
	Long:  "Reads deal fact files, resolves the effective policy for the requested posture, and computes offers, floors, ceilings, and gates with a full audit trace.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		save, _ := cmd.Flags().GetBool("save")
		posture, _ := cmd.Flags().GetString("posture")
		dealID, _ := cmd.Flags().GetString("deal-id")
		orgID, _ := cmd.Flags().GetString("org")
		sandboxPath, _ := cmd.Flags().GetString("sandbox")
		asJSON, _ := cmd.Flags().GetBool("json")

		if dealID != "" && len(args) > 1 {
			return eris.New("--deal-id applies to a single deal file")
		}

		sandbox, err := loadSandbox(sandboxPath)
		if err != nil {
			return err
		}

		eng, st, err := analyzeEngine(ctx, save)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		items := make([]engine.BatchItem, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read deal file %s", path)
			}
			items = append(items, engine.BatchItem{
				Label: path,
				Request: engine.AnalyzeRequest{
					OrgID:   orgID,
					DealID:  dealID,
					Posture: posture,
					Deal:    data,
					Sandbox: sandbox,
					Save:    save,
				},
			})
		}

		results := eng.AnalyzeBatch(ctx, items)

		var failed int
		for _, item := range results {
			if item.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", item.Label, item.Err)
				continue
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(item.Result); err != nil {
					return eris.Wrap(err, "encode result")
				}
			} else {
				formatAnalyzeSummary(os.Stdout, item.Label, item.Result)
			}
		}
		if failed > 0 {
			return eris.Errorf("%d of %d deals failed", failed, len(results))
		}
		return nil
	},
}

// analyzeEngine builds the engine, opening the store only when runs will be
// saved.
func analyzeEngine(ctx context.Context, save bool) (*engine.Engine, store.Store, error) {
	if !save {
		eng, err := initEngine(nil)
		return eng, nil, err
	}
	if err := cfg.Validate("analyze"); err != nil {
		return nil, nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	eng, err := initEngine(st)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	return eng, st, nil
}

// loadSandbox reads what-if policy overrides from a YAML or JSON file.
func loadSandbox(path string) (*policy.SandboxOptions, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read sandbox file %s", path)
	}
	var sandbox policy.SandboxOptions
	if err := yaml.Unmarshal(data, &sandbox); err != nil {
		return nil, eris.Wrapf(err, "parse sandbox file %s", path)
	}
	return &sandbox, nil
}

var moneyPrinter = message.NewPrinter(language.English)

// fmtMoney renders a nullable dollar amount for tabular output.
func fmtMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return moneyPrinter.Sprintf("$%.0f", *v)
}

func formatAnalyzeSummary(out io.Writer, label string, res *engine.AnalyzeResult) {
	o := res.Result.Outputs

	fmt.Fprintf(out, "%s  [%s, run %s]\n", label, res.Run.Posture, res.Run.ID)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  workflow\t%s\tgrade %s\n", o.WorkflowState, o.ConfidenceGrade)
	fmt.Fprintf(w, "  primary offer\t%s\t(%s)\n", fmtMoney(o.PrimaryOffer), o.PrimaryOfferTrack)
	fmt.Fprintf(w, "  respect floor\t%s\t\n", fmtMoney(o.RespectFloor))
	fmt.Fprintf(w, "  buyer ceiling\t%s\t\n", fmtMoney(o.BuyerCeiling))
	fmt.Fprintf(w, "  spread\t%s\tgate %s\n", fmtMoney(o.SpreadCash), o.CashGateStatus)
	w.Flush()

	if res.Deduped {
		fmt.Fprintln(out, "  (identical run already recorded)")
	}
	for _, need := range res.Result.InfoNeeded {
		fmt.Fprintf(out, "  needs: %s (%s)\n", need.Path, need.Reason)
	}
}

func init() {
	analyzeCmd.Flags().String("posture", "", "policy posture (conservative, base, aggressive; default from config)")
	analyzeCmd.Flags().String("deal-id", "", "external deal identifier recorded with the run")
	analyzeCmd.Flags().String("org", "", "org identifier (default from config)")
	analyzeCmd.Flags().String("sandbox", "", "path to a YAML/JSON file of what-if policy overrides")
	analyzeCmd.Flags().Bool("save", false, "persist the run record")
	analyzeCmd.Flags().Bool("json", false, "print the full result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
