package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/doubleclose"
)

var doubleCloseCmd = &cobra.Command{
	Use:   "double-close",
	Short: "Compare double-close costs against an assignment",
	Long:  "Computes Florida closing costs (doc stamps, note stamps, intangible tax, title premium, recording) for both sides of a double close and compares the net spread to a straight assignment fee.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		inputPath, _ := cmd.Flags().GetString("input")
		asJSON, _ := cmd.Flags().GetBool("json")

		var in doubleclose.Input
		if inputPath != "" {
			data, err := os.ReadFile(inputPath)
			if err != nil {
				return eris.Wrapf(err, "read input file %s", inputPath)
			}
			if err := json.Unmarshal(data, &in); err != nil {
				return eris.Wrapf(err, "parse input file %s", inputPath)
			}
		} else {
			in = inputFromFlags(cmd)
		}

		eng, err := initEngine(nil)
		if err != nil {
			return err
		}

		res, err := eng.DoubleClose(in)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		formatDoubleClose(os.Stdout, in, res)
		return nil
	},
}

func inputFromFlags(cmd *cobra.Command) doubleclose.Input {
	abPrice, _ := cmd.Flags().GetFloat64("ab-price")
	bcPrice, _ := cmd.Flags().GetFloat64("bc-price")
	county, _ := cmd.Flags().GetString("county")
	propertyType, _ := cmd.Flags().GetString("property-type")
	abNote, _ := cmd.Flags().GetFloat64("ab-note")
	holdDays, _ := cmd.Flags().GetInt("hold-days")
	dailyCarry, _ := cmd.Flags().GetFloat64("daily-carry")
	monthlyCarry, _ := cmd.Flags().GetFloat64("monthly-carry")

	return doubleclose.Input{
		ABPrice:      abPrice,
		BCPrice:      bcPrice,
		County:       doubleclose.County(county),
		PropertyType: doubleclose.PropertyType(propertyType),
		ABNoteAmount: abNote,
		HoldDays:     holdDays,
		DailyCarry:   dailyCarry,
		MonthlyCarry: monthlyCarry,
	}
}

func formatDoubleClose(out io.Writer, in doubleclose.Input, res *doubleclose.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\tA->B\tB->C\n")
	fmt.Fprintf(w, "price\t%s\t%s\n", moneyPrinter.Sprintf("$%.2f", in.ABPrice), moneyPrinter.Sprintf("$%.2f", in.BCPrice))
	fmt.Fprintf(w, "deed stamps\t%s\t%s\n", moneyPrinter.Sprintf("$%.2f", res.SideAB.DeedStamps), moneyPrinter.Sprintf("$%.2f", res.SideBC.DeedStamps))
	fmt.Fprintf(w, "note stamps\t%s\t%s\n", moneyPrinter.Sprintf("$%.2f", res.SideAB.NoteStamps), moneyPrinter.Sprintf("$%.2f", res.SideBC.NoteStamps))
	fmt.Fprintf(w, "intangible tax\t%s\t%s\n", moneyPrinter.Sprintf("$%.2f", res.SideAB.IntangibleTax), moneyPrinter.Sprintf("$%.2f", res.SideBC.IntangibleTax))
	fmt.Fprintf(w, "title premium\t%s\t%s\n", moneyPrinter.Sprintf("$%.2f", res.SideAB.TitlePremium), moneyPrinter.Sprintf("$%.2f", res.SideBC.TitlePremium))
	fmt.Fprintf(w, "recording\t%s\t%s\n", moneyPrinter.Sprintf("$%.2f", res.SideAB.RecordingFees), moneyPrinter.Sprintf("$%.2f", res.SideBC.RecordingFees))
	fmt.Fprintf(w, "total\t%s\t%s\n", moneyPrinter.Sprintf("$%.2f", res.SideAB.Total), moneyPrinter.Sprintf("$%.2f", res.SideBC.Total))
	w.Flush()

	fmt.Fprintf(out, "\ndouble-close net spread: %s (carry %s)\n",
		moneyPrinter.Sprintf("$%.2f", res.DCNetSpread),
		moneyPrinter.Sprintf("$%.2f", res.DCCarryCost))
	fmt.Fprintf(out, "assignment fee baseline: %s\n", moneyPrinter.Sprintf("$%.2f", res.AssignmentFee))
	fmt.Fprintf(out, "verdict: %s\n", res.Comparison)
}

func init() {
	doubleCloseCmd.Flags().String("input", "", "path to a JSON input file (overrides the individual flags)")
	doubleCloseCmd.Flags().Float64("ab-price", 0, "A->B purchase price")
	doubleCloseCmd.Flags().Float64("bc-price", 0, "B->C resale price")
	doubleCloseCmd.Flags().String("county", "OTHER", "county code (MIAMI-DADE or OTHER)")
	doubleCloseCmd.Flags().String("property-type", "SFR", "property type (SFR or OTHER)")
	doubleCloseCmd.Flags().Float64("ab-note", 0, "A->B financed note amount")
	doubleCloseCmd.Flags().Int("hold-days", 0, "days held between closings")
	doubleCloseCmd.Flags().Float64("daily-carry", 0, "daily carry cost while held")
	doubleCloseCmd.Flags().Float64("monthly-carry", 0, "monthly carry cost, used when no daily figure is given")
	doubleCloseCmd.Flags().Bool("json", false, "print the full result as JSON")
	rootCmd.AddCommand(doubleCloseCmd)
}
