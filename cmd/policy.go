package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ozihaynes/hps-dealengine-sub010/internal/config"
	"github.com/ozihaynes/hps-dealengine-sub010/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the effective policy",
}

// -- policy show --

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved policy snapshot for a posture",
	RunE: func(cmd *cobra.Command, _ []string) error {
		postureStr, _ := cmd.Flags().GetString("posture")
		if postureStr == "" {
			postureStr = cfg.Engine.DefaultPosture
		}
		posture, err := policy.ParsePosture(postureStr)
		if err != nil {
			return err
		}

		tokens, err := config.LoadOrgTokens(cfg.Engine.OrgTokensFile)
		if err != nil {
			return err
		}

		sandboxPath, _ := cmd.Flags().GetString("sandbox")
		sandbox, err := loadSandbox(sandboxPath)
		if err != nil {
			return err
		}

		pol, err := policy.Resolve(policy.BasePolicy{Posture: posture, Tokens: tokens}, posture, sandbox)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if grouped, _ := cmd.Flags().GetBool("grouped"); grouped {
			return enc.Encode(pol.Grouped())
		}
		return enc.Encode(pol.Snapshot())
	},
}

// -- policy coverage --

var policyCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Check that every declared policy knob is reachable by the resolver",
	RunE: func(_ *cobra.Command, _ []string) error {
		gaps := policy.CoverageGaps()
		if len(gaps) == 0 {
			fmt.Println("all declared knobs are wired")
			return nil
		}
		for _, key := range gaps {
			fmt.Printf("unwired knob: %s\n", key)
		}
		return eris.Errorf("%d policy knobs are declared but not wired", len(gaps))
	},
}

func init() {
	policyShowCmd.Flags().String("posture", "", "posture to resolve (default from config)")
	policyShowCmd.Flags().String("sandbox", "", "path to a YAML/JSON file of what-if policy overrides")
	policyShowCmd.Flags().Bool("grouped", false, "group knobs by component instead of a flat map")

	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyCoverageCmd)
	rootCmd.AddCommand(policyCmd)
}
