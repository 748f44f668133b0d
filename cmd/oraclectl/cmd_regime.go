package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"OptionsOracle/internal/services/contextrisk"
	"OptionsOracle/pkg/util"
)

var (
	regimeVix float64
	regimeAt  string
)

var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Evaluate the volatility regime table offline",
	Long: `Evaluate regime, session phase, required confidence and decision cadence
for a VIX level at an instant, using the configured breakpoints.

Examples:
  oraclectl regime --vix 15.2
  oraclectl regime --vix 12 --at 2025-01-08T09:25:00+05:30`,
	RunE: runRegime,
}

func init() {
	rootCmd.AddCommand(regimeCmd)
	regimeCmd.Flags().Float64Var(&regimeVix, "vix", -1, "VIX level (omit for a missing reading)")
	regimeCmd.Flags().StringVar(&regimeAt, "at", "", "RFC3339 or unix instant (default: now)")
}

func runRegime(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rc, err := contextrisk.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	at := time.Now()
	if regimeAt != "" {
		t, ok := util.ParseTime(regimeAt)
		if !ok {
			return fmt.Errorf("--at: want RFC3339 or unix seconds, got %q", regimeAt)
		}
		at = t
	}
	a := contextrisk.New(rc).Assess(regimeVix, regimeVix >= 0, at)
	return printJSON(map[string]interface{}{
		"at":                  at.In(rc.Location),
		"regime":              a.Regime,
		"phase":               a.Phase,
		"required_confidence": a.RequiredConfidence,
		"penalty":             a.Penalty,
		"cadence_seconds":     a.Cadence.Seconds(),
		"market_open":         a.MarketOpen,
		"vix_above_panic":     a.AbovePanic,
	})
}
