package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"OptionsOracle/internal/domain/models"
	"OptionsOracle/internal/services/execution"
	"OptionsOracle/pkg/util"
)

var (
	symbolSpot     float64
	symbolSide     string
	symbolTrend    string
	symbolMomentum float64
	symbolAt       string
)

var symbolCmd = &cobra.Command{
	Use:   "symbol",
	Short: "Compute the strike and contract symbol for a spot level",
	Long: `Compute the strike the executor would pick for a spot level, trend and
momentum, and the option trading symbol on the applicable weekly expiry.

Examples:
  oraclectl symbol --spot 21987 --side CE
  oraclectl symbol --spot 22140 --side PE --trend DOWNTREND --momentum 40`,
	RunE: runSymbol,
}

func init() {
	rootCmd.AddCommand(symbolCmd)
	symbolCmd.Flags().Float64Var(&symbolSpot, "spot", 0, "index spot level")
	symbolCmd.Flags().StringVar(&symbolSide, "side", "CE", "option side (CE|PE)")
	symbolCmd.Flags().StringVar(&symbolTrend, "trend", string(models.TrendUp), "market context")
	symbolCmd.Flags().Float64Var(&symbolMomentum, "momentum", 0, "spot momentum in points")
	symbolCmd.Flags().StringVar(&symbolAt, "at", "", "RFC3339 or unix instant (default: now)")
	_ = symbolCmd.MarkFlagRequired("spot")
}

func runSymbol(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	side := models.Side(strings.ToUpper(symbolSide))
	if side != models.SideCE && side != models.SidePE {
		return fmt.Errorf("--side must be CE or PE, got %q", symbolSide)
	}
	if symbolSpot <= 0 {
		return fmt.Errorf("--spot must be positive")
	}
	loc, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return err
	}
	at := time.Now().In(loc)
	if symbolAt != "" {
		t, ok := util.ParseTime(symbolAt)
		if !ok {
			return fmt.Errorf("--at: want RFC3339 or unix seconds, got %q", symbolAt)
		}
		at = t.In(loc)
	}
	expiry := execution.NextExpiry(at)
	if cfg.Strategy.ExpiryOverride != "" {
		if expiry, err = execution.ParseExpiry(cfg.Strategy.ExpiryOverride, loc); err != nil {
			return err
		}
	}
	strike := execution.SelectStrike(symbolSpot, models.Trend(strings.ToUpper(symbolTrend)), symbolMomentum)
	return printJSON(map[string]interface{}{
		"strike":     strike,
		"delta_zone": execution.DeltaZoneOf(symbolSpot, strike),
		"expiry":     execution.ExpiryCode(expiry),
		"symbol":     execution.OptionSymbol(cfg.Strategy.Index, expiry, strike, side),
	})
}
