package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	xhttp "OptionsOracle/pkg/http"
)

var apiTimeout time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the oracle status, risk or last decision",
	Long: `Fetch a read-only view from a running oracle.

Examples:
  oraclectl status
  oraclectl status risk
  oraclectl status decision --url http://oracle:8080`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"status", "risk", "decision"},
	RunE:      runStatus,
}

var pnlCmd = &cobra.Command{
	Use:   "set-pnl <amount>",
	Short: "Override today's realized P&L",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetPnl,
}

var exitCmd = &cobra.Command{
	Use:   "exit-all",
	Short: "Close the open position at market",
	RunE:  runExitAll,
}

func init() {
	rootCmd.AddCommand(statusCmd, pnlCmd, exitCmd)
	rootCmd.PersistentFlags().DurationVar(&apiTimeout, "timeout", 5*time.Second, "API request timeout")
}

func apiClient() *xhttp.Client {
	return xhttp.NewClient(xhttp.WithBaseURL(apiURL), xhttp.WithTimeout(apiTimeout))
}

func call(method, path string, body interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	var out xhttp.APIResponse
	err := apiClient().SendAndParse(ctx, &xhttp.RequestOptions{Method: method, URL: path, Body: body}, &out)
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("oracle answered %d: %s", se.Code, se.Body)
	}
	if err != nil {
		return err
	}
	return printJSON(out.Data)
}

func runStatus(cmd *cobra.Command, args []string) error {
	view := "status"
	if len(args) == 1 {
		view = args[0]
	}
	switch view {
	case "status", "risk", "decision":
	default:
		return fmt.Errorf("unknown view %q", view)
	}
	return call(http.MethodGet, "/api/"+view, nil)
}

func runSetPnl(cmd *cobra.Command, args []string) error {
	var pnl float64
	if _, err := fmt.Sscanf(args[0], "%g", &pnl); err != nil {
		return fmt.Errorf("amount must be a number, got %q", args[0])
	}
	return call(http.MethodPost, "/api/risk/pnl", map[string]float64{"daily_pnl": pnl})
}

func runExitAll(cmd *cobra.Command, args []string) error {
	return call(http.MethodPost, "/api/position/exit", nil)
}
