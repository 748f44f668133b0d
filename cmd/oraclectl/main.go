package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"OptionsOracle/pkg/config"
)

var (
	configPath string
	apiURL     string
)

// rootCmd is the base command for the operator CLI
var rootCmd = &cobra.Command{
	Use:   "oraclectl",
	Short: "Operator tooling for the options oracle",
	Long: `oraclectl inspects and steers a running oracle through its HTTP API
and evaluates the strategy offline: regime lookups, contract symbols and
tick replays against the paper broker.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "http://localhost:8080", "oracle API base URL")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
