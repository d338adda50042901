package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stockbot/simcore/config"
	"github.com/stockbot/simcore/episode"
	"github.com/stockbot/simcore/journal"
	"github.com/stockbot/simcore/market"
	"github.com/stockbot/simcore/pkg/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation episode from a config file",
	Long: `Run one full episode using settings from a configuration file.

The config file specifies the symbols, features, action mapping, execution
and cost model, reward shaping, risk guards, and the journal backend. Bar
data is read from <data.dir>/<SYMBOL>.csv.

Built-in policies (for baselines; a learning loop embeds the library
directly):
  equal-weight - constant equal allocation across symbols
  hold-cash    - never invests

Example:
  simcore run -f examples/configs/daily.yaml -p equal-weight`,
	RunE: runRun,
}

var (
	runConfigPath string
	runPolicy     string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML) (required)")
	runCmd.Flags().StringVarP(&runPolicy, "policy", "p", "equal-weight", "built-in policy (equal-weight, hold-cash)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	provider, err := loadProvider(cfg)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	jnl, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	policy, err := policyByName(runPolicy, cfg, len(provider.Panel().Symbols))
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	runner, err := episode.NewRunner(cfg, provider, policy, jnl, log)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running simulation with config: %s\n", runConfigPath)
	fmt.Printf("  Symbols: %v\n", provider.Panel().Symbols)
	fmt.Printf("  Mode: %s  Policy: %s  Lookback: %d\n\n", cfg.Mapping.Mode, runPolicy, cfg.Run.Lookback)

	res, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run %s: %w", res.RunID, err)
	}

	fmt.Printf("\nEpisode Complete! Run ID: %s\n", res.RunID)
	fmt.Printf("  Status: %s (%s)\n", res.Status, res.Reason)
	fmt.Printf("  Steps: %d\n", res.Steps)
	fmt.Printf("  Equity: $%.2f -> $%.2f (%.2f%%)\n", res.StartEquity, res.EndEquity, res.Metrics.TotalReturnPct)
	fmt.Printf("  Max Drawdown: %.2f%%  Sharpe: %.2f\n", res.Metrics.MaxDrawdownPct, res.Metrics.Sharpe)
	fmt.Printf("  Trades: %d  Win Rate: %.1f%%\n", res.Metrics.Trades, res.Metrics.WinRate*100)
	return nil
}

// loadProvider reads and aligns one CSV per symbol into a panel.
func loadProvider(cfg *config.Config) (*market.Provider, error) {
	series := make(map[string][]market.Bar, len(cfg.Run.Symbols))
	for _, sym := range cfg.Run.Symbols {
		path := filepath.Join(cfg.Data.Dir, sym+".csv")
		bars, err := market.LoadCSV(path, sym)
		if err != nil {
			return nil, err
		}
		if err := market.ComputeFeatures(bars, cfg.Data.Features); err != nil {
			return nil, err
		}
		series[sym] = bars
	}
	panel, err := market.NewPanel(series, cfg.Data.Features)
	if err != nil {
		return nil, err
	}
	return market.NewProvider(panel, cfg.Run.Lookback)
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.Dir)
	case "memory":
		return journal.NewMemory(), nil
	default:
		return journal.NewSQLite(cfg.Journal.DBPath)
	}
}

// policyByName builds a deterministic baseline policy emitting the raw
// action vector the configured mapping mode expects.
func policyByName(name string, cfg *config.Config, numSymbols int) (episode.Policy, error) {
	dim := numSymbols
	if cfg.Mapping.Mode == "simplex_cash" {
		dim = numSymbols + 1
	}

	switch name {
	case "equal-weight":
		raw := make([]float64, dim)
		if cfg.Mapping.Mode == "simplex_cash" {
			raw[dim-1] = 10 // gate logit, sigmoid saturates near 1
		} else {
			// tanh(x) = 1/n spreads the cap equally
			per := math.Atanh(1.0 / float64(numSymbols))
			for i := range raw {
				raw[i] = per
			}
		}
		return episode.PolicyFunc(func([]float32) ([]float64, error) {
			out := make([]float64, len(raw))
			copy(out, raw)
			return out, nil
		}), nil

	case "hold-cash":
		return episode.PolicyFunc(func([]float32) ([]float64, error) {
			raw := make([]float64, dim)
			if cfg.Mapping.Mode == "simplex_cash" {
				raw[dim-1] = -10
			}
			return raw, nil
		}), nil

	default:
		return nil, fmt.Errorf("unknown policy %q (supported: equal-weight, hold-cash)", name)
	}
}
