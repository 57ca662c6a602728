package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"PerpScout/internal/di"
	"PerpScout/internal/domain/models"
	"PerpScout/pkg/config"
)

var configPath string

// rootCmd is the base command for the PerpScout CLI
var rootCmd = &cobra.Command{
	Use:   "perpscout",
	Short: "PerpScout perpetual futures signal scanner",
	Long: `PerpScout scans USDT perpetual futures across three timeframe horizons,
fuses the indicator views into scored signals and derives executable trade
structures for the candidates that pass every gate.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use 'perpscout serve' to run the scan loop or 'perpscout scan' for a single cycle")
	},
}

// serveCmd runs the scan loop with the HTTP API until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan loop and HTTP API",
	RunE:  runServe,
}

// scanCmd runs one cycle and prints the ranked signals to stdout. The
// configured sinks still see the result, exactly as on a scheduled run.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan cycle and print the ranking",
	RunE:  runScan,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
}

func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		// A missing .env file is fine; anything else is worth a warning.
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
		}
	}
	return config.LoadWithEnv(configPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization: %w", err)
	}
	return app.Run()
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	engine, err := di.InitializeEngine(cfg)
	if err != nil {
		return fmt.Errorf("engine initialization: %w", err)
	}
	defer engine.Dispatcher().Close()

	res, err := engine.RunCycle(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan cycle: %w", err)
	}
	printResult(res)
	return nil
}

func printResult(res *models.ScanResult) {
	fmt.Printf("Scanned %d instruments in %s\n\n", res.Universe, res.FinishedAt.Sub(res.StartedAt))

	if len(res.Recommendations) == 0 {
		fmt.Println("No valid signals this cycle")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tSymbol\tSide\tRegime\tStyle\tScore\tConf\tEntry\tTP\tSL\tSize")
		for i, rec := range res.Recommendations {
			s, t := rec.Signal, rec.Structure
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.0f\t%.0f\t%s\t%s\t%s\t%s\n",
				i+1, s.Symbol, s.Side, s.Regime, s.Style, s.Score, s.Confidence,
				fnum(t.Entry), fnum(t.TakeProfit), fnum(t.StopLoss), fnum(t.PositionSize))
		}
		w.Flush()
	}

	if len(res.Skips) > 0 {
		reasons := make([]string, 0, len(res.Skips))
		for r := range res.Skips {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		fmt.Println()
		for _, r := range reasons {
			fmt.Printf("skipped %s: %d\n", r, res.Skips[models.SkipReason(r)])
		}
	}
}

// fnum keeps small-cap prices readable without padding majors with zeros.
func fnum(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
