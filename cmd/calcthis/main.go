// calcthis serves a catalog of everyday calculators over a CLI and an
// HTTP API, with built-in quality checks and benchmark market rates.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/calcthis/api"
	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/internal/calculators"
	"github.com/seenimoa/calcthis/internal/catalog"
	"github.com/seenimoa/calcthis/internal/config"
	"github.com/seenimoa/calcthis/internal/logging"
	"github.com/seenimoa/calcthis/internal/marketdata"
	"github.com/seenimoa/calcthis/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "calcthis",
	Short: "A catalog of everyday calculators",
	Long: `calcthis
Browse, validate and run calculators from the command line or over HTTP,
check them against their worked examples, and fill interest rates from
benchmark market data.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(calcCmd)
	rootCmd.AddCommand(guideCmd)
	rootCmd.AddCommand(qaCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadRegistry builds a registry from the configured catalog.
func loadRegistry(opts ...calculator.Option) (*calculator.Registry, *catalog.Manifest, error) {
	opts = append([]calculator.Option{
		calculator.WithCache(cfg.Cache.Duration()),
		calculator.WithLogger(logger),
	}, opts...)
	reg := calculator.NewRegistry(opts...)

	m, err := calculators.RegisterAllTo(reg, calculators.Options{
		File:       cfg.Catalog.File,
		Categories: cfg.Catalog.Categories,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	return reg, m, nil
}

// rateSource builds the configured market data sources, or nil when none
// are configured.
func rateSource(mc config.MarketDataConfig) marketdata.Source {
	rps := int(math.Ceil(mc.RequestsPerSec))
	if rps < 1 {
		rps = 1
	}
	opts := []marketdata.SourceOption{
		marketdata.WithCacheTTL(time.Duration(mc.CacheTTL) * time.Second),
		marketdata.WithRequestsPerSecond(rps),
		marketdata.WithSourceLogger(logger),
	}

	var sources []marketdata.Source
	if mc.FeedURL != "" {
		sources = append(sources, marketdata.NewFeedSource(mc.FeedURL, opts...))
	}
	if mc.TableURL != "" {
		sources = append(sources, marketdata.NewTableSource(mc.TableURL, mc.TableSelector, mc.APIKey, opts...))
	}
	if mc.SeriesURL != "" && mc.APIKey != "" {
		sources = append(sources, marketdata.NewSeriesSource(mc.SeriesURL, mc.APIKey, nil, opts...))
	}

	switch len(sources) {
	case 0:
		return nil
	case 1:
		return sources[0]
	default:
		return marketdata.NewMultiSource(sources...)
	}
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("calcthis %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}

		metrics := api.NewMetrics()
		reg, m, err := loadRegistry(calculator.WithObserver(metrics.Observe))
		if err != nil {
			return err
		}

		srv, err := api.NewServer(cfg, api.Deps{
			Registry: reg,
			Manifest: m,
			Rates:    rateSource(cfg.MarketData),
			Metrics:  metrics,
			Logger:   logger,
			Version:  version,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("🌐 Starting calcthis API server on %s (%d calculators)\n", cfg.API.Address(), reg.Len())
		return srv.ListenAndServe(ctx, cfg.API.Address())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, m, err := loadRegistry()
		if err != nil {
			return err
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  calcthis — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (UTC):    %s\n", utils.FormatDateTime(time.Now()))
		fmt.Printf("  Calculators:   %d in %d categories\n", reg.Len(), len(reg.Categories()))
		fmt.Printf("  Catalog:       %s (v%s)\n", catalogSource(), m.Version)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Config File:   %s\n", config.ConfigFilePath())
		fmt.Printf("    API Server:    %s\n", cfg.API.Address())
		fmt.Printf("    Result Cache:  %s\n", cacheStatus(cfg.Cache.Duration()))
		fmt.Printf("    QA Workers:    %d (max %dms per calculation)\n", cfg.QA.Concurrency, cfg.QA.MaxCalcMS)
		fmt.Printf("    Market Data:   %s\n", marketDataStatus(cfg.MarketData))
		fmt.Printf("    Logging:       %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
		fmt.Println()

		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func catalogSource() string {
	if cfg.Catalog.File == "" {
		return "embedded"
	}
	return cfg.Catalog.File
}

func cacheStatus(ttl time.Duration) string {
	if ttl <= 0 {
		return "disabled"
	}
	return "ttl " + ttl.String()
}

func marketDataStatus(mc config.MarketDataConfig) string {
	src := rateSource(mc)
	if src == nil {
		return "not configured"
	}
	return src.Name()
}

// signalContext is the base context for long-running commands.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
