package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/internal/help"
	"github.com/seenimoa/calcthis/internal/marketdata"
	"github.com/seenimoa/calcthis/internal/qa"
	"github.com/seenimoa/calcthis/internal/report"
	"github.com/seenimoa/calcthis/pkg/models"
	"github.com/seenimoa/calcthis/pkg/utils"
)

// addInputFlags registers one float flag per calculator input.
func addInputFlags(fs *pflag.FlagSet) {
	fs.Float64("value", 0, "primary value")
	fs.Float64("rate", 0, "rate in percent (0-100)")
	fs.Float64("amount", 0, "secondary amount")
	fs.Float64("quantity", 0, "count or term")
}

// inputsFromFlags sets only the inputs the user passed, so an omitted flag
// stays distinguishable from an explicit zero.
func inputsFromFlags(fs *pflag.FlagSet) (models.Inputs, error) {
	var in models.Inputs
	for _, name := range models.InputNames {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetFloat64(name)
		if err != nil {
			return in, err
		}
		in.Set(name, v)
	}
	return in, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- List Command ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available calculators",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadRegistry()
		if err != nil {
			return err
		}
		category, _ := cmd.Flags().GetString("category")
		search, _ := cmd.Flags().GetString("search")

		var infos []calculator.Info
		switch {
		case search != "":
			infos = reg.Search(search)
		case category != "":
			infos = reg.ListByCategory(category)
		default:
			infos = reg.List()
		}
		if category != "" && search != "" {
			infos = filterCategory(infos, category)
		}

		if len(infos) == 0 {
			fmt.Println("No calculators found.")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("  %-34s %-12s %s\n", info.ID, info.Category, info.Name)
		}
		fmt.Printf("\n%d calculators\n", len(infos))
		return nil
	},
}

func init() {
	listCmd.Flags().String("category", "", "only list this category")
	listCmd.Flags().String("search", "", "search names, descriptions and tags")
}

func filterCategory(infos []calculator.Info, category string) []calculator.Info {
	out := infos[:0]
	for _, info := range infos {
		if info.Category == category {
			out = append(out, info)
		}
	}
	return out
}

// --- Show Command ---

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a calculator's fields and examples",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadRegistry()
		if err != nil {
			return err
		}
		c, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		info := c.Info()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(info)
		}

		fmt.Printf("%s %s (%s)\n", info.Icon, info.Name, info.ID)
		fmt.Printf("  %s\n", info.Description)
		fmt.Printf("  Category: %s | Formula: %s\n", info.Category, info.Formula)
		if info.MarketRate != "" {
			fmt.Printf("  Default rate: market benchmark %q\n", info.MarketRate)
		}

		fmt.Println("\n  Fields:")
		for _, f := range info.Fields {
			req := ""
			if f.Required {
				req = " (required)"
			}
			fmt.Printf("    --%-10s %s%s\n", f.ID, f.Label, req)
		}

		if len(info.Examples) > 0 {
			fmt.Println("\n  Examples:")
			for _, ex := range info.Examples {
				line := "    " + ex.Name
				if ex.Expected != nil {
					line += " → " + utils.FormatNumber(*ex.Expected)
				}
				fmt.Println(line)
			}
		}
		if len(info.Related) > 0 {
			fmt.Printf("\n  Related: %s\n", strings.Join(info.Related, ", "))
		}
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "print calculator metadata as JSON")
}

// --- Validate Command ---

var validateCmd = &cobra.Command{
	Use:   "validate [id]",
	Short: "Validate inputs for a calculator without calculating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadRegistry()
		if err != nil {
			return err
		}
		in, err := inputsFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		res, err := reg.Validate(args[0], in)
		if err != nil {
			return err
		}
		if res.IsValid {
			fmt.Println("✅ inputs are valid")
			return nil
		}
		fmt.Println("❌ inputs are invalid:")
		for _, e := range res.Errors {
			fmt.Printf("   - %s\n", e)
		}
		return errors.New("validation failed")
	},
}

func init() {
	addInputFlags(validateCmd.Flags())
}

// --- Calc Command ---

var calcCmd = &cobra.Command{
	Use:   "calc [id]",
	Short: "Run a calculation",
	Long: `Run a calculation. Only the inputs you pass are set.

Examples:
  calcthis calc percentage-calculator --value 200 --rate 15
  calcthis calc mortgage-refinance --amount 200000 --market-rate`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadRegistry()
		if err != nil {
			return err
		}
		c, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		in, err := inputsFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd)
		defer cancel()

		var applied *float64
		if useMarket, _ := cmd.Flags().GetBool("market-rate"); useMarket {
			src := rateSource(cfg.MarketData)
			if src == nil {
				return errors.New("--market-rate needs marketdata.feed_url, table_url or series_url")
			}
			var filled bool
			in, filled, err = marketdata.ApplyDefaultRate(ctx, src, c.Info(), in)
			if err != nil {
				return err
			}
			if filled {
				applied = in.Rate
			}
		}

		out, err := reg.Calculate(ctx, args[0], in)
		if err != nil {
			var verr *calculator.ErrValidation
			if errors.As(err, &verr) {
				for _, e := range verr.Errors {
					fmt.Fprintf(os.Stderr, "   - %s\n", e)
				}
			}
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out)
		}

		fmt.Printf("🧮 %s\n", c.Info().Name)
		if applied != nil {
			fmt.Printf("   Market rate:    %s%%\n", utils.FormatNumber(*applied))
		}
		fmt.Printf("   Result:         %s\n", utils.FormatNumber(out.Results.Result))
		if out.Results.Analysis != "" {
			fmt.Printf("   Analysis:       %s\n", out.Results.Analysis)
		}
		fmt.Printf("   Risk:           %s\n", out.Analysis.RiskLevel)
		fmt.Printf("   Recommendation: %s\n", out.Analysis.Recommendation)
		return nil
	},
}

func init() {
	addInputFlags(calcCmd.Flags())
	calcCmd.Flags().Bool("market-rate", false, "fill an omitted rate from benchmark market data")
	calcCmd.Flags().Bool("json", false, "print the full result as JSON")
}

// --- Guide Command ---

var guideCmd = &cobra.Command{
	Use:   "guide [id]",
	Short: "Show the usage guide or field help for a calculator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadRegistry()
		if err != nil {
			return err
		}
		c, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		info := c.Info()

		if field, _ := cmd.Flags().GetString("field"); field != "" {
			fh, err := help.ContextualHelp(info, field)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n  %s\n", fh.Title, fh.Description)
			for _, ex := range fh.Examples {
				fmt.Printf("  e.g. %s\n", ex)
			}
			for _, tip := range fh.Tips {
				fmt.Printf("  tip: %s\n", tip)
			}
			return nil
		}

		if tutorial, _ := cmd.Flags().GetBool("tutorial"); tutorial {
			t := help.NewTutorial(info)
			fmt.Printf("%s (%s, ~%d min)\n", t.Title, t.Difficulty, t.Duration)
			for i, step := range t.Steps {
				fmt.Printf("\n  %d. %s\n     %s\n", i+1, step.Title, step.Content)
				if step.Target != "" {
					fmt.Printf("     → --%s %s\n", step.Target, step.Value)
				}
			}
			return nil
		}

		g := help.UsageGuide(info)
		fmt.Printf("%s (%s, %d min read)\n\n", g.Title, g.Difficulty, g.EstimatedReadTime)
		fmt.Println(help.HTMLToText(g.Content))
		return nil
	},
}

func init() {
	guideCmd.Flags().String("field", "", "show help for one input field")
	guideCmd.Flags().Bool("tutorial", false, "show the step-by-step tutorial")
}

// --- QA Command ---

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Check calculators against their worked examples",
	Long: `Run accuracy, validation and performance checks on the catalog.

Exits non-zero when any calculator fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := loadRegistry()
		if err != nil {
			return err
		}
		ids, _ := cmd.Flags().GetStringSlice("calculator")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		failuresOnly, _ := cmd.Flags().GetBool("failures")
		quiet, _ := cmd.Flags().GetBool("quiet")

		runner := qa.NewRunner(qa.Options{
			Concurrency: cfg.QA.Concurrency,
			Tolerance:   cfg.QA.Tolerance,
			MaxCalcTime: cfg.QA.MaxCalcTime(),
			Timeout:     cfg.QA.Timeout(),
			Calculators: ids,
			Logger:      logger,
			OnProgress: func(p qa.Progress) {
				if !quiet {
					fmt.Fprintf(os.Stderr, "[%d/%d] %-34s %-8s %5.1f\n",
						p.Completed, p.Total, p.Report.CalculatorID, p.Report.Status, p.Report.Score)
				}
			},
		})

		ctx, cancel := signalContext(cmd)
		defer cancel()

		sum, err := runner.Run(ctx, reg)
		if err != nil {
			return err
		}

		if err := writeQAReport(sum, format, output, failuresOnly); err != nil {
			return err
		}
		if sum.Failed > 0 {
			return fmt.Errorf("QA failed: %d of %d calculators failed", sum.Failed, sum.Total)
		}
		return nil
	},
}

func init() {
	qaCmd.Flags().StringSlice("calculator", nil, "only check these calculator IDs")
	qaCmd.Flags().String("format", "text", "report format: text, html or json")
	qaCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	qaCmd.Flags().Bool("failures", false, "only list calculators that did not pass")
	qaCmd.Flags().BoolP("quiet", "q", false, "suppress progress output")
}

func writeQAReport(sum *qa.Summary, format, output string, failuresOnly bool) error {
	var out string
	if format == "json" {
		b, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return err
		}
		out = string(b) + "\n"
	} else {
		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		rc := report.DefaultConfig()
		rc.Format = f
		rc.FailuresOnly = failuresOnly
		if out, err = report.Generate(sum, rc); err != nil {
			return err
		}
	}

	if output == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("📄 Report written to %s\n", output)
	return nil
}

// --- Rates Command ---

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Fetch benchmark market rates and check their quality",
	RunE: func(cmd *cobra.Command, args []string) error {
		src := rateSource(cfg.MarketData)
		if src == nil {
			return errors.New("no market data source configured (set marketdata.feed_url, table_url or series_url)")
		}
		ctx, cancel := signalContext(cmd)
		defer cancel()

		snap, err := src.Snapshot(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("📈 %s\n", snap.Source)
		if !snap.LastUpdated.IsZero() {
			fmt.Printf("   Updated: %s\n", utils.FormatDate(snap.LastUpdated))
		}
		keys := make([]string, 0, len(snap.Rates))
		for k := range snap.Rates {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("   %-16s %6.3f%%\n", k, snap.Rates[k])
		}

		if skip, _ := cmd.Flags().GetBool("no-quality"); skip {
			return nil
		}

		sources := []marketdata.Source{src}
		if multi, ok := src.(*marketdata.MultiSource); ok {
			sources = multi.Sources()
		}
		checker := marketdata.NewChecker(cfg.MarketData.MaxAgeDays)
		reports := make([]marketdata.QualityReport, 0, len(sources))
		for _, s := range sources {
			one, err := s.Snapshot(ctx)
			if err != nil {
				logger.Warn("rate source unavailable", zap.String("source", s.Name()), zap.Error(err))
			}
			reports = append(reports, checker.Check(s.Name(), one))
		}

		fmt.Println("\n   Quality:")
		for _, rep := range reports {
			fmt.Printf("   %-40s %3d/100 (%d errors, %d warnings)\n", rep.SourceID, rep.OverallScore, rep.Errors, rep.Warnings)
			for _, rec := range rep.Recommendations {
				fmt.Printf("      • %s\n", rec)
			}
		}
		if len(reports) > 1 {
			s := marketdata.Summarize(reports)
			fmt.Printf("   Average: %d/100, best %s, worst %s\n", s.AverageScore, s.BestSource, s.WorstSource)
		}
		return nil
	},
}

func init() {
	ratesCmd.Flags().Bool("no-quality", false, "skip the data quality check")
}
