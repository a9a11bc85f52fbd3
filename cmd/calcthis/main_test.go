package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/internal/config"
	"github.com/seenimoa/calcthis/internal/marketdata"
	"github.com/seenimoa/calcthis/internal/qa"
)

func TestInputsFromFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addInputFlags(fs)
	if err := fs.Parse([]string{"--value", "200", "--rate", "0"}); err != nil {
		t.Fatal(err)
	}

	in, err := inputsFromFlags(fs)
	if err != nil {
		t.Fatal(err)
	}
	if in.Value == nil || *in.Value != 200 {
		t.Errorf("value = %v, want 200", in.Value)
	}
	if in.Rate == nil || *in.Rate != 0 {
		t.Errorf("explicit zero rate should be set, got %v", in.Rate)
	}
	if in.Amount != nil || in.Quantity != nil {
		t.Errorf("unset flags should stay nil: amount=%v quantity=%v", in.Amount, in.Quantity)
	}
}

func TestRateSource(t *testing.T) {
	tests := []struct {
		name string
		mc   config.MarketDataConfig
		want string // type name, "" for nil
	}{
		{"none", config.MarketDataConfig{}, ""},
		{"feed", config.MarketDataConfig{FeedURL: "http://example.com/rss"}, "feed"},
		{"table", config.MarketDataConfig{TableURL: "http://example.com/rates"}, "table"},
		{"both", config.MarketDataConfig{FeedURL: "http://a/rss", TableURL: "http://b/rates", RequestsPerSec: 0.5}, "multi"},
		{"series", config.MarketDataConfig{SeriesURL: "http://fred/api", APIKey: "k"}, "series"},
		{"series without key", config.MarketDataConfig{SeriesURL: "http://fred/api"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := rateSource(tt.mc)
			var got string
			switch src.(type) {
			case nil:
			case *marketdata.FeedSource:
				got = "feed"
			case *marketdata.TableSource:
				got = "table"
			case *marketdata.SeriesSource:
				got = "series"
			case *marketdata.MultiSource:
				got = "multi"
			default:
				got = "unknown"
			}
			if got != tt.want {
				t.Errorf("rateSource() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFilterCategory(t *testing.T) {
	infos := []calculator.Info{
		{ID: "a", Category: "math"},
		{ID: "b", Category: "finance"},
		{ID: "c", Category: "math"},
	}
	got := filterCategory(infos, "math")
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("filterCategory() = %+v", got)
	}
}

func TestCacheStatus(t *testing.T) {
	if got := cacheStatus(0); got != "disabled" {
		t.Errorf("cacheStatus(0) = %s", got)
	}
	if got := cacheStatus(5 * time.Minute); got != "ttl 5m0s" {
		t.Errorf("cacheStatus(5m) = %s", got)
	}
}

func TestWriteQAReport(t *testing.T) {
	now := time.Now()
	sum := &qa.Summary{RunID: "run-42", StartedAt: now, FinishedAt: now, Total: 1, Passed: 1, AverageScore: 100}
	dir := t.TempDir()

	for _, format := range []string{"text", "html", "json"} {
		path := filepath.Join(dir, "report."+format)
		if err := writeQAReport(sum, format, path, false); err != nil {
			t.Fatalf("writeQAReport(%s): %v", format, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "run-42") {
			t.Errorf("%s report missing run id", format)
		}
	}

	if err := writeQAReport(sum, "pdf", filepath.Join(dir, "x"), false); err == nil {
		t.Error("expected error for unknown format")
	}
}
