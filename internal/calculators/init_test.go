package calculators

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seenimoa/calcthis/internal/calculator"
)

func TestRegisterAllTo(t *testing.T) {
	reg := calculator.NewRegistry()
	m, err := RegisterAllTo(reg, Options{})
	if err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}
	if reg.Len() != len(m.Calculators) {
		t.Errorf("registered %d, catalog has %d", reg.Len(), len(m.Calculators))
	}

	c, err := reg.Get("bitcoin-halving-calculator")
	if err != nil {
		t.Fatalf("bitcoin-halving-calculator not registered: %v", err)
	}
	if c.Info().URL == "" {
		t.Error("URL should be derived from the catalog base URL")
	}
}

func TestRegisterAllToCategoryFilter(t *testing.T) {
	reg := calculator.NewRegistry()
	if _, err := RegisterAllTo(reg, Options{Categories: []string{"health", "legal"}}); err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}
	cats := reg.Categories()
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %v", cats)
	}
	if cats["health"] == 0 || cats["legal"] == 0 {
		t.Errorf("unexpected categories: %v", cats)
	}
}

func TestRegisterAllToTwiceFails(t *testing.T) {
	reg := calculator.NewRegistry()
	if _, err := RegisterAllTo(reg, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := RegisterAllTo(reg, Options{}); err == nil {
		t.Error("second registration of the same catalog should fail")
	}
}

func TestRegisterAllToFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
version: test
calculators:
  - id: tip
    name: Tip
    category: lifestyle
    formula: percent_of
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	reg := calculator.NewRegistry()
	m, err := RegisterAllTo(reg, Options{File: path})
	if err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}
	if m.Version != "test" || reg.Len() != 1 {
		t.Errorf("version=%q len=%d", m.Version, reg.Len())
	}

	if _, err := RegisterAllTo(calculator.NewRegistry(), Options{File: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Error("missing file should fail")
	}
}
