// Package catalog describes the calculator catalog as data. A YAML manifest
// lists categories and calculator entries; each entry becomes a
// TemplateCalculator computing one of the generic formula kinds.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/pkg/models"
)

//go:embed catalog.yaml
var embeddedManifest []byte

// Category groups related calculators.
type Category struct {
	ID          string `yaml:"id"          json:"id"`
	Name        string `yaml:"name"        json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Icon        string `yaml:"icon"        json:"icon,omitempty"`
}

// Entry is one calculator declared in the manifest.
type Entry struct {
	ID          string                     `yaml:"id"`
	Name        string                     `yaml:"name"`
	Description string                     `yaml:"description"`
	Category    string                     `yaml:"category"`
	Tags        []string                   `yaml:"tags"`
	Icon        string                     `yaml:"icon"`
	Version     string                     `yaml:"version"`
	Formula     FormulaKind                `yaml:"formula"`
	Fields      []calculator.FieldSpec     `yaml:"fields"`
	Examples    []calculator.Example       `yaml:"examples"`
	Related     []string                   `yaml:"related"`
	Risk        *calculator.RiskThresholds `yaml:"risk"`
	MarketRate  string                     `yaml:"market_rate"`
	Guide       string                     `yaml:"guide"`
}

// Manifest is the parsed catalog.
type Manifest struct {
	Version     string     `yaml:"version"`
	BaseURL     string     `yaml:"base_url"`
	Categories  []Category `yaml:"categories"`
	Calculators []Entry    `yaml:"calculators"`
}

// ErrInvalidManifest lists every problem found while validating a manifest.
type ErrInvalidManifest struct {
	Problems []string
}

func (e *ErrInvalidManifest) Error() string {
	return fmt.Sprintf("invalid catalog manifest: %s", strings.Join(e.Problems, "; "))
}

// Load parses and validates a manifest. Unknown YAML keys are rejected.
func Load(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ErrInvalidManifest{Problems: []string{"manifest is empty"}}
		}
		return nil, fmt.Errorf("parsing catalog manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads a manifest from disk.
func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

var (
	defaultOnce     sync.Once
	defaultManifest *Manifest
	defaultErr      error
)

// Default returns the manifest embedded in the binary.
func Default() (*Manifest, error) {
	defaultOnce.Do(func() {
		defaultManifest, defaultErr = Load(bytes.NewReader(embeddedManifest))
	})
	return defaultManifest, defaultErr
}

// Validate checks the manifest for structural problems: missing names,
// duplicate IDs, unknown categories, formulas, fields or related IDs, and
// examples that omit inputs their formula needs.
func (m *Manifest) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	cats := make(map[string]bool, len(m.Categories))
	for _, c := range m.Categories {
		if c.ID == "" {
			addf("category with empty id")
			continue
		}
		if cats[c.ID] {
			addf("duplicate category %q", c.ID)
		}
		cats[c.ID] = true
	}

	ids := make(map[string]bool, len(m.Calculators))
	for _, e := range m.Calculators {
		if e.ID == "" {
			addf("calculator with empty id (name %q)", e.Name)
			continue
		}
		if ids[e.ID] {
			addf("duplicate calculator id %q", e.ID)
		}
		ids[e.ID] = true

		if e.Name == "" {
			addf("%s: name is required", e.ID)
		}
		if e.Category == "" {
			addf("%s: category is required", e.ID)
		} else if len(cats) > 0 && !cats[e.Category] {
			addf("%s: unknown category %q", e.ID, e.Category)
		}
		if !e.Formula.Known() {
			addf("%s: unknown formula %q", e.ID, e.Formula)
			continue
		}
		for _, f := range e.Fields {
			if !isInputName(f.ID) {
				addf("%s: unknown field %q", e.ID, f.ID)
			}
		}
		for _, ex := range e.Examples {
			for _, need := range e.Formula.Needs() {
				if _, ok := ex.Inputs.Get(need); !ok {
					addf("%s: example %q is missing input %q", e.ID, ex.Name, need)
				}
			}
		}
		if e.risksInverted() {
			addf("%s: risk thresholds are inverted", e.ID)
		}
	}

	for _, e := range m.Calculators {
		for _, rel := range e.Related {
			if !ids[rel] {
				addf("%s: related calculator %q not in catalog", e.ID, rel)
			}
		}
	}

	if len(problems) > 0 {
		return &ErrInvalidManifest{Problems: problems}
	}
	return nil
}

// Category returns the category with the given ID.
func (m *Manifest) Category(id string) (Category, bool) {
	for _, c := range m.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Filter returns the entries belonging to one of categories. An empty list
// selects every entry.
func (m *Manifest) Filter(categories []string) []Entry {
	if len(categories) == 0 {
		return m.Calculators
	}
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var out []Entry
	for _, e := range m.Calculators {
		if want[strings.ToLower(e.Category)] {
			out = append(out, e)
		}
	}
	return out
}

func isInputName(name string) bool {
	for _, n := range models.InputNames {
		if n == name {
			return true
		}
	}
	return false
}

func (e Entry) risksInverted() bool {
	if e.Risk == nil {
		return false
	}
	if e.Risk.LowerIsRisky {
		return e.Risk.High > e.Risk.Medium
	}
	return e.Risk.High < e.Risk.Medium
}
