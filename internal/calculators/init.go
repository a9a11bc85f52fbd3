// Package calculators loads the calculator catalog and registers every
// entry with a calculator registry.
package calculators

import (
	"go.uber.org/zap"

	"github.com/seenimoa/calcthis/internal/calculator"
	"github.com/seenimoa/calcthis/internal/catalog"
)

// Options controls which catalog is loaded and which entries are registered.
type Options struct {
	// File replaces the embedded catalog when set.
	File string
	// Categories restricts registration to these category IDs. Empty means all.
	Categories []string
	Logger     *zap.Logger
}

// RegisterAll registers the embedded catalog with the global registry.
func RegisterAll() error {
	_, err := RegisterAllTo(calculator.Global(), Options{})
	return err
}

// RegisterAllTo registers the selected catalog entries to the given registry
// and returns the manifest they came from.
func RegisterAllTo(reg *calculator.Registry, opts Options) (*catalog.Manifest, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var (
		m   *catalog.Manifest
		err error
	)
	if opts.File != "" {
		m, err = catalog.LoadFile(opts.File)
	} else {
		m, err = catalog.Default()
	}
	if err != nil {
		return nil, err
	}

	entries := m.Filter(opts.Categories)
	for _, e := range entries {
		if err := e.Register(reg, m.BaseURL); err != nil {
			return nil, err
		}
	}

	source := opts.File
	if source == "" {
		source = "embedded"
	}
	log.Info("calculators registered",
		zap.String("catalog", source),
		zap.String("version", m.Version),
		zap.Int("registered", len(entries)),
		zap.Int("available", len(m.Calculators)),
		zap.Strings("categories", opts.Categories))
	return m, nil
}
