package calculator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/calcthis/internal/infra"
	"github.com/seenimoa/calcthis/pkg/models"
)

// Calculation outcomes reported to an Observer.
const (
	OutcomeOK      = "ok"
	OutcomeCached  = "cached"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Observer is notified after every Registry.Calculate call.
type Observer func(id, outcome string, d time.Duration)

// Registry is a thread-safe keyed collection of calculators. It also keeps
// a category index and an optional result cache.
type Registry struct {
	mu          sync.RWMutex
	calculators map[string]Calculator // id → calculator
	categoryIdx map[string][]string   // category → ids (registration order)

	cache    *infra.Cache[*models.Output]
	logger   *zap.Logger
	observer Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache enables result caching with the given TTL. A non-positive TTL
// disables caching.
func WithCache(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.cache = infra.NewCache[*models.Output](ttl)
		}
	}
}

// WithLogger sets the registry's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver installs a callback invoked after each calculation.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		calculators: make(map[string]Calculator),
		categoryIdx: make(map[string][]string),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a calculator. Each call adds exactly one entry; an ID that
// is already present is rejected with ErrDuplicateCalculator.
func (r *Registry) Register(c Calculator) error {
	info := c.Info()
	if info.ID == "" {
		return fmt.Errorf("calculator ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.calculators[info.ID]; exists {
		return &ErrDuplicateCalculator{ID: info.ID}
	}
	r.add(info, c)
	return nil
}

// Replace registers c, overwriting any calculator with the same ID. The swap
// is atomic with respect to Register and Unregister.
func (r *Registry) Replace(c Calculator) error {
	info := c.Info()
	if info.ID == "" {
		return fmt.Errorf("calculator ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(info.ID)
	if r.cache != nil {
		r.cache.InvalidatePrefix(info.ID + "|")
	}
	r.add(info, c)
	return nil
}

// Unregister removes a calculator. Unknown IDs are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(id)
}

// add stores c under info.ID. Must be called with mu held.
func (r *Registry) add(info Info, c Calculator) {
	r.calculators[info.ID] = c
	r.categoryIdx[info.Category] = append(r.categoryIdx[info.Category], info.ID)

	r.logger.Debug("calculator registered",
		zap.String("id", info.ID),
		zap.String("category", info.Category))
}

// remove drops id and its category index entry. Must be called with mu held.
func (r *Registry) remove(id string) {
	c, ok := r.calculators[id]
	if !ok {
		return
	}
	delete(r.calculators, id)

	cat := c.Info().Category
	ids := r.categoryIdx[cat]
	filtered := ids[:0]
	for _, n := range ids {
		if n != id {
			filtered = append(filtered, n)
		}
	}
	if len(filtered) == 0 {
		delete(r.categoryIdx, cat)
	} else {
		r.categoryIdx[cat] = filtered
	}
}

// Get returns a calculator by ID.
func (r *Registry) Get(id string) (Calculator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.calculators[id]
	if !ok {
		return nil, &ErrCalculatorNotFound{ID: id}
	}
	return c, nil
}

// Len returns the number of registered calculators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calculators)
}

// List returns info about all registered calculators, sorted by ID.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.calculators))
	for _, c := range r.calculators {
		infos = append(infos, c.Info())
	}
	sortInfos(infos)
	return infos
}

// ListByCategory returns the calculators in a category, sorted by ID.
// Category matching is case-insensitive.
func (r *Registry) ListByCategory(category string) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []Info
	for cat, ids := range r.categoryIdx {
		if !strings.EqualFold(cat, category) {
			continue
		}
		for _, id := range ids {
			infos = append(infos, r.calculators[id].Info())
		}
	}
	sortInfos(infos)
	return infos
}

// Search returns calculators whose metadata matches q, sorted by ID.
func (r *Registry) Search(q string) []Info {
	all := r.List()
	out := all[:0]
	for _, info := range all {
		if info.Matches(q) {
			out = append(out, info)
		}
	}
	return out
}

// Categories returns category names with their calculator counts.
func (r *Registry) Categories() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cats := make(map[string]int, len(r.categoryIdx))
	for cat, ids := range r.categoryIdx {
		cats[cat] = len(ids)
	}
	return cats
}

// Validate runs the calculator's validator on inputs.
func (r *Registry) Validate(id string, in models.Inputs) (models.ValidationResult, error) {
	c, err := r.Get(id)
	if err != nil {
		return models.ValidationResult{}, err
	}
	return c.Validate(in), nil
}

// Calculate validates inputs and runs the calculator, serving repeated
// requests from the result cache when one is configured.
func (r *Registry) Calculate(ctx context.Context, id string, in models.Inputs) (*models.Output, error) {
	start := time.Now()

	c, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if v := c.Validate(in); !v.IsValid {
		r.observe(id, OutcomeInvalid, start)
		return nil, &ErrValidation{ID: id, Errors: v.Errors}
	}

	key := CacheKey(id, in)
	if r.cache != nil {
		if out, ok := r.cache.Get(key); ok {
			cp := *out
			cp.Cached = true
			r.observe(id, OutcomeCached, start)
			return &cp, nil
		}
	}

	out, err := c.Calculate(ctx, in)
	if err != nil {
		r.observe(id, OutcomeError, start)
		r.logger.Debug("calculation failed", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("calculator %q: %w", id, err)
	}

	if out.CalculatorID == "" {
		out.CalculatorID = id
	}
	if out.CalculatedAt.IsZero() {
		out.CalculatedAt = time.Now()
	}
	if r.cache != nil {
		r.cache.Set(key, out)
	}
	r.observe(id, OutcomeOK, start)
	return out, nil
}

// CachedResults returns the number of entries held by the result cache.
func (r *Registry) CachedResults() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

// RunCacheCleanup evicts expired results every interval until ctx is done.
// It returns immediately when caching is disabled.
func (r *Registry) RunCacheCleanup(ctx context.Context, interval time.Duration) {
	if r.cache == nil {
		return
	}
	r.cache.RunCleanup(ctx, interval)
}

func (r *Registry) observe(id, outcome string, start time.Time) {
	if r.observer != nil {
		r.observer(id, outcome, time.Since(start))
	}
}

// CacheKey builds a deterministic cache key from a calculator ID and inputs.
func CacheKey(id string, in models.Inputs) string {
	var b strings.Builder
	b.WriteString(id)
	b.WriteByte('|')
	for _, name := range models.InputNames {
		b.WriteString(name)
		b.WriteByte('=')
		if v, ok := in.Get(name); ok {
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		} else {
			b.WriteByte('-')
		}
		b.WriteByte(';')
	}
	return b.String()
}

func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
}

// global is the process-wide calculator registry.
var global = NewRegistry()

// Global returns the process-wide calculator registry.
func Global() *Registry {
	return global
}

// RegisterCalculator adds a calculator to the global registry.
func RegisterCalculator(c Calculator) error {
	return global.Register(c)
}
