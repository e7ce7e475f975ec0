package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/planner"
	"github.com/roach88/roastery/internal/store"
)

// Catalog is the read-only master data the engine resolves against.
// Implemented by *catalog.Catalog.
type Catalog interface {
	GetRecipe(id string) (domain.Recipe, error)
	GetMaterial(id string) (domain.Material, error)
	MaterialMap() map[string]domain.Material
}

// Config holds the engine's tunables.
type Config struct {
	// DefaultLossRate applies to components whose recipe and material carry none.
	DefaultLossRate decimal.NullDecimal

	// RatioTolerance bounds |Σ ratio − 1|. Zero means domain.DefaultRatioTolerance.
	RatioTolerance decimal.Decimal

	// ExecuteTimeout bounds a single Execute, Record or Reverse including lock
	// waits. Zero means no timeout beyond the caller's context.
	ExecuteTimeout time.Duration

	// BatchPrefix prefixes batch ids. Empty means DefaultBatchPrefix.
	BatchPrefix string
}

// Engine runs planning and production against a store and catalog.
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	store   *store.Store
	catalog Catalog
	cfg     Config
	ids     IDGenerator
	clock   Clock
	locks   *lockSet
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(s *store.Store, cat Catalog, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		catalog: cat,
		cfg:     cfg,
		ids:     UUIDv7Generator{},
		clock:   SystemClock{},
		locks:   newLockSet(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) plannerOptions(overrides map[string]decimal.Decimal) planner.Options {
	return planner.Options{
		Materials:       e.catalog.MaterialMap(),
		Overrides:       overrides,
		DefaultLossRate: e.cfg.DefaultLossRate,
		RatioTolerance:  e.cfg.RatioTolerance,
	}
}

// Plan computes the inputs needed to produce target of a recipe's output and
// compares them with current stock. Shortage is reported in the plan, never
// as an error.
func (e *Engine) Plan(ctx context.Context, recipeID string, target decimal.Decimal, overrides map[string]decimal.Decimal) (*domain.Plan, error) {
	recipe, err := e.catalog.GetRecipe(recipeID)
	if err != nil {
		return nil, err
	}
	if err := planner.ValidateTarget(target); err != nil {
		return nil, err
	}

	opts := e.plannerOptions(overrides)
	opts.Stock, err = e.store.StockMany(ctx, recipe.MaterialIDs())
	if err != nil {
		return nil, classify("read stock", err)
	}
	return planner.Compute(recipe, target, opts)
}

// GetBatch returns a production batch, or BATCH_NOT_FOUND.
func (e *Engine) GetBatch(ctx context.Context, id string) (domain.ProductionBatch, error) {
	b, err := e.store.GetBatch(ctx, id)
	if err != nil {
		return domain.ProductionBatch{}, classify("read batch", err)
	}
	return b, nil
}

// ListBatches returns one page of batches, newest first.
func (e *Engine) ListBatches(ctx context.Context, f domain.BatchFilter) (domain.BatchPage, error) {
	page, err := e.store.ListBatches(ctx, f)
	if err != nil {
		return domain.BatchPage{}, classify("list batches", err)
	}
	return page, nil
}

// StockReport is a material's derived stock and the open lots making it up.
type StockReport struct {
	Material domain.Material `json:"material"`
	Stock    decimal.Decimal `json:"stock"`
	Value    decimal.Decimal `json:"value"`
	Lots     []domain.Lot    `json:"lots"`
}

// Stock reports a catalog material's stock, valued at lot cost.
func (e *Engine) Stock(ctx context.Context, materialID string) (StockReport, error) {
	m, err := e.catalog.GetMaterial(materialID)
	if err != nil {
		return StockReport{}, err
	}
	qty, err := e.store.Stock(ctx, materialID)
	if err != nil {
		return StockReport{}, classify("read stock", err)
	}
	lots, err := e.store.Lots(ctx, materialID, false)
	if err != nil {
		return StockReport{}, classify("read lots", err)
	}

	value := decimal.Zero
	for _, l := range lots {
		value = value.Add(l.Value())
	}
	return StockReport{Material: m, Stock: qty, Value: value, Lots: lots}, nil
}

// Lots returns a material's lots in FIFO order.
func (e *Engine) Lots(ctx context.Context, materialID string, includeExhausted bool) ([]domain.Lot, error) {
	lots, err := e.store.Lots(ctx, materialID, includeExhausted)
	if err != nil {
		return nil, classify("read lots", err)
	}
	return lots, nil
}

// Entries returns a material's ledger entries in append order.
func (e *Engine) Entries(ctx context.Context, materialID string) ([]domain.LedgerEntry, error) {
	entries, err := e.store.Entries(ctx, materialID)
	if err != nil {
		return nil, classify("read entries", err)
	}
	return entries, nil
}

// VerifyConservation checks Σ delta = Σ remaining for every material.
func (e *Engine) VerifyConservation(ctx context.Context) ([]store.Discrepancy, error) {
	out, err := e.store.VerifyConservation(ctx)
	if err != nil {
		return nil, classify("verify conservation", err)
	}
	return out, nil
}

// withTimeout applies ExecuteTimeout to a mutating call.
func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.ExecuteTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.ExecuteTimeout)
	}
	return context.WithCancel(ctx)
}
