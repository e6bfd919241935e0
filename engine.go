package recordquery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brindledata/recordquery/cursor"
	"github.com/brindledata/recordquery/kvstore"
	"github.com/brindledata/recordquery/plan"
	"github.com/brindledata/recordquery/planner"
	"github.com/brindledata/recordquery/stats"
)

// RecordTypeRegistry resolves a record type name to its description.
// Callers populate it once at startup; the engine never mutates it.
type RecordTypeRegistry interface {
	RecordTypeByName(name string) (RecordType, bool)
}

// staticRegistry is the reference RecordTypeRegistry that NewStaticRegistry
// builds from a plain slice of types, for callers without a registry of
// their own.
type staticRegistry struct {
	byName map[string]RecordType
}

func NewStaticRegistry(types []RecordType) RecordTypeRegistry {
	byName := make(map[string]RecordType, len(types))
	for _, t := range types {
		byName[t.Name] = t
	}
	return &staticRegistry{byName: byName}
}

func (r *staticRegistry) RecordTypeByName(name string) (RecordType, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Engine wires the store, record-type registry, statistics, planner and
// plan cache behind one façade, the way the teacher's entityManager wires
// a transformer/repository/registry behind forma.EntityManager
// (internal/entity_manager.go). Query and OpenCursor are the engine's
// entry points; the query façade package builds the planner.Query value
// both consume.
type Engine struct {
	store    kvstore.Store
	accessor RecordAccessor
	types    RecordTypeRegistry
	registry *stats.Registry
	planner  *planner.Planner
	config   Config
	snapshot bool
}

// New constructs an Engine. snapshot controls whether reads default to
// snapshot isolation (spec.md §5); false means serializable reads that
// participate in conflict detection.
func New(store kvstore.Store, accessor RecordAccessor, types RecordTypeRegistry, registry *stats.Registry, cfg Config, snapshot bool) *Engine {
	if registry == nil {
		registry = stats.NewRegistry()
	}
	cache := planner.NewCache(cfg.Cache.MaxEntries)
	return &Engine{
		store:    store,
		accessor: accessor,
		types:    types,
		registry: registry,
		planner:  planner.New(cfg.Planner, registry, cache),
		config:   cfg,
		snapshot: snapshot,
	}
}

// Stats exposes the statistics registry backing this engine's planner, so
// callers can seed or refresh TableStats/IndexStats (spec.md §4.G).
func (e *Engine) Stats() *stats.Registry {
	return e.registry
}

// Close releases the underlying store's resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Query plans and executes q against recordType, returning every matching
// record. A correlation id is stamped per call for log correlation,
// mirroring the teacher's per-row uuid.UUID identifiers
// (internal/entity_manager.go's rowID).
func (e *Engine) Query(ctx context.Context, recordType string, q planner.Query) ([]Record, plan.Explain, error) {
	queryID := uuid.Must(uuid.NewV7())

	rt, ok := e.types.RecordTypeByName(recordType)
	if !ok {
		return nil, plan.Explain{}, NewIndexNotFoundError(recordType).WithDetail("reason", "unknown record type")
	}

	node, explain, err := e.planner.Plan(ctx, rt, q)
	if err != nil {
		return nil, plan.Explain{}, fmt.Errorf("engine: plan query %s: %w", queryID, err)
	}

	zap.S().Debugw("engine: executing query", "queryID", queryID, "recordType", recordType, "plan", explain.Description, "estimatedCost", explain.EstimatedCost)

	c, err := cursor.Open(ctx, cursor.Env{Store: e.store, Accessor: e.accessor, Snapshot: e.snapshot}, node)
	if err != nil {
		return nil, explain, fmt.Errorf("engine: open cursor for query %s: %w", queryID, err)
	}
	defer c.Close()

	var out []Record
	for c.Next(ctx) {
		out = append(out, c.Record())
	}
	if err := c.Err(); err != nil {
		return nil, explain, fmt.Errorf("engine: stream query %s: %w", queryID, err)
	}

	zap.S().Debugw("engine: query complete", "queryID", queryID, "rows", len(out))
	return out, explain, nil
}

// OpenCursor plans q and returns its raw streaming cursor without
// materializing results, for callers that want to pipeline consumption
// (e.g. the aggregate package's GroupBy accumulation).
func (e *Engine) OpenCursor(ctx context.Context, recordType string, q planner.Query) (cursor.Cursor, plan.Explain, error) {
	rt, ok := e.types.RecordTypeByName(recordType)
	if !ok {
		return nil, plan.Explain{}, NewIndexNotFoundError(recordType).WithDetail("reason", "unknown record type")
	}

	node, explain, err := e.planner.Plan(ctx, rt, q)
	if err != nil {
		return nil, plan.Explain{}, fmt.Errorf("engine: plan query: %w", err)
	}

	c, err := cursor.Open(ctx, cursor.Env{Store: e.store, Accessor: e.accessor, Snapshot: e.snapshot}, node)
	if err != nil {
		return nil, explain, fmt.Errorf("engine: open cursor: %w", err)
	}
	return c, explain, nil
}

// Accessor returns the RecordAccessor this engine was configured with, for
// collaborators (aggregate, query) that need to extract fields themselves.
func (e *Engine) Accessor() RecordAccessor {
	return e.accessor
}

// RecordTypeByName exposes the underlying registry lookup to collaborators
// that need a RecordType's indexes (e.g. the aggregate package resolving a
// Rank index by name).
func (e *Engine) RecordTypeByName(name string) (RecordType, bool) {
	return e.types.RecordTypeByName(name)
}

// Store exposes the underlying KV store so the aggregate evaluator can
// point-read aggregate cells and scan Rank indexes directly, bypassing
// the planner (spec.md §4.I: "Aggregates bypass the planner and read
// aggregate indexes directly").
func (e *Engine) Store() kvstore.Store {
	return e.store
}

// Snapshot reports the isolation default this engine was configured
// with, so collaborators issuing their own reads match the engine's
// Query/OpenCursor isolation choice.
func (e *Engine) Snapshot() bool {
	return e.snapshot
}
