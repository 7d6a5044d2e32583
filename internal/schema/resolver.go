package schema

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/paveg/adxql/internal/monitoring"
	"github.com/paveg/adxql/internal/parallel"
)

// Provider fetches schema information from a cluster.
type Provider interface {
	// GetSchema returns the full cluster schema. With useCache set the
	// provider may answer from memoized responses.
	GetSchema(ctx context.Context, useCache bool) (*Schema, error)

	// GetDynamicSchema returns the flattened sub-columns of the named
	// dynamic columns of a table, keyed by column name.
	GetDynamicSchema(ctx context.Context, database, table string, columns []string) (map[string][]Column, error)
}

// Resolver memoizes the schema of one data source. It resolves once and
// serves lookups from memory until Reset is called.
type Resolver struct {
	provider Provider
	logger   log.Logger
	metrics  *monitoring.Metrics
	useCache bool
	pool     *parallel.WorkerPool

	// resolveMu serializes resolutions.
	resolveMu sync.Mutex

	mu      sync.RWMutex
	cached  bool
	schema  *Schema
	dynamic map[string][]Column
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithProviderCache lets the provider answer from its response cache.
func WithProviderCache(enabled bool) Option {
	return func(r *Resolver) {
		r.useCache = enabled
	}
}

// WithConcurrency bounds how many tables have their dynamic columns fetched
// at once.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		r.pool = parallel.NewWorkerPool(n)
	}
}

// NewResolver creates a resolver on top of provider.
func NewResolver(provider Provider, opts ...Option) *Resolver {
	r := &Resolver{
		provider: provider,
		logger:   log.NewNopLogger(),
		useCache: true,
		pool:     parallel.NewWorkerPool(0),
		dynamic:  map[string][]Column{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DynamicKey identifies the sub-columns of a dynamic column.
func DynamicKey(database, table, column string) string {
	return database + "." + table + "." + column
}

// ResolveAndCacheSchema fetches the schema and the sub-schemas of every
// dynamic column. It is a no-op once a resolution succeeded. A failed schema
// fetch or a cancelled ctx is logged and returned, and leaves the resolver
// empty so a later call retries. A failed sub-schema fetch only drops that table's dynamic
// columns.
func (r *Resolver) ResolveAndCacheSchema(ctx context.Context) error {
	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()

	if r.isCached() {
		return nil
	}

	s, err := r.provider.GetSchema(ctx, r.useCache)
	if err != nil {
		level.Error(r.logger).Log("msg", "failed to resolve schema", "err", err)
		r.observe("error")
		return err
	}

	dynamic := r.resolveDynamic(ctx, s)

	// Tables skipped by a cancelled fan-out would otherwise stay unresolved.
	if err := ctx.Err(); err != nil {
		level.Warn(r.logger).Log("msg", "schema resolution cancelled", "err", err)
		r.observe("error")
		return err
	}

	r.mu.Lock()
	r.schema = s
	r.dynamic = dynamic
	r.cached = true
	r.mu.Unlock()

	level.Debug(r.logger).Log("msg", "schema resolved", "databases", len(s.Databases), "dynamic_columns", len(dynamic))
	r.observe("success")
	return nil
}

type dynamicTable struct {
	database string
	table    string
	columns  []string
}

type dynamicResult struct {
	columns map[string][]Column
	err     error
}

// resolveDynamic fetches the sub-columns of every table with dynamic
// columns. A failed table is logged and skipped.
func (r *Resolver) resolveDynamic(ctx context.Context, s *Schema) map[string][]Column {
	var tables []dynamicTable
	for _, db := range s.Databases {
		for _, t := range db.Tables {
			if columns := t.DynamicColumns(); len(columns) > 0 {
				tables = append(tables, dynamicTable{database: db.Name, table: t.Name, columns: columns})
			}
		}
	}

	results := parallel.ProcessIndexed(ctx, r.pool, tables, func(ctx context.Context, _ int, t dynamicTable) dynamicResult {
		sub, err := r.provider.GetDynamicSchema(ctx, t.database, t.table, t.columns)
		return dynamicResult{columns: sub, err: err}
	})

	dynamic := map[string][]Column{}
	for i, res := range results {
		t := tables[i]
		if res.err != nil {
			level.Warn(r.logger).Log("msg", "failed to resolve dynamic columns", "database", t.database, "table", t.table, "err", res.err)
			continue
		}
		for column, cols := range res.columns {
			dynamic[DynamicKey(t.database, t.table, column)] = cols
		}
	}
	return dynamic
}

func (r *Resolver) observe(status string) {
	if r.metrics != nil {
		r.metrics.SchemaResolutions.WithLabelValues(status).Inc()
	}
}

func (r *Resolver) isCached() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cached
}

// IsCached reports whether a resolution succeeded since the last Reset.
func (r *Resolver) IsCached() bool {
	return r.isCached()
}

// Schema returns the resolved schema, or nil.
func (r *Resolver) Schema() *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schema
}

// GetDatabases lists the database names.
func (r *Resolver) GetDatabases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.schema == nil {
		return []string{}
	}
	names := make([]string, 0, len(r.schema.Databases))
	for _, d := range r.schema.Databases {
		names = append(names, d.Name)
	}
	return names
}

// GetTablesForDatabase lists the tables of db followed by its materialized
// views.
func (r *Resolver) GetTablesForDatabase(db string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.schema.Database(db)
	if !ok {
		return []string{}
	}
	names := make([]string, 0, len(d.Tables)+len(d.MaterializedViews))
	for _, t := range d.Tables {
		names = append(names, t.Name)
	}
	for _, t := range d.MaterializedViews {
		names = append(names, t.Name)
	}
	return names
}

// GetColumnsForTable lists the columns of a table. Resolved dynamic columns
// are replaced by their sub-columns.
func (r *Resolver) GetColumnsForTable(db, table string) []Column {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.schema.Database(db)
	if !ok {
		return []Column{}
	}
	t, ok := d.Table(table)
	if !ok {
		return []Column{}
	}

	out := make([]Column, 0, len(t.OrderedColumns))
	for _, c := range t.OrderedColumns {
		if c.CslType == DynamicType {
			if sub, ok := r.dynamic[DynamicKey(db, table, c.Name)]; ok {
				out = append(out, sub...)
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// GetColumnType returns the CSL type of a column or dynamic sub-column.
func (r *Resolver) GetColumnType(db, table, column string) (string, bool) {
	for _, c := range r.GetColumnsForTable(db, table) {
		if c.Name == column {
			return c.CslType, true
		}
	}
	return "", false
}

// GetFunctionsForDatabase lists the stored functions of db.
func (r *Resolver) GetFunctionsForDatabase(db string) []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.schema.Database(db)
	if !ok {
		return []Function{}
	}
	out := make([]Function, 0, len(d.Functions))
	for _, f := range d.Functions {
		out = append(out, *f)
	}
	return out
}

// Reset drops everything resolved so far.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cached = false
	r.schema = nil
	r.dynamic = map[string][]Column{}
}

// InvalidatePrefix drops the sub-columns whose database.table.column key
// starts with prefix and returns how many were dropped.
func (r *Resolver) InvalidatePrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0)
	for k := range r.dynamic {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		delete(r.dynamic, k)
	}
	return len(keys)
}

// DynamicKeys lists the keys of the resolved sub-schemas, sorted.
func (r *Resolver) DynamicKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.dynamic))
	for k := range r.dynamic {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
