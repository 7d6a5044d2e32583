// Package adxql builds Azure Data Explorer (KQL) queries from visual query
// expressions. It compiles expressions against table schemas, expands
// template macros, and resolves and caches cluster schemas.
// This package is the sole public API for the library.
package adxql

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/paveg/adxql/internal/expression"
	"github.com/paveg/adxql/internal/kql"
	"github.com/paveg/adxql/internal/kusto"
	"github.com/paveg/adxql/internal/macros"
	"github.com/paveg/adxql/internal/monitoring"
	"github.com/paveg/adxql/internal/schema"
	"github.com/paveg/adxql/internal/validation"
)

// QueryExpression is the root of a visual query.
type QueryExpression = expression.QueryExpression

// Column describes a table column as reported by the cluster.
type Column = schema.Column

// Schema is the cluster schema document.
type Schema = schema.Schema

// Provider fetches schemas. Executor-backed providers come from
// NewKustoProvider.
type Provider = schema.Provider

// Executor runs management commands and queries; *azkustodata.Client
// implements it.
type Executor = kusto.Executor

// ScopedVars are per-request variable overrides.
type ScopedVars = macros.ScopedVars

// TimeRange is the query window used by the time macros.
type TimeRange = macros.TimeRange

// NewQuery returns an empty expression over table.
func NewQuery(table string) QueryExpression {
	return expression.New(table)
}

// ParseExpression decodes a persisted query expression.
func ParseExpression(data []byte) (QueryExpression, error) {
	return expression.Parse(data)
}

// Compile renders q as KQL. columns is the source table's schema and may be
// empty.
func Compile(q QueryExpression, columns []Column) string {
	return kql.Compile(q, columns)
}

// Validate checks q against the known tables and columns. An empty tables
// list skips the table check.
func Validate(q QueryExpression, tables []string, columns []Column) []error {
	return validation.ValidateQuery(q, tables, columns)
}

// Interpolate replaces template variables in query and expands the
// $__contains, $__escapeMulti and interval macros, plus the time macros
// when tr is non-nil.
func Interpolate(query string, vars map[string][]string, scoped ScopedVars, tr *TimeRange) string {
	return macros.New(macros.NewTemplateVariables(vars)).ApplyTemplateVariables(query, scoped, tr)
}

// Resolver resolves a cluster schema once and answers lookups from memory.
type Resolver struct {
	r *schema.Resolver
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	logger   log.Logger
	registry prometheus.Registerer
	useCache bool
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) ResolverOption {
	return func(c *resolverConfig) {
		c.logger = l
	}
}

// WithRegisterer registers the resolver metrics with reg.
func WithRegisterer(reg prometheus.Registerer) ResolverOption {
	return func(c *resolverConfig) {
		c.registry = reg
	}
}

// WithProviderCache controls whether the provider may answer from its
// response cache.
func WithProviderCache(enabled bool) ResolverOption {
	return func(c *resolverConfig) {
		c.useCache = enabled
	}
}

// NewResolver creates a resolver over provider.
func NewResolver(provider Provider, opts ...ResolverOption) *Resolver {
	cfg := resolverConfig{logger: log.NewNopLogger(), useCache: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Resolver{r: schema.NewResolver(provider,
		schema.WithLogger(cfg.logger),
		schema.WithMetrics(monitoring.NewMetrics(cfg.registry)),
		schema.WithProviderCache(cfg.useCache),
	)}
}

// NewKustoProvider returns a Provider issuing requests through exec, with
// concurrent identical requests merged and responses cached for cacheTTL.
func NewKustoProvider(exec Executor, database string, cacheTTL time.Duration) Provider {
	return kusto.NewProvider(kusto.NewClientPoster(exec),
		kusto.WithDatabase(database),
		kusto.WithCacheTTL(cacheTTL),
	)
}

// Resolve loads the schema and the sub-schemas of dynamic columns. It is a
// no-op once a resolution succeeded.
func (r *Resolver) Resolve(ctx context.Context) error {
	return r.r.ResolveAndCacheSchema(ctx)
}

// Databases lists the database names.
func (r *Resolver) Databases() []string {
	return r.r.GetDatabases()
}

// Tables lists the tables and materialized views of db.
func (r *Resolver) Tables(db string) []string {
	return r.r.GetTablesForDatabase(db)
}

// Columns lists the columns of a table, dynamic sub-columns included.
func (r *Resolver) Columns(db, table string) []Column {
	return r.r.GetColumnsForTable(db, table)
}

// ColumnType returns the CSL type of a column.
func (r *Resolver) ColumnType(db, table, column string) (string, bool) {
	return r.r.GetColumnType(db, table, column)
}

// Reset drops the resolved schema so the next Resolve fetches it again.
func (r *Resolver) Reset() {
	r.r.Reset()
}

// Compile resolves the schema of q's table in db and renders q. Resolution
// failures fall back to compiling without a schema and are returned
// alongside the query.
func (r *Resolver) Compile(ctx context.Context, db string, q QueryExpression) (string, error) {
	err := r.Resolve(ctx)
	return Compile(q, r.Columns(db, q.Table())), err
}
