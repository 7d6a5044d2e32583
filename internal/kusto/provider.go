// Package kusto implements schema.Provider against an Azure Data Explorer
// cluster. Requests are de-duplicated and retried by an aggregator and their
// responses memoized in a TTL cache.
package kusto

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/paveg/adxql/internal/aggregator"
	"github.com/paveg/adxql/internal/cache"
	"github.com/paveg/adxql/internal/errors"
	"github.com/paveg/adxql/internal/monitoring"
	"github.com/paveg/adxql/internal/schema"
)

const cacheName = "kusto"

// Provider fetches schema information through a Poster.
type Provider struct {
	agg        *aggregator.Aggregator
	aggConfig  aggregator.Config
	cache      *cache.TTL[string, []byte]
	database   string
	sampleSize int
	logger     log.Logger
	metrics    *monitoring.Metrics
}

// Option configures a Provider.
type Option func(*Provider)

// WithDatabase sets the database management commands run against.
func WithDatabase(db string) Option {
	return func(p *Provider) {
		p.database = db
	}
}

// WithSampleSize sets the number of rows inspected per dynamic column.
func WithSampleSize(n int) Option {
	return func(p *Provider) {
		p.sampleSize = n
	}
}

// WithCacheTTL sets how long responses are memoized.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.cache = cache.New[string, []byte](ttl)
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// WithAggregatorConfig sets the retry behaviour of outbound requests.
func WithAggregatorConfig(cfg aggregator.Config) Option {
	return func(p *Provider) {
		p.aggConfig = cfg
	}
}

// NewProvider creates a provider sending requests through poster.
func NewProvider(poster aggregator.Poster, opts ...Option) *Provider {
	p := &Provider{
		aggConfig:  aggregator.DefaultConfig(),
		cache:      cache.New[string, []byte](cache.DefaultTTL),
		sampleSize: DefaultSampleSize,
		logger:     log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = monitoring.NewMetrics(nil)
	}
	p.agg = aggregator.New(poster,
		aggregator.WithConfig(p.aggConfig),
		aggregator.WithLogger(p.logger),
		aggregator.WithMetrics(p.metrics),
	)
	return p
}

// Aggregator exposes the request aggregator.
func (p *Provider) Aggregator() *aggregator.Aggregator {
	return p.agg
}

// GetSchema implements schema.Provider.
func (p *Provider) GetSchema(ctx context.Context, useCache bool) (*schema.Schema, error) {
	rows, err := p.rows(ctx, MgmtPath, Request{DB: p.database, CSL: ShowSchemaCommand}, useCache)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewFetchError(0, fmt.Errorf("empty response to %s", ShowSchemaCommand))
	}

	s, err := schema.Parse([]byte(rows[0][schemaColumn]))
	if err != nil {
		return nil, errors.NewFetchError(0, err)
	}
	return s, nil
}

// GetDynamicSchema implements schema.Provider. Columns the sample holds no
// value for are absent from the result.
func (p *Provider) GetDynamicSchema(ctx context.Context, database, table string, columns []string) (map[string][]schema.Column, error) {
	out := map[string][]schema.Column{}
	if len(columns) == 0 {
		return out, nil
	}

	req := Request{DB: database, CSL: DynamicSchemaQuery(table, columns, p.sampleSize)}
	rows, err := p.rows(ctx, QueryPath, req, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return out, nil
	}

	for _, c := range columns {
		raw, ok := rows[0][buildSchemaColumn(c)]
		if !ok || raw == "" {
			continue
		}
		sub, err := schema.Flatten(c, []byte(raw))
		if err != nil {
			return nil, err
		}
		out[c] = sub
	}
	level.Debug(p.logger).Log("msg", "resolved dynamic columns", "database", database, "table", table, "columns", len(out))
	return out, nil
}

// Invalidate drops every memoized response.
func (p *Provider) Invalidate() {
	p.cache.Clear()
}

func (p *Provider) rows(ctx context.Context, path string, req Request, useCache bool) ([]map[string]string, error) {
	body, err := p.post(ctx, path, req, useCache)
	if err != nil {
		return nil, err
	}

	var rows []map[string]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.NewFetchError(0, fmt.Errorf("decoding response: %w", err))
	}
	return rows, nil
}

func (p *Provider) post(ctx context.Context, path string, req Request, useCache bool) ([]byte, error) {
	key := aggregator.Key(path, req)
	if useCache {
		body, ok := p.cache.Get(key)
		p.metrics.ObserveCache(cacheName, ok)
		if ok {
			return body, nil
		}
	}

	body, err := p.agg.DSPost(ctx, key, path, req)
	if err != nil {
		return nil, err
	}
	p.cache.Put(key, body)
	return body, nil
}
