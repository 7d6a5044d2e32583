// Package testutil provides shared fixtures for schema, provider and
// transport tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/adxql/internal/schema"
)

// Fixture names.
const (
	SamplesDatabase   = "Samples"
	LogsDatabase      = "Logs"
	StormEventsTable  = "StormEvents"
	DailyStormsView   = "StormEventsDaily"
	TracesTable       = "Traces"
	StormSummaryField = "StormSummary"
)

// StormSummaryBuildSchema is the buildschema result of the StormSummary
// dynamic column.
const StormSummaryBuildSchema = `{"Details":{"Description":"string","Location":"string"},"TotalDamage":["long","real"],"Tags":{"` + "`indexer`" + `":"string"}}`

// SchemaOption configures the fixture schema.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	withDynamic bool
}

// WithDynamicColumn adds the dynamic StormSummary column to StormEvents.
func WithDynamicColumn() SchemaOption {
	return func(cfg *schemaConfig) {
		cfg.withDynamic = true
	}
}

// StormEventsColumns returns the StormEvents columns in declaration order.
func StormEventsColumns() []schema.Column {
	return []schema.Column{
		column("StartTime", "datetime"),
		column("EndTime", "datetime"),
		column("EpisodeId", "int"),
		column("State", "string"),
		column("StateCode", "string"),
		column("EventType", "string"),
		column("DamageProperty", "long"),
		column("DamageCrops", "real"),
		column("Confirmed", "bool"),
	}
}

// TracesColumns returns the columns of a table without datetime columns.
func TracesColumns() []schema.Column {
	return []schema.Column{
		column("Message", "string"),
		column("SeverityLevel", "int"),
	}
}

// CreateTestSchema builds the fixture schema:
//   - Samples: StormEvents table, StormEventsDaily view, StormsInState function
//   - Logs: Traces table
func CreateTestSchema(opts ...SchemaOption) *schema.Schema {
	cfg := &schemaConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	storm := StormEventsColumns()
	if cfg.withDynamic {
		storm = append(storm, column(StormSummaryField, schema.DynamicType))
	}

	return &schema.Schema{
		Databases: []*schema.Database{
			{
				Name:   SamplesDatabase,
				Tables: []*schema.Table{{Name: StormEventsTable, OrderedColumns: storm}},
				MaterializedViews: []*schema.Table{{
					Name: DailyStormsView,
					OrderedColumns: []schema.Column{
						column("Day", "datetime"),
						column("State", "string"),
						column("Events", "long"),
					},
				}},
				Functions: []*schema.Function{{
					Name:            "StormsInState",
					InputParameters: []schema.Column{column("state", "string")},
					Body:            "{ StormEvents | where State == state }",
				}},
			},
			{
				Name:   LogsDatabase,
				Tables: []*schema.Table{{Name: TracesTable, OrderedColumns: TracesColumns()}},
			},
		},
	}
}

func column(name, cslType string) schema.Column {
	return schema.Column{Name: name, CslType: cslType, Type: schema.ClrType(cslType)}
}

// StormSummaryColumns returns the flattened StormSummary sub-columns.
func StormSummaryColumns(t *testing.T) []schema.Column {
	t.Helper()

	cols, err := schema.Flatten(StormSummaryField, []byte(StormSummaryBuildSchema))
	require.NoError(t, err)
	return cols
}

// FakeProvider is an in-memory schema.Provider that records its calls.
type FakeProvider struct {
	Schema    *schema.Schema
	SchemaErr error

	// Dynamic holds sub-columns keyed by schema.DynamicKey.
	Dynamic    map[string][]schema.Column
	DynamicErr map[string]error

	mu           sync.Mutex
	schemaCalls  int
	dynamicCalls []string
	useCache     []bool
}

// NewFakeProvider creates a provider serving s.
func NewFakeProvider(s *schema.Schema) *FakeProvider {
	return &FakeProvider{
		Schema:     s,
		Dynamic:    map[string][]schema.Column{},
		DynamicErr: map[string]error{},
	}
}

// GetSchema implements schema.Provider.
func (p *FakeProvider) GetSchema(_ context.Context, useCache bool) (*schema.Schema, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.schemaCalls++
	p.useCache = append(p.useCache, useCache)
	if p.SchemaErr != nil {
		return nil, p.SchemaErr
	}
	return p.Schema, nil
}

// GetDynamicSchema implements schema.Provider.
func (p *FakeProvider) GetDynamicSchema(_ context.Context, database, table string, columns []string) (map[string][]schema.Column, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dynamicCalls = append(p.dynamicCalls, database+"."+table)
	if err := p.DynamicErr[database+"."+table]; err != nil {
		return nil, err
	}
	out := map[string][]schema.Column{}
	for _, c := range columns {
		if sub, ok := p.Dynamic[schema.DynamicKey(database, table, c)]; ok {
			out[c] = sub
		}
	}
	return out, nil
}

// SchemaCalls returns how many times GetSchema was called.
func (p *FakeProvider) SchemaCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.schemaCalls
}

// DynamicCalls returns the database.table pairs GetDynamicSchema was asked for.
func (p *FakeProvider) DynamicCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.dynamicCalls...)
}

// PostCall records one FakePoster request.
type PostCall struct {
	URL     string
	Payload any
}

// FakePoster is a scripted transport. Each call is answered by Handler,
// after Delay if set.
type FakePoster struct {
	Handler func(call int, url string, payload any) ([]byte, error)
	Delay   time.Duration

	mu    sync.Mutex
	calls []PostCall
}

// Post records the call and answers it.
func (p *FakePoster) Post(ctx context.Context, url string, payload any) ([]byte, error) {
	p.mu.Lock()
	p.calls = append(p.calls, PostCall{URL: url, Payload: payload})
	n := len(p.calls)
	p.mu.Unlock()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.Handler == nil {
		return nil, fmt.Errorf("no handler for %s", url)
	}
	return p.Handler(n, url, payload)
}

// Calls returns the recorded calls.
func (p *FakePoster) Calls() []PostCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PostCall(nil), p.calls...)
}

// AssertColumnNames verifies the names of columns, in order.
func AssertColumnNames(t *testing.T, expected []string, columns []schema.Column) {
	t.Helper()

	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, expected, names)
}

// UseCacheFlags returns the useCache argument of every GetSchema call.
func (p *FakeProvider) UseCacheFlags() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.useCache...)
}
