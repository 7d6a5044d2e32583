package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-kusto-go/azkustodata"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/paveg/adxql/internal/aggregator"
	"github.com/paveg/adxql/internal/config"
	"github.com/paveg/adxql/internal/kusto"
	"github.com/paveg/adxql/internal/monitoring"
	"github.com/paveg/adxql/internal/schema"
	"github.com/paveg/adxql/internal/version"
)

// staticProvider serves a schema read from a file.
type staticProvider struct {
	schema *schema.Schema
}

func loadStaticProvider(path string) (*staticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	s, err := schema.Parse(data)
	if err != nil {
		return nil, err
	}
	return &staticProvider{schema: s}, nil
}

func (p *staticProvider) GetSchema(context.Context, bool) (*schema.Schema, error) {
	return p.schema, nil
}

func (p *staticProvider) GetDynamicSchema(context.Context, string, string, []string) (map[string][]schema.Column, error) {
	return nil, nil
}

// clusterResolver is a resolver backed by a live cluster. close releases
// the client and invalidate drops cached responses.
type clusterResolver struct {
	*schema.Resolver
	close      func() error
	invalidate func()
}

func newClusterResolver(cfg config.Config, logger log.Logger, reg prometheus.Registerer) (*clusterResolver, *monitoring.Metrics, error) {
	if cfg.ClusterURL == "" {
		return nil, nil, fmt.Errorf("no cluster configured")
	}

	kcsb := azkustodata.NewConnectionStringBuilder(cfg.ClusterURL).WithDefaultAzureCredential()
	kcsb.SetConnectorDetails("adxql", version.Version, "", "", false, "")
	client, err := azkustodata.New(kcsb)
	if err != nil {
		return nil, nil, fmt.Errorf("creating kusto client: %w", err)
	}

	metrics := monitoring.NewMetrics(reg)
	provider := kusto.NewProvider(kusto.NewClientPoster(client),
		kusto.WithDatabase(cfg.DefaultDatabase),
		kusto.WithSampleSize(cfg.DynamicSampleSize),
		kusto.WithCacheTTL(cfg.CacheTTL),
		kusto.WithLogger(logger),
		kusto.WithMetrics(metrics),
		kusto.WithAggregatorConfig(aggregator.Config{
			Retries:    1,
			MinBackoff: cfg.RetryMinBackoff,
			MaxBackoff: cfg.RetryMaxBackoff,
		}),
	)

	r := schema.NewResolver(provider, schema.WithLogger(logger), schema.WithMetrics(metrics))
	return &clusterResolver{Resolver: r, close: client.Close, invalidate: provider.Invalidate}, metrics, nil
}

// resolverFor returns a resolver over the schema file when given, else over
// the configured cluster.
func resolverFor(schemaFile string, cfg config.Config, logger log.Logger) (*clusterResolver, error) {
	if schemaFile != "" {
		p, err := loadStaticProvider(schemaFile)
		if err != nil {
			return nil, err
		}
		r := schema.NewResolver(p, schema.WithLogger(logger))
		return &clusterResolver{Resolver: r, close: func() error { return nil }, invalidate: func() {}}, nil
	}
	r, _, err := newClusterResolver(cfg, logger, nil)
	return r, err
}
