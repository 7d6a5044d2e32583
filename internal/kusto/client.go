package kusto

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-kusto-go/azkustodata"
	"github.com/Azure/azure-kusto-go/azkustodata/kql"
	"github.com/Azure/azure-kusto-go/azkustodata/query"
	v1 "github.com/Azure/azure-kusto-go/azkustodata/query/v1"
)

// Executor runs statements against a cluster. *azkustodata.Client
// implements it.
type Executor interface {
	Mgmt(ctx context.Context, db string, stmt azkustodata.Statement, options ...azkustodata.QueryOption) (v1.Dataset, error)
	Query(ctx context.Context, db string, stmt azkustodata.Statement, options ...azkustodata.QueryOption) (query.Dataset, error)
}

// ClientPoster sends Requests through an Executor and returns the primary
// result rows as a JSON array of column-name-keyed objects.
type ClientPoster struct {
	exec Executor
}

// NewClientPoster wraps exec.
func NewClientPoster(exec Executor) *ClientPoster {
	return &ClientPoster{exec: exec}
}

// Post implements aggregator.Poster.
func (c *ClientPoster) Post(ctx context.Context, url string, payload any) ([]byte, error) {
	req, ok := payload.(Request)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}

	stmt := kql.New("").AddUnsafe(req.CSL)

	var (
		ds  query.Dataset
		err error
	)
	switch url {
	case MgmtPath:
		ds, err = c.exec.Mgmt(ctx, req.DB, stmt)
	case QueryPath:
		ds, err = c.exec.Query(ctx, req.DB, stmt)
	default:
		return nil, fmt.Errorf("unknown endpoint %q", url)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(collectRows(ds))
}

// collectRows flattens the primary result, or the first table when the
// dataset marks none as primary.
func collectRows(ds query.Dataset) []map[string]string {
	rows := []map[string]string{}

	tables := ds.Tables()
	var primary query.Table
	for _, t := range tables {
		if t.IsPrimaryResult() {
			primary = t
			break
		}
	}
	if primary == nil {
		if len(tables) == 0 {
			return rows
		}
		primary = tables[0]
	}

	columns := primary.Columns()
	for _, row := range primary.Rows() {
		values := row.Values()
		out := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(values) && values[i] != nil {
				out[col.Name()] = values[i].String()
			}
		}
		rows = append(rows, out)
	}
	return rows
}
