package kusto

import (
	"fmt"
	"strings"

	"github.com/paveg/adxql/internal/common"
)

// Endpoint paths of the cluster REST API.
const (
	MgmtPath  = "/v1/rest/mgmt"
	QueryPath = "/v1/rest/query"
)

// ShowSchemaCommand returns the schema of every database as one JSON value.
const ShowSchemaCommand = ".show databases schema as json"

// schemaColumn is the result column of ShowSchemaCommand.
const schemaColumn = "DatabaseSchema"

// DefaultSampleSize is the number of rows buildschema inspects.
const DefaultSampleSize = 50000

// Request is the body posted to the cluster.
type Request struct {
	DB  string `json:"db"`
	CSL string `json:"csl"`
}

// DynamicSchemaQuery builds the query that infers the layout of the
// dynamic columns of table from a sample of non-empty rows.
func DynamicSchemaQuery(table string, columns []string, sampleSize int) string {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	names := make([]string, len(columns))
	notNull := make([]string, len(columns))
	builds := make([]string, len(columns))
	for i, c := range columns {
		names[i] = entity(c)
		notNull[i] = common.FormatFunction("isnotnull", names[i])
		builds[i] = common.FormatFunction("buildschema", names[i])
	}

	return strings.Join([]string{
		entity(table),
		fmt.Sprintf("take %d", sampleSize),
		common.FormatClause("where", strings.Join(notNull, " and ")),
		common.FormatClause("project", strings.Join(names, ", ")),
		common.FormatClause("summarize", strings.Join(builds, ", ")),
	}, "\n| ")
}

// buildSchemaColumn is the result column of buildschema(column).
func buildSchemaColumn(column string) string {
	return "schema_" + column
}

func entity(name string) string {
	if common.IsIdentifier(name) {
		return name
	}
	return "['" + name + "']"
}
