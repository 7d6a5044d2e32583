package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/adxql/internal/expression"
	"github.com/paveg/adxql/internal/schema"
	"github.com/paveg/adxql/internal/testutil"
)

const clusterSchema = `{
  "Databases": {
    "Samples": {
      "Name": "Samples",
      "Tables": {
        "Zeta": {"Name": "Zeta", "OrderedColumns": [{"Name": "Ts", "Type": "System.DateTime", "CslType": "datetime"}]},
        "Alpha": {"Name": "Alpha", "OrderedColumns": [
          {"Name": "B", "Type": "System.String", "CslType": "string"},
          {"Name": "A", "Type": "System.Int64", "CslType": "long"}
        ]}
      },
      "MaterializedViews": {
        "Daily": {"Name": "Daily", "OrderedColumns": [{"Name": "Day", "Type": "System.DateTime", "CslType": "datetime"}]}
      },
      "ExternalTables": {},
      "Functions": {
        "Top": {"Name": "Top", "InputParameters": [{"Name": "n", "Type": "System.Int64", "CslType": "long"}], "Body": "{ Zeta | take n }", "OutputColumns": []}
      }
    },
    "Empty": {"Tables": null}
  }
}`

func TestParse(t *testing.T) {
	s, err := schema.Parse([]byte(clusterSchema))
	require.NoError(t, err)
	require.Len(t, s.Databases, 2)

	db, ok := s.Database("Samples")
	require.True(t, ok)
	require.Len(t, db.Tables, 2)
	assert.Equal(t, "Zeta", db.Tables[0].Name)
	assert.Equal(t, "Alpha", db.Tables[1].Name)
	assert.Equal(t, "B", db.Tables[1].OrderedColumns[0].Name)
	require.Len(t, db.MaterializedViews, 1)
	assert.Empty(t, db.ExternalTables)
	require.Len(t, db.Functions, 1)
	assert.Equal(t, "{ Zeta | take n }", db.Functions[0].Body)

	empty, ok := s.Database("Empty")
	require.True(t, ok, "name falls back to the object key")
	assert.Empty(t, empty.Tables)

	view, ok := db.Table("Daily")
	require.True(t, ok)
	assert.Equal(t, "Day", view.OrderedColumns[0].Name)

	_, ok = s.Database("missing")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: `{`},
		{name: "tables not an object", input: `{"Databases": {"a": {"Tables": []}}}`},
		{name: "databases not an object", input: `{"Databases": 3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestSchema_MarshalKeepsOrder(t *testing.T) {
	s, err := schema.Parse([]byte(clusterSchema))
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	again, err := schema.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestPropertyTypeFor(t *testing.T) {
	tests := []struct {
		csl      string
		expected expression.PropertyType
	}{
		{"real", expression.TypeNumber},
		{"int", expression.TypeNumber},
		{"long", expression.TypeNumber},
		{"datetime", expression.TypeDateTime},
		{"bool", expression.TypeBoolean},
		{"string", expression.TypeString},
		{"timespan", expression.TypeString},
		{"dynamic", expression.TypeString},
		{"guid", expression.TypeString},
		{"", expression.TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.csl, func(t *testing.T) {
			assert.Equal(t, tt.expected, schema.PropertyTypeFor(tt.csl))
			assert.Equal(t, tt.expected, schema.Column{CslType: tt.csl}.PropertyType())
		})
	}
}

func TestFlatten(t *testing.T) {
	cols := testutil.StormSummaryColumns(t)

	testutil.AssertColumnNames(t, []string{
		`StormSummary["Details"]["Description"]`,
		`StormSummary["Details"]["Location"]`,
		`StormSummary["Tags"]`,
		`StormSummary["TotalDamage"]`,
	}, cols)

	assert.Equal(t, "string", cols[0].CslType)
	assert.Equal(t, "System.String", cols[0].Type)
	assert.Equal(t, schema.DynamicType, cols[2].CslType)
	assert.Equal(t, "long", cols[3].CslType, "first candidate type wins")
	for _, c := range cols {
		assert.True(t, c.IsDynamic)
	}
}

func TestFlatten_Invalid(t *testing.T) {
	_, err := schema.Flatten("x", []byte(`[`))
	assert.Error(t, err)

	cols, err := schema.Flatten("x", []byte(`"string"`))
	require.NoError(t, err)
	assert.Empty(t, cols, "a scalar root has no sub-columns")
}

func TestSubColumnName(t *testing.T) {
	assert.Equal(t, "col", schema.SubColumnName("col"))
	assert.Equal(t, `col["a"]["b"]`, schema.SubColumnName("col", "a", "b"))
}

func TestArrowSchema(t *testing.T) {
	s := schema.ArrowSchema(testutil.StormEventsColumns())

	require.Equal(t, 9, s.NumFields())
	assert.Equal(t, arrow.TIMESTAMP, s.Field(0).Type.ID())
	assert.Equal(t, arrow.PrimitiveTypes.Int32, s.Field(2).Type)
	assert.Equal(t, arrow.BinaryTypes.String, s.Field(3).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Int64, s.Field(6).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, s.Field(7).Type)
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, s.Field(8).Type)
	assert.True(t, s.Field(0).Nullable)

	csl, ok := s.Field(6).Metadata.GetValue("cslType")
	require.True(t, ok)
	assert.Equal(t, "long", csl)

	assert.Equal(t, arrow.FixedWidthTypes.Duration_ns, schema.ArrowType("timespan"))
}

func TestClrType(t *testing.T) {
	assert.Equal(t, "System.SByte", schema.ClrType("bool"))
	assert.Equal(t, "System.Int64", schema.ClrType("LONG"))
	assert.Equal(t, "System.Object", schema.ClrType("unknown"))
}
