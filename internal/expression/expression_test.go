package expression_test

import (
	"encoding/json"
	"testing"

	"github.com/paveg/adxql/internal/expression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const savedQuery = `{
  "from": {"type": "property", "property": {"name": "StormEvents", "type": "string"}},
  "where": {
    "type": "and",
    "expressions": [
      {
        "type": "or",
        "expressions": [
          {
            "type": "operator",
            "property": {"name": "StateCode", "type": "string"},
            "operator": {"name": "!in", "value": ["NY", "TX"]}
          }
        ]
      }
    ]
  },
  "reduce": {
    "type": "and",
    "expressions": [
      {
        "type": "reduce",
        "property": {"name": "DamageProperty", "type": "number"},
        "reduce": {"name": "percentile", "type": "function"},
        "parameters": [{"type": "functionParameter", "name": "percentile", "fieldType": "number", "value": 95}]
      }
    ]
  },
  "groupBy": {
    "type": "and",
    "expressions": [
      {
        "type": "groupBy",
        "property": {"name": "StartTime", "type": "dateTime"},
        "interval": {"name": "1h", "type": "interval"}
      }
    ]
  },
  "timeshift": {"type": "property", "property": {"name": "1d", "type": "timeSpan"}}
}`

func TestParse_SavedQuery(t *testing.T) {
	q, err := expression.Parse([]byte(savedQuery))
	require.NoError(t, err)

	assert.Equal(t, "StormEvents", q.Table())
	assert.True(t, q.IsAggregated())
	require.NotNil(t, q.Timeshift)
	assert.Equal(t, "1d", q.Timeshift.Property.Name)

	require.Len(t, q.Where.Expressions, 1)
	group, ok := q.Where.Expressions[0].(expression.OrExpression)
	require.True(t, ok)
	require.Len(t, group.Expressions, 1)
	op, ok := group.Expressions[0].(expression.OperatorExpression)
	require.True(t, ok)
	assert.Equal(t, "StateCode", op.Property.Name)
	assert.Equal(t, []string{"NY", "TX"}, op.Operator.Value.Strings())

	require.Len(t, q.Reduce.Expressions, 1)
	reduce, ok := q.Reduce.Expressions[0].(expression.ReduceExpression)
	require.True(t, ok)
	assert.Equal(t, "percentile", reduce.Reduce.Name)
	require.Len(t, reduce.Parameters, 1)
	assert.Equal(t, "95", reduce.Parameters[0].Value.String())

	group2, ok := q.GroupBy.Expressions[0].(expression.GroupByExpression)
	require.True(t, ok)
	require.NotNil(t, group2.Interval)
	assert.Equal(t, expression.TypeInterval, group2.Interval.Type)
}

func TestParse_MissingArraysAreNormalized(t *testing.T) {
	q, err := expression.Parse([]byte(`{"from": {"type": "property", "property": {"name": "T", "type": "string"}}}`))
	require.NoError(t, err)

	assert.NotNil(t, q.Where.Expressions)
	assert.NotNil(t, q.Reduce.Expressions)
	assert.NotNil(t, q.GroupBy.Expressions)
	assert.Nil(t, q.Columns)
	assert.Nil(t, q.Timeshift)
}

func TestParse_Empty(t *testing.T) {
	q, err := expression.Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, q.Table())
	assert.False(t, q.IsAggregated())
}

func TestParse_UnknownType(t *testing.T) {
	_, err := expression.Parse([]byte(`{"where": {"type": "and", "expressions": [{"type": "xor"}]}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown expression type "xor"`)
}

func TestMarshal_PreservesTags(t *testing.T) {
	q, err := expression.Parse([]byte(savedQuery))
	require.NoError(t, err)

	raw, err := json.Marshal(q)
	require.NoError(t, err)

	for _, tag := range []string{
		`"type":"property"`, `"type":"operator"`, `"type":"reduce"`, `"type":"groupBy"`,
		`"type":"or"`, `"type":"and"`, `"type":"functionParameter"`,
	} {
		assert.Contains(t, string(raw), tag)
	}

	again, err := expression.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, q, again)
}

func TestMarshal_EmptyQuery(t *testing.T) {
	raw, err := json.Marshal(expression.New(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"where": {"type": "and", "expressions": []},
		"reduce": {"type": "and", "expressions": []},
		"groupBy": {"type": "and", "expressions": []}
	}`, string(raw))
}

func TestDecode_Kinds(t *testing.T) {
	tests := []struct {
		raw  string
		kind expression.Type
	}{
		{`{"type":"property","property":{"name":"a","type":"string"}}`, expression.TypeProperty},
		{`{"type":"operator","property":{"name":"a","type":"string"},"operator":{"name":"==","value":"x"}}`, expression.TypeOperator},
		{`{"type":"reduce","property":{"name":"a","type":"number"},"reduce":{"name":"sum","type":"function"}}`, expression.TypeReduce},
		{`{"type":"functionParameter","name":"p","fieldType":"number","value":1}`, expression.TypeFunctionParameter},
		{`{"type":"groupBy","property":{"name":"a","type":"string"}}`, expression.TypeGroupBy},
		{`{"type":"or","expressions":[]}`, expression.TypeOr},
		{`{"type":"and","expressions":[]}`, expression.TypeAnd},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e, err := expression.Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, e.Kind())
		})
	}
}

func TestValue_JSON(t *testing.T) {
	tests := []struct {
		raw  string
		kind expression.ValueKind
		str  string
	}{
		{`"abc"`, expression.ValueString, "abc"},
		{`""`, expression.ValueString, ""},
		{`12.5`, expression.ValueNumber, "12.5"},
		{`0`, expression.ValueNumber, "0"},
		{`false`, expression.ValueBool, "false"},
		{`["a", 2]`, expression.ValueList, "a,2"},
		{`null`, expression.ValueUndefined, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var v expression.Value
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.str, v.String())
		})
	}
}

func TestValue_MissingFieldIsUndefined(t *testing.T) {
	var op expression.Operator
	require.NoError(t, json.Unmarshal([]byte(`{"name": "=="}`), &op))
	assert.False(t, op.Value.IsDefined())
}
