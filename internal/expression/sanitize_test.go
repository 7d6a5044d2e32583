package expression_test

import (
	"testing"

	"github.com/paveg/adxql/internal/expression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func operatorExpr(name string, typ expression.PropertyType, op string, v expression.Value) expression.OperatorExpression {
	return expression.OperatorExpression{
		Property: expression.Property{Name: name, Type: typ},
		Operator: expression.Operator{Name: op, Value: v},
	}
}

func TestSanitizeOperator(t *testing.T) {
	tests := []struct {
		name  string
		input expression.OperatorExpression
		valid bool
	}{
		{"complete", operatorExpr("State", expression.TypeString, "==", expression.StringValue("TEXAS")), true},
		{"empty string value is defined", operatorExpr("State", expression.TypeString, "==", expression.StringValue("")), true},
		{"zero is defined", operatorExpr("Count", expression.TypeNumber, ">", expression.NumberValue(0)), true},
		{"false is defined", operatorExpr("Flag", expression.TypeBoolean, "==", expression.BoolValue(false)), true},
		{"missing property", operatorExpr("", expression.TypeString, "==", expression.StringValue("x")), false},
		{"missing operator", operatorExpr("State", expression.TypeString, "", expression.StringValue("x")), false},
		{"undefined value", operatorExpr("State", expression.TypeString, "==", expression.Value{}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := expression.SanitizeOperator(tt.input)
			assert.Equal(t, tt.valid, ok)
			if ok {
				assert.Equal(t, tt.input, out)
			} else {
				assert.Equal(t, expression.OperatorExpression{}, out)
			}
		})
	}
}

func TestSanitizeOperator_CoercesValueShape(t *testing.T) {
	out, ok := expression.SanitizeOperator(operatorExpr("State", expression.TypeString, "in", expression.StringValue("NY")))
	require.True(t, ok)
	assert.Equal(t, []string{"NY"}, out.Operator.Value.Strings())
	assert.True(t, out.Operator.Value.IsList())

	out, ok = expression.SanitizeOperator(operatorExpr("State", expression.TypeString, "==", expression.ListValue("NY", "TX")))
	require.True(t, ok)
	assert.Equal(t, expression.StringValue("NY"), out.Operator.Value)
}

func TestSanitizeAggregate(t *testing.T) {
	param := func(v expression.Value) []expression.FunctionParameterExpression {
		return []expression.FunctionParameterExpression{{Name: "percentile", FieldType: expression.TypeNumber, Value: v}}
	}

	tests := []struct {
		name  string
		input expression.ReduceExpression
		valid bool
	}{
		{
			name: "sum with property",
			input: expression.ReduceExpression{
				Property: expression.Property{Name: "DamageProperty", Type: expression.TypeNumber},
				Reduce:   expression.Property{Name: "sum"},
			},
			valid: true,
		},
		{
			name:  "count without property",
			input: expression.ReduceExpression{Reduce: expression.Property{Name: "count"}},
			valid: true,
		},
		{
			name:  "sum without property",
			input: expression.ReduceExpression{Reduce: expression.Property{Name: "sum"}},
			valid: false,
		},
		{
			name:  "no function",
			input: expression.ReduceExpression{Property: expression.Property{Name: "x"}},
			valid: false,
		},
		{
			name: "percentile with parameter",
			input: expression.ReduceExpression{
				Property:   expression.Property{Name: "Duration", Type: expression.TypeNumber},
				Reduce:     expression.Property{Name: "percentile"},
				Parameters: param(expression.NumberValue(95)),
			},
			valid: true,
		},
		{
			name: "percentile without parameter",
			input: expression.ReduceExpression{
				Property: expression.Property{Name: "Duration", Type: expression.TypeNumber},
				Reduce:   expression.Property{Name: "percentile"},
			},
			valid: false,
		},
		{
			name: "percentile with empty parameter",
			input: expression.ReduceExpression{
				Property:   expression.Property{Name: "Duration", Type: expression.TypeNumber},
				Reduce:     expression.Property{Name: "percentile"},
				Parameters: param(expression.StringValue("")),
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := expression.SanitizeAggregate(tt.input)
			assert.Equal(t, tt.valid, ok)
			if ok {
				assert.Equal(t, expression.TypeFunction, out.Reduce.Type)
				assert.Equal(t, tt.input.Reduce.Name, out.Reduce.Name)
				assert.Equal(t, tt.input.Property, out.Property)
			}
		})
	}
}

func TestSanitizeGroupBy(t *testing.T) {
	hour := &expression.Property{Name: "1h"}

	out, ok := expression.SanitizeGroupBy(expression.GroupByExpression{
		Property: expression.Property{Name: "StartTime", Type: expression.TypeDateTime},
		Interval: hour,
	})
	require.True(t, ok)
	require.NotNil(t, out.Interval)
	assert.Equal(t, expression.Property{Name: "1h", Type: expression.TypeInterval}, *out.Interval)
	assert.Empty(t, hour.Type, "input must not be mutated")

	_, ok = expression.SanitizeGroupBy(expression.GroupByExpression{
		Property: expression.Property{Name: "StartTime", Type: expression.TypeDateTime},
	})
	assert.False(t, ok, "datetime needs an interval")

	_, ok = expression.SanitizeGroupBy(expression.GroupByExpression{
		Property: expression.Property{Name: "StartTime", Type: expression.TypeDateTime},
		Interval: &expression.Property{},
	})
	assert.False(t, ok)

	out, ok = expression.SanitizeGroupBy(expression.GroupByExpression{
		Property: expression.Property{Name: "State", Type: expression.TypeString},
		Interval: hour,
	})
	require.True(t, ok)
	assert.Nil(t, out.Interval, "non-datetime group-by never carries an interval")

	_, ok = expression.SanitizeGroupBy(expression.GroupByExpression{})
	assert.False(t, ok)
}

func TestSanitize_Query(t *testing.T) {
	q := expression.New("StormEvents")
	q.Where = expression.NewAnd(
		operatorExpr("State", expression.TypeString, "==", expression.StringValue("TEXAS")),
		operatorExpr("", expression.TypeString, "==", expression.StringValue("x")),
		expression.NewOr(
			operatorExpr("EventType", expression.TypeString, "", expression.StringValue("x")),
		),
		expression.NewOr(
			operatorExpr("EventType", expression.TypeString, "==", expression.StringValue("Hail")),
			operatorExpr("EventType", expression.TypeString, "==", expression.Value{}),
		),
	)
	q.Reduce = expression.NewAnd(
		expression.ReduceExpression{Reduce: expression.Property{Name: "count"}},
		expression.ReduceExpression{Reduce: expression.Property{Name: "sum"}},
	)
	q.GroupBy = expression.NewAnd(
		expression.GroupByExpression{Property: expression.Property{Name: "StartTime", Type: expression.TypeDateTime}},
	)

	out := expression.Sanitize(q)

	require.Len(t, out.Where.Expressions, 2)
	group, ok := out.Where.Expressions[1].(expression.OrExpression)
	require.True(t, ok)
	assert.Len(t, group.Expressions, 1)
	assert.Len(t, out.Reduce.Expressions, 1)
	assert.Empty(t, out.GroupBy.Expressions)
	assert.NotNil(t, out.GroupBy.Expressions)

	assert.Len(t, q.Where.Expressions, 4, "input must not be mutated")
}
