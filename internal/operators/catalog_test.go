package operators_test

import (
	"testing"

	"github.com/paveg/adxql/internal/operators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(defs []operators.Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Value
	}
	return out
}

func TestFor_String(t *testing.T) {
	ops := values(operators.For(operators.TypeString))

	for _, want := range []string{
		"==", "!=", "=~", "!~", "contains", "!contains", "has", "!has",
		"startswith", "endswith", "in", "!in", "in~", "!in~", "has_all", "has_any", "matches regex",
	} {
		assert.Contains(t, ops, want)
	}
	assert.NotContains(t, ops, "<")
	assert.NotContains(t, ops, "and")
}

func TestFor_NumericTypesShareComparisonSet(t *testing.T) {
	number := values(operators.For(operators.TypeNumber))
	assert.Equal(t, []string{"==", "!=", "<", "<=", ">", ">=", "in", "!in"}, number)

	for _, typ := range []operators.PropertyType{operators.TypeDateTime, operators.TypeTimeSpan, operators.TypeInterval} {
		assert.Equal(t, number, values(operators.For(typ)), typ)
	}
}

func TestFor_Boolean(t *testing.T) {
	assert.Equal(t, []string{"==", "!=", "and", "or"}, values(operators.For(operators.TypeBoolean)))
}

func TestFor_Function(t *testing.T) {
	assert.Empty(t, operators.For(operators.TypeFunction))
	assert.Equal(t, operators.DefaultOperator, operators.Default(operators.TypeFunction))
}

func TestIsMultiValue(t *testing.T) {
	tests := []struct {
		op   string
		want bool
	}{
		{"in", true},
		{"!in", true},
		{"in~", true},
		{"!in~", true},
		{"has_all", true},
		{"has_any", true},
		{"==", false},
		{"contains", false},
		{"and", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			assert.Equal(t, tt.want, operators.IsMultiValue(tt.op))
		})
	}
}

func TestLookup(t *testing.T) {
	d, ok := operators.Lookup("contains_cs")
	require.True(t, ok)
	assert.True(t, d.CaseSensitive)
	assert.False(t, d.MultipleValues)
	assert.NotEmpty(t, d.Example)

	_, ok = operators.Lookup("nope")
	assert.False(t, ok)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, operators.IsSupported("contains", operators.TypeString))
	assert.False(t, operators.IsSupported("contains", operators.TypeNumber))
	assert.True(t, operators.IsSupported(">", operators.TypeDateTime))
	assert.False(t, operators.IsSupported("in", operators.TypeBoolean))
}

func TestCatalogIntegrity(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range operators.All() {
		assert.False(t, seen[d.Value], "duplicate operator %q", d.Value)
		seen[d.Value] = true
		assert.NotEmpty(t, d.Label)
		assert.NotEmpty(t, d.SupportedTypes)
		for _, typ := range d.SupportedTypes {
			assert.True(t, typ.Valid())
		}
	}
}

func TestPropertyType(t *testing.T) {
	assert.True(t, operators.TypeDateTime.IsNumeric())
	assert.False(t, operators.TypeString.IsNumeric())
	assert.False(t, operators.PropertyType("float").Valid())
}
