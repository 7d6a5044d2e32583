// Package operators holds the static table of KQL comparison and string
// operators, keyed by the property types they apply to.
package operators

import "slices"

// Definition describes one operator token.
type Definition struct {
	Value          string
	Label          string
	Description    string
	Example        string
	SupportedTypes []PropertyType
	MultipleValues bool
	BooleanValues  bool
	CaseSensitive  bool
}

// Supports reports whether the operator is legal for t.
func (d Definition) Supports(t PropertyType) bool {
	return slices.Contains(d.SupportedTypes, t)
}

var (
	stringOnly = []PropertyType{TypeString}
	ordered    = []PropertyType{TypeNumber, TypeDateTime, TypeTimeSpan, TypeInterval}
	equality   = []PropertyType{TypeString, TypeNumber, TypeBoolean, TypeDateTime, TypeTimeSpan, TypeInterval}
	membership = []PropertyType{TypeString, TypeNumber, TypeDateTime, TypeTimeSpan, TypeInterval}
	booleans   = []PropertyType{TypeBoolean}
)

// catalog is ordered the way operators are offered to users.
var catalog = []Definition{
	{Value: "==", Label: "==", Description: "equals", Example: `"aBc" == "aBc"`, SupportedTypes: equality, BooleanValues: true, CaseSensitive: true},
	{Value: "!=", Label: "!=", Description: "not equals", Example: `"abc" != "ABC"`, SupportedTypes: equality, BooleanValues: true, CaseSensitive: true},
	{Value: "<", Label: "<", Description: "less", Example: "1 < 10", SupportedTypes: ordered},
	{Value: "<=", Label: "<=", Description: "less or equal", Example: "4 <= 5", SupportedTypes: ordered},
	{Value: ">", Label: ">", Description: "greater", Example: "0.23 > 0.22", SupportedTypes: ordered},
	{Value: ">=", Label: ">=", Description: "greater or equals", Example: "5 >= 4", SupportedTypes: ordered},
	{Value: "=~", Label: "=~", Description: "equals, case insensitive", Example: `"abc" =~ "ABC"`, SupportedTypes: stringOnly},
	{Value: "!~", Label: "!~", Description: "not equals, case insensitive", Example: `"aBc" !~ "xyz"`, SupportedTypes: stringOnly},
	{Value: "in", Label: "in", Description: "equals to one of the elements", Example: `"abc" in ("123", "345", "abc")`, SupportedTypes: membership, MultipleValues: true, CaseSensitive: true},
	{Value: "!in", Label: "not in", Description: "not equals to any of the elements", Example: `"bca" !in ("123", "345", "abc")`, SupportedTypes: membership, MultipleValues: true, CaseSensitive: true},
	{Value: "in~", Label: "in~", Description: "equals to one of the elements, case insensitive", Example: `"abc" in~ ("123", "345", "ABC")`, SupportedTypes: stringOnly, MultipleValues: true},
	{Value: "!in~", Label: "not in~", Description: "not equals to any of the elements, case insensitive", Example: `"bca" !in~ ("123", "345", "ABC")`, SupportedTypes: stringOnly, MultipleValues: true},
	{Value: "contains", Label: "contains", Description: "RHS occurs as a subsequence of LHS", Example: `"FabriKam" contains "BRik"`, SupportedTypes: stringOnly},
	{Value: "!contains", Label: "not contains", Description: "RHS doesn't occur in LHS", Example: `"Fabrikam" !contains "xyz"`, SupportedTypes: stringOnly},
	{Value: "contains_cs", Label: "contains (case sensitive)", Description: "RHS occurs as a subsequence of LHS", Example: `"FabriKam" contains_cs "Kam"`, SupportedTypes: stringOnly, CaseSensitive: true},
	{Value: "!contains_cs", Label: "not contains (case sensitive)", Description: "RHS doesn't occur in LHS", Example: `"Fabrikam" !contains_cs "Kam"`, SupportedTypes: stringOnly, CaseSensitive: true},
	{Value: "has", Label: "has", Description: "right-hand-side (RHS) is a whole term in left-hand-side (LHS)", Example: `"North America" has "america"`, SupportedTypes: stringOnly},
	{Value: "!has", Label: "not has", Description: "RHS isn't a full term in LHS", Example: `"North America" !has "amer"`, SupportedTypes: stringOnly},
	{Value: "has_cs", Label: "has (case sensitive)", Description: "RHS is a whole term in LHS", Example: `"North America" has_cs "America"`, SupportedTypes: stringOnly, CaseSensitive: true},
	{Value: "!has_cs", Label: "not has (case sensitive)", Description: "RHS isn't a full term in LHS", Example: `"North America" !has_cs "amer"`, SupportedTypes: stringOnly, CaseSensitive: true},
	{Value: "hasprefix", Label: "has prefix", Description: "RHS is a term prefix in LHS", Example: `"North America" hasprefix "ame"`, SupportedTypes: stringOnly},
	{Value: "!hasprefix", Label: "not has prefix", Description: "RHS isn't a term prefix in LHS", Example: `"North America" !hasprefix "mer"`, SupportedTypes: stringOnly},
	{Value: "hassuffix", Label: "has suffix", Description: "RHS is a term suffix in LHS", Example: `"North America" hassuffix "ica"`, SupportedTypes: stringOnly},
	{Value: "!hassuffix", Label: "not has suffix", Description: "RHS isn't a term suffix in LHS", Example: `"North America" !hassuffix "americ"`, SupportedTypes: stringOnly},
	{Value: "startswith", Label: "starts with", Description: "RHS is an initial subsequence of LHS", Example: `"Fabrikam" startswith "fab"`, SupportedTypes: stringOnly},
	{Value: "!startswith", Label: "not starts with", Description: "RHS isn't an initial subsequence of LHS", Example: `"Fabrikam" !startswith "kam"`, SupportedTypes: stringOnly},
	{Value: "startswith_cs", Label: "starts with (case sensitive)", Description: "RHS is an initial subsequence of LHS", Example: `"Fabrikam" startswith_cs "Fab"`, SupportedTypes: stringOnly, CaseSensitive: true},
	{Value: "endswith", Label: "ends with", Description: "RHS is a closing subsequence of LHS", Example: `"Fabrikam" endswith "Kam"`, SupportedTypes: stringOnly},
	{Value: "!endswith", Label: "not ends with", Description: "RHS isn't a closing subsequence of LHS", Example: `"Fabrikam" !endswith "brik"`, SupportedTypes: stringOnly},
	{Value: "endswith_cs", Label: "ends with (case sensitive)", Description: "RHS is a closing subsequence of LHS", Example: `"Fabrikam" endswith_cs "kam"`, SupportedTypes: stringOnly, CaseSensitive: true},
	{Value: "has_all", Label: "has all", Description: "Same as has but works on all of the elements", Example: `"North and South America" has_all("south", "north")`, SupportedTypes: stringOnly, MultipleValues: true},
	{Value: "has_any", Label: "has any", Description: "Same as has but works on any of the elements", Example: `"North America" has_any("south", "north")`, SupportedTypes: stringOnly, MultipleValues: true},
	{Value: "matches regex", Label: "matches regex", Description: "LHS contains a match for RHS", Example: `"Fabrikam" matches regex "b.*k"`, SupportedTypes: stringOnly, CaseSensitive: true},
	{Value: "and", Label: "and", Description: "both sides are true", Example: "true and true", SupportedTypes: booleans, BooleanValues: true},
	{Value: "or", Label: "or", Description: "either side is true", Example: "false or true", SupportedTypes: booleans, BooleanValues: true},
}

var byValue = func() map[string]Definition {
	m := make(map[string]Definition, len(catalog))
	for _, d := range catalog {
		m[d.Value] = d
	}
	return m
}()

// DefaultOperator is selected when a property is chosen without an operator
// or when the current operator does not apply to the new property type.
const DefaultOperator = "=="

// For returns the operators legal for t, in catalog order. Types without
// operators (function, for example) return an empty slice.
func For(t PropertyType) []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		if d.Supports(t) {
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns the definition for an operator token.
func Lookup(value string) (Definition, bool) {
	d, ok := byValue[value]
	return d, ok
}

// All returns a copy of the whole catalog.
func All() []Definition {
	return slices.Clone(catalog)
}

// IsMultiValue reports whether the operator takes an array value.
func IsMultiValue(value string) bool {
	d, ok := byValue[value]
	return ok && d.MultipleValues
}

// IsSupported reports whether the operator is legal for t.
func IsSupported(value string, t PropertyType) bool {
	d, ok := byValue[value]
	return ok && d.Supports(t)
}

// Default returns the operator to fall back to for t.
func Default(t PropertyType) string {
	ops := For(t)
	if len(ops) == 0 {
		return DefaultOperator
	}
	return ops[0].Value
}
