package expression

import "slices"

// Aggregation describes an aggregate function offered by the builder.
type Aggregation struct {
	Name             string
	Description      string
	RequiresProperty bool
	Parameters       []Parameter
}

// Parameter describes a required function argument.
type Parameter struct {
	Name string
	Type PropertyType
}

var aggregations = []Aggregation{
	{Name: "sum", Description: "Calculates the sum of the column.", RequiresProperty: true},
	{Name: "avg", Description: "Calculates the average of the column.", RequiresProperty: true},
	{Name: "count", Description: "Counts the records in the group."},
	{Name: "dcount", Description: "Estimates the number of distinct values.", RequiresProperty: true},
	{Name: "max", Description: "Returns the maximum value.", RequiresProperty: true},
	{Name: "min", Description: "Returns the minimum value.", RequiresProperty: true},
	{
		Name:             "percentile",
		Description:      "Estimates the nearest-rank percentile.",
		RequiresProperty: true,
		Parameters:       []Parameter{{Name: "percentile", Type: TypeNumber}},
	},
}

// Aggregations returns the supported aggregate functions.
func Aggregations() []Aggregation {
	return slices.Clone(aggregations)
}

// LookupAggregation returns the aggregate named name.
func LookupAggregation(name string) (Aggregation, bool) {
	for _, a := range aggregations {
		if a.Name == name {
			return a, true
		}
	}
	return Aggregation{}, false
}
