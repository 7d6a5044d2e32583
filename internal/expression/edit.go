package expression

import "github.com/paveg/adxql/internal/operators"

// SetOperatorName returns a copy of e using operator name, converting the
// value between scalar and list form when the multiplicity changes.
func SetOperatorName(e OperatorExpression, name string) OperatorExpression {
	e.Operator.Name = name
	if e.Operator.Value.IsDefined() || operators.IsMultiValue(name) {
		e.Operator.Value = coerceValue(name, e.Property.Type, e.Operator.Value)
	}
	return e
}

// SetOperatorProperty returns a copy of e pointing at p. When the current
// operator is not legal for p's type, the operator falls back to the type's
// default and the value is cleared.
func SetOperatorProperty(e OperatorExpression, p Property) OperatorExpression {
	e.Property = p
	switch {
	case e.Operator.Name == "":
		e.Operator.Name = operators.Default(p.Type)
	case !operators.IsSupported(e.Operator.Name, p.Type):
		e.Operator = Operator{Name: operators.Default(p.Type)}
	}
	return e
}

// SetOperatorValue returns a copy of e holding v, shaped for its operator.
func SetOperatorValue(e OperatorExpression, v Value) OperatorExpression {
	e.Operator.Value = coerceValue(e.Operator.Name, e.Property.Type, v)
	return e
}

// SetGroupByProperty returns a copy of e pointing at p. The interval is kept
// only for datetime properties.
func SetGroupByProperty(e GroupByExpression, p Property) GroupByExpression {
	e.Property = p
	if p.Type != TypeDateTime {
		e.Interval = nil
	}
	return e
}

// SetReduceFunction returns a copy of e using function name. Parameters are
// reset when the function changes.
func SetReduceFunction(e ReduceExpression, name string) ReduceExpression {
	if e.Reduce.Name == name {
		e.Reduce.Type = TypeFunction
		return e
	}
	e.Parameters = nil
	e.Reduce = Property{Name: name, Type: TypeFunction}
	if agg, ok := LookupAggregation(name); ok {
		for _, p := range agg.Parameters {
			e.Parameters = append(e.Parameters, FunctionParameterExpression{Name: p.Name, FieldType: p.Type})
		}
		if !agg.RequiresProperty {
			e.Property = Property{}
		}
	}
	return e
}
