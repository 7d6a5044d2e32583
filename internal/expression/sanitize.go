package expression

import "github.com/paveg/adxql/internal/operators"

// SanitizeOperator returns e with its value shaped for its operator, or false
// if the property name, the operator name or the value is missing.
func SanitizeOperator(e OperatorExpression) (OperatorExpression, bool) {
	if e.Property.Name == "" || e.Operator.Name == "" || !e.Operator.Value.IsDefined() {
		return OperatorExpression{}, false
	}
	e.Operator.Value = coerceValue(e.Operator.Name, e.Property.Type, e.Operator.Value)
	return e, true
}

// SanitizeAggregate returns e if it names a function and, unless the
// function is count, a property. Percentile needs exactly one non-empty
// parameter.
func SanitizeAggregate(e ReduceExpression) (ReduceExpression, bool) {
	if e.Reduce.Name == "" {
		return ReduceExpression{}, false
	}
	if e.Reduce.Name != "count" && e.Property.Name == "" {
		return ReduceExpression{}, false
	}
	if e.Reduce.Name == "percentile" {
		if len(e.Parameters) != 1 || e.Parameters[0].Value.IsEmpty() {
			return ReduceExpression{}, false
		}
	}

	e.Reduce.Type = TypeFunction
	if len(e.Parameters) > 0 {
		e.Parameters = append([]FunctionParameterExpression(nil), e.Parameters...)
	}
	return e, true
}

// SanitizeGroupBy returns e if it names a property and, for datetime
// properties, an interval. Non-datetime properties never carry an interval.
func SanitizeGroupBy(e GroupByExpression) (GroupByExpression, bool) {
	if e.Property.Name == "" {
		return GroupByExpression{}, false
	}
	if e.Property.Type != TypeDateTime {
		e.Interval = nil
		return e, true
	}
	if e.Interval == nil || e.Interval.Name == "" {
		return GroupByExpression{}, false
	}
	interval := Property{Name: e.Interval.Name, Type: TypeInterval}
	e.Interval = &interval
	return e, true
}

// SanitizeWhere drops incomplete operators and empty or-groups.
func SanitizeWhere(where AndExpression) AndExpression {
	out := NewAnd()
	for _, e := range where.Expressions {
		switch v := e.(type) {
		case OperatorExpression:
			if op, ok := SanitizeOperator(v); ok {
				out.Expressions = append(out.Expressions, op)
			}
		case OrExpression:
			group := NewOr()
			for _, member := range v.Expressions {
				if op, ok := member.(OperatorExpression); ok {
					if op, ok := SanitizeOperator(op); ok {
						group.Expressions = append(group.Expressions, op)
					}
				}
			}
			if len(group.Expressions) > 0 {
				out.Expressions = append(out.Expressions, group)
			}
		}
	}
	return out
}

// Sanitize returns a copy of q with every incomplete node removed.
func Sanitize(q QueryExpression) QueryExpression {
	out := q
	out.Where = SanitizeWhere(q.Where)

	out.Reduce = NewAnd()
	for _, e := range q.Reduce.Expressions {
		if r, ok := e.(ReduceExpression); ok {
			if r, ok := SanitizeAggregate(r); ok {
				out.Reduce.Expressions = append(out.Reduce.Expressions, r)
			}
		}
	}

	out.GroupBy = NewAnd()
	for _, e := range q.GroupBy.Expressions {
		if g, ok := e.(GroupByExpression); ok {
			if g, ok := SanitizeGroupBy(g); ok {
				out.GroupBy.Expressions = append(out.GroupBy.Expressions, g)
			}
		}
	}
	return out
}

// coerceValue shapes v for the multiplicity of op. Scalars become one-member
// lists for multi-value operators, dropping empty scalars; lists collapse to
// their first member otherwise. Boolean properties are never coerced.
func coerceValue(op string, t PropertyType, v Value) Value {
	if t == TypeBoolean {
		return v
	}
	if operators.IsMultiValue(op) {
		if v.IsList() {
			return v
		}
		return ListValue(v.Strings()...)
	}
	if v.IsList() {
		return v.First()
	}
	return v
}
