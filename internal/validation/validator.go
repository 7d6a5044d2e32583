// Package validation checks visual query expressions against the resolved
// schema of their table before they are compiled. The compiler itself never
// rejects an expression; validation is how callers surface mistakes.
package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/paveg/adxql/internal/errors"
	"github.com/paveg/adxql/internal/expression"
	"github.com/paveg/adxql/internal/operators"
	"github.com/paveg/adxql/internal/schema"
)

const op = "validate"

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider interface for types that provide column information
type ColumnProvider interface {
	HasColumn(name string) bool
	Columns() []string
	ColumnType(name string) (expression.PropertyType, bool)
}

// ColumnSet is a ColumnProvider over resolved schema columns.
type ColumnSet struct {
	names []string
	types map[string]expression.PropertyType
}

// NewColumnSet indexes columns.
func NewColumnSet(columns []schema.Column) *ColumnSet {
	cs := &ColumnSet{types: make(map[string]expression.PropertyType, len(columns))}
	for _, c := range columns {
		cs.names = append(cs.names, c.Name)
		cs.types[c.Name] = c.PropertyType()
	}
	return cs
}

// HasColumn reports whether name is a column.
func (cs *ColumnSet) HasColumn(name string) bool {
	_, ok := cs.types[name]
	return ok
}

// Columns lists the column names in schema order.
func (cs *ColumnSet) Columns() []string {
	return cs.names
}

// ColumnType returns the property type of name.
func (cs *ColumnSet) ColumnType(name string) (expression.PropertyType, bool) {
	t, ok := cs.types[name]
	return t, ok
}

// ColumnValidator validates column existence
type ColumnValidator struct {
	cols    ColumnProvider
	columns []string
}

// NewColumnValidator creates a validator for column references. Template
// variables are not checked.
func NewColumnValidator(cols ColumnProvider, columns ...string) *ColumnValidator {
	return &ColumnValidator{cols: cols, columns: columns}
}

// Validate checks if all columns exist
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if isVariable(column) || v.cols.HasColumn(column) {
			continue
		}
		err := errors.NewUnknownColumnError(op, column)
		if match, ok := closest(column, v.cols.Columns()); ok {
			return err.WithHint("did you mean " + match + "?")
		}
		return err
	}
	return nil
}

// OperatorValidator validates that an operator applies to its property type
type OperatorValidator struct {
	cols ColumnProvider
	expr expression.OperatorExpression
}

// NewOperatorValidator creates a validator for a where clause.
func NewOperatorValidator(cols ColumnProvider, expr expression.OperatorExpression) *OperatorValidator {
	return &OperatorValidator{cols: cols, expr: expr}
}

// Validate checks the operator against the property type
func (v *OperatorValidator) Validate() error {
	e := v.expr
	if _, ok := expression.SanitizeOperator(e); !ok {
		return errors.NewInvalidExpressionError(op, e.Property.Name, "filter is incomplete")
	}
	if _, ok := operators.Lookup(e.Operator.Name); !ok {
		return errors.NewInvalidExpressionError(op, e.Property.Name, fmt.Sprintf("unknown operator %q", e.Operator.Name))
	}

	t := e.Property.Type
	if t == "" {
		t, _ = v.cols.ColumnType(e.Property.Name)
	}
	if t == "" || operators.IsSupported(e.Operator.Name, t) {
		return nil
	}
	return errors.NewInvalidExpressionError(op, e.Property.Name,
		fmt.Sprintf("operator %q does not apply to %s values", e.Operator.Name, t)).
		WithHint("use " + operators.Default(t))
}

// AggregateValidator validates a reduce expression
type AggregateValidator struct {
	expr expression.ReduceExpression
}

// NewAggregateValidator creates a validator for an aggregate.
func NewAggregateValidator(expr expression.ReduceExpression) *AggregateValidator {
	return &AggregateValidator{expr: expr}
}

// Validate checks the function name and its parameters
func (v *AggregateValidator) Validate() error {
	e := v.expr
	if e.Reduce.Name == "" {
		return errors.NewInvalidExpressionError(op, e.Property.Name, "aggregate has no function")
	}
	agg, ok := expression.LookupAggregation(e.Reduce.Name)
	if !ok {
		return errors.NewInvalidExpressionError(op, e.Property.Name, fmt.Sprintf("unknown aggregate %q", e.Reduce.Name))
	}
	if agg.RequiresProperty && e.Property.Name == "" {
		return errors.NewInvalidExpressionError(op, e.Reduce.Name, "aggregate needs a column")
	}
	if len(agg.Parameters) > 0 {
		if _, ok := expression.SanitizeAggregate(e); !ok {
			return errors.NewInvalidExpressionError(op, e.Reduce.Name,
				fmt.Sprintf("aggregate needs %d parameter(s)", len(agg.Parameters)))
		}
	}
	return nil
}

// GroupByValidator validates a group-by expression
type GroupByValidator struct {
	expr expression.GroupByExpression
}

// NewGroupByValidator creates a validator for a group-by entry.
func NewGroupByValidator(expr expression.GroupByExpression) *GroupByValidator {
	return &GroupByValidator{expr: expr}
}

// Validate checks that datetime groups carry an interval
func (v *GroupByValidator) Validate() error {
	e := v.expr
	if e.Property.Name == "" {
		return errors.NewInvalidExpressionError(op, "", "group by has no column")
	}
	if _, ok := expression.SanitizeGroupBy(e); !ok {
		return errors.NewInvalidExpressionError(op, e.Property.Name, "datetime group by needs an interval").
			WithHint("for example 1h")
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAll runs all validators and returns every error.
func (v *CompoundValidator) ValidateAll() []error {
	var errs []error
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Convenience validation functions

// ValidateColumns is a convenience function for column validation
func ValidateColumns(cols ColumnProvider, columns ...string) error {
	return NewColumnValidator(cols, columns...).Validate()
}

// QueryValidators builds the validators for every node of q.
func QueryValidators(q expression.QueryExpression, columns []schema.Column) *CompoundValidator {
	cols := NewColumnSet(columns)
	var vs []Validator

	var where func(exprs []expression.Expression)
	where = func(exprs []expression.Expression) {
		for _, e := range exprs {
			switch v := e.(type) {
			case expression.OperatorExpression:
				vs = append(vs, NewColumnValidator(cols, v.Property.Name), NewOperatorValidator(cols, v))
			case expression.OrExpression:
				where(v.Expressions)
			case expression.AndExpression:
				where(v.Expressions)
			case expression.PropertyExpression, expression.ReduceExpression,
				expression.GroupByExpression, expression.FunctionParameterExpression:
			}
		}
	}
	where(q.Where.Expressions)

	for _, e := range q.Reduce.Expressions {
		if r, ok := e.(expression.ReduceExpression); ok {
			vs = append(vs, NewAggregateValidator(r))
			if r.Property.Name != "" {
				vs = append(vs, NewColumnValidator(cols, r.Property.Name))
			}
		}
	}
	for _, e := range q.GroupBy.Expressions {
		if g, ok := e.(expression.GroupByExpression); ok {
			vs = append(vs, NewGroupByValidator(g))
			if g.Property.Name != "" {
				vs = append(vs, NewColumnValidator(cols, g.Property.Name))
			}
		}
	}
	if out := q.OutputColumns(); len(out) > 0 {
		vs = append(vs, NewColumnValidator(cols, out...))
	}
	return NewCompoundValidator(vs...)
}

// ValidateQuery checks q against the columns of its table and, when tables
// is non-nil, that the table exists. It returns every problem found.
func ValidateQuery(q expression.QueryExpression, tables []string, columns []schema.Column) []error {
	table := q.Table()
	if table == "" {
		return []error{errors.ErrNoTable}
	}
	if tables != nil && !isVariable(table) && !slices.Contains(tables, table) {
		err := errors.NewUnknownTableError(op, table)
		if match, ok := closest(table, tables); ok {
			return []error{err.WithHint("did you mean " + match + "?")}
		}
		return []error{err}
	}
	return QueryValidators(q, columns).ValidateAll()
}

func isVariable(name string) bool {
	return strings.HasPrefix(name, "$") || strings.HasPrefix(name, "[[")
}

// closest returns the candidate equal to name ignoring case, or the only
// candidate name is a prefix of.
func closest(name string, candidates []string) (string, bool) {
	var prefixed []string
	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return c, true
		}
		if name != "" && strings.HasPrefix(strings.ToLower(c), strings.ToLower(name)) {
			prefixed = append(prefixed, c)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0], true
	}
	return "", false
}
