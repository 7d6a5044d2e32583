// Package kql compiles visual query expressions into KQL text.
//
// Compile is a pure function of the expression and the column schema of the
// source table: the same inputs always yield byte-identical output. It never
// fails; incomplete nodes are skipped and an expression without a source
// table compiles to the empty string.
package kql

import (
	"strings"

	"github.com/paveg/adxql/internal/common"
	"github.com/paveg/adxql/internal/expression"
	"github.com/paveg/adxql/internal/schema"
)

// DefaultTimeColumn is used when no datetime column can be found.
const DefaultTimeColumn = "Timestamp"

// Separator joins pipeline segments.
const Separator = "\n| "

// Compile renders q against the columns of its source table.
func Compile(q expression.QueryExpression, columns []schema.Column) string {
	table := q.Table()
	if table == "" {
		return ""
	}

	b := &builder{columns: columns}
	b.add(table)

	aggregated := q.IsAggregated()
	groupBy := sanitizeGroupBy(q.GroupBy)

	var timeColumn string
	if aggregated {
		timeColumn = groupByTimeColumn(groupBy)
	} else {
		timeColumn = FindTimeColumn(columns)
	}

	shift := timeshift(q)
	if shift == "" {
		b.add("where $__timeFilter(" + timeColumn + ")")
	} else {
		b.add("where " + timeColumn + " between (($__timeFrom - " + shift + ") .. ($__timeTo - " + shift + "))")
	}

	b.appendWhere(q.Where)

	if shift != "" {
		b.add("extend " + timeColumn + " = " + timeColumn + " + " + shift)
	}

	reduce := sanitizeReduce(q.Reduce)
	switch {
	case aggregated:
		b.appendSummarize(reduce, groupBy, timeColumn)
	case len(reduce) > 0:
		b.appendProject(reduce, timeColumn)
	case len(q.OutputColumns()) > 0:
		b.add("project " + renderColumns(q.OutputColumns()))
	}

	return b.String()
}

// FindTimeColumn returns the first datetime column, or DefaultTimeColumn.
func FindTimeColumn(columns []schema.Column) string {
	for _, c := range columns {
		if c.PropertyType() == expression.TypeDateTime {
			return c.Name
		}
	}
	return DefaultTimeColumn
}

type builder struct {
	columns []schema.Column
	parts   []string
}

func (b *builder) add(segment string) {
	b.parts = append(b.parts, segment)
}

func (b *builder) String() string {
	return strings.Join(b.parts, Separator)
}

// appendWhere emits one where segment per top-level entry. Members of an
// or-group share a segment joined by "or".
func (b *builder) appendWhere(where expression.AndExpression) {
	for _, e := range where.Expressions {
		switch v := e.(type) {
		case expression.OperatorExpression:
			if clause, ok := b.operatorClause(v); ok {
				b.add("where " + clause)
			}
		case expression.OrExpression:
			clauses := make([]string, 0, len(v.Expressions))
			for _, member := range v.Expressions {
				if op, ok := member.(expression.OperatorExpression); ok {
					if clause, ok := b.operatorClause(op); ok {
						clauses = append(clauses, clause)
					}
				}
			}
			if len(clauses) > 0 {
				b.add("where " + strings.Join(clauses, " or "))
			}
		case expression.AndExpression:
			b.appendWhere(v)
		case expression.PropertyExpression, expression.ReduceExpression,
			expression.GroupByExpression, expression.FunctionParameterExpression:
			// not filters
		}
	}
}

func (b *builder) operatorClause(e expression.OperatorExpression) (string, bool) {
	e, ok := expression.SanitizeOperator(e)
	if !ok {
		return "", false
	}

	field := renderColumn(e.Property.Name)
	op := e.Operator.Name
	if e.Operator.Value.IsList() {
		return field + " " + op + " (" + common.QuoteAll(e.Operator.Value.Strings(), ", ") + ")", true
	}
	return field + " " + op + " " + b.renderScalar(e.Property, e.Operator.Value), true
}

// renderScalar quotes string-typed values that are not already quoted.
// Numbers, booleans, datetimes and quoted tokens are emitted as they are.
func (b *builder) renderScalar(p expression.Property, v expression.Value) string {
	s := v.String()
	if v.Kind() != expression.ValueString {
		return s
	}
	if b.fieldType(p) != expression.TypeString || common.IsQuoted(s) {
		return s
	}
	return "'" + s + "'"
}

func (b *builder) fieldType(p expression.Property) expression.PropertyType {
	if p.Type != "" {
		return p.Type
	}
	for _, c := range b.columns {
		if c.Name == p.Name {
			return c.PropertyType()
		}
	}
	return expression.TypeString
}

func (b *builder) appendSummarize(reduce []expression.ReduceExpression, groupBy []expression.GroupByExpression, timeColumn string) {
	aggregates := make([]string, 0, len(reduce))
	for _, r := range reduce {
		aggregates = append(aggregates, renderAggregate(r))
	}

	var by []string
	binned := false
	for _, g := range groupBy {
		if !binned && g.Property.Type == expression.TypeDateTime {
			by = append([]string{common.FormatFunction("bin", renderColumn(g.Property.Name), g.Interval.Name)}, by...)
			binned = true
			continue
		}
		if g.Property.Type == expression.TypeDateTime {
			by = append(by, common.FormatFunction("bin", renderColumn(g.Property.Name), g.Interval.Name))
			continue
		}
		by = append(by, renderColumn(g.Property.Name))
	}

	segment := "summarize"
	if len(aggregates) > 0 {
		segment += " " + common.FormatList(aggregates, ", ")
	}
	if len(by) > 0 {
		segment += " by " + common.FormatList(by, ", ")
	}
	b.add(segment)
	b.add("order by " + common.FormatSort(timeColumn, true))
}

func (b *builder) appendProject(reduce []expression.ReduceExpression, timeColumn string) {
	cols := []string{timeColumn}
	seen := map[string]bool{timeColumn: true}
	for _, r := range reduce {
		name := r.Property.Name
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, renderColumn(name))
	}
	b.add("project " + common.FormatList(cols, ", "))
	b.add("order by " + common.FormatSort(timeColumn, true))
}

func renderAggregate(r expression.ReduceExpression) string {
	switch r.Reduce.Name {
	case "count":
		return common.FormatFunction("count")
	case "percentile":
		return common.FormatFunction("percentile", renderColumn(r.Property.Name), r.Parameters[0].Value.String())
	default:
		args := make([]string, 0, 1+len(r.Parameters))
		args = append(args, renderColumn(r.Property.Name))
		for _, p := range r.Parameters {
			if p.Value.IsDefined() {
				args = append(args, p.Value.String())
			}
		}
		return common.FormatFunction(r.Reduce.Name, args...)
	}
}

// renderColumn brackets names that are not plain identifiers, leaving
// template variables, dynamic paths and function calls untouched.
func renderColumn(name string) string {
	if common.IsIdentifier(name) || strings.ContainsAny(name, "$[.(") {
		return name
	}
	return "['" + name + "']"
}

func renderColumns(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = renderColumn(n)
	}
	return common.FormatList(out, ", ")
}

func groupByTimeColumn(groupBy []expression.GroupByExpression) string {
	for _, g := range groupBy {
		if g.Property.Type == expression.TypeDateTime {
			return g.Property.Name
		}
	}
	return DefaultTimeColumn
}

func sanitizeGroupBy(group expression.AndExpression) []expression.GroupByExpression {
	out := make([]expression.GroupByExpression, 0, len(group.Expressions))
	for _, e := range group.Expressions {
		if g, ok := e.(expression.GroupByExpression); ok {
			if g, ok := expression.SanitizeGroupBy(g); ok {
				out = append(out, g)
			}
		}
	}
	return out
}

func sanitizeReduce(group expression.AndExpression) []expression.ReduceExpression {
	out := make([]expression.ReduceExpression, 0, len(group.Expressions))
	for _, e := range group.Expressions {
		if r, ok := e.(expression.ReduceExpression); ok {
			if r, ok := expression.SanitizeAggregate(r); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

func timeshift(q expression.QueryExpression) string {
	if q.Timeshift == nil {
		return ""
	}
	return strings.TrimSpace(q.Timeshift.Property.Name)
}
