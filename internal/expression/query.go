package expression

import (
	"encoding/json"
	"fmt"
)

// ColumnsExpression restricts the output columns.
type ColumnsExpression struct {
	Columns []string `json:"columns"`
}

// QueryExpression is the root of a visual query. Where, Reduce and GroupBy
// are always present, possibly empty.
type QueryExpression struct {
	From      *PropertyExpression `json:"from,omitempty"`
	Columns   *ColumnsExpression  `json:"columns,omitempty"`
	Where     AndExpression       `json:"where"`
	Reduce    AndExpression       `json:"reduce"`
	GroupBy   AndExpression       `json:"groupBy"`
	Timeshift *PropertyExpression `json:"timeshift,omitempty"`
}

// New returns an empty query over table. An empty table leaves From unset.
func New(table string) QueryExpression {
	q := QueryExpression{
		Where:   NewAnd(),
		Reduce:  NewAnd(),
		GroupBy: NewAnd(),
	}
	if table != "" {
		q.From = &PropertyExpression{Property: Property{Name: table, Type: TypeString}}
	}
	return q
}

// Parse decodes a persisted query expression.
func Parse(data []byte) (QueryExpression, error) {
	var q QueryExpression
	if err := json.Unmarshal(data, &q); err != nil {
		return QueryExpression{}, fmt.Errorf("parsing query expression: %w", err)
	}
	return q, nil
}

// UnmarshalJSON decodes q and normalizes absent arrays to empty groups.
func (q *QueryExpression) UnmarshalJSON(data []byte) error {
	type alias QueryExpression
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*q = QueryExpression(a)
	q.normalize()
	return nil
}

func (q *QueryExpression) normalize() {
	if q.Where.Expressions == nil {
		q.Where.Expressions = []Expression{}
	}
	if q.Reduce.Expressions == nil {
		q.Reduce.Expressions = []Expression{}
	}
	if q.GroupBy.Expressions == nil {
		q.GroupBy.Expressions = []Expression{}
	}
}

// Table returns the source table name, or "" when From is unset.
func (q QueryExpression) Table() string {
	if q.From == nil {
		return ""
	}
	return q.From.Property.Name
}

// IsAggregated reports whether the query groups its rows.
func (q QueryExpression) IsAggregated() bool {
	return q.GroupBy.Len() > 0
}

// OutputColumns returns the explicit column restriction, if any.
func (q QueryExpression) OutputColumns() []string {
	if q.Columns == nil {
		return nil
	}
	return q.Columns.Columns
}

// WithWhere returns a copy of q with where replaced.
func (q QueryExpression) WithWhere(where AndExpression) QueryExpression {
	q.Where = where
	return q
}

// WithReduce returns a copy of q with reduce replaced.
func (q QueryExpression) WithReduce(reduce AndExpression) QueryExpression {
	q.Reduce = reduce
	return q
}

// WithGroupBy returns a copy of q with groupBy replaced.
func (q QueryExpression) WithGroupBy(groupBy AndExpression) QueryExpression {
	q.GroupBy = groupBy
	return q
}
