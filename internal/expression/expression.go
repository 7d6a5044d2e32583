// Package expression defines the serializable query expression tree built by
// the visual query editor, and the sanitizers that decide whether a partially
// edited node is complete.
//
// Expression kinds form a closed set: every concrete type implements the
// unexported isExpression method, and consumers switch on the concrete type.
// The JSON "type" tags are persisted with saved queries and must not change.
package expression

import (
	"encoding/json"
	"fmt"

	"github.com/paveg/adxql/internal/operators"
)

// PropertyType is the value type of a property.
type PropertyType = operators.PropertyType

const (
	TypeString   = operators.TypeString
	TypeNumber   = operators.TypeNumber
	TypeBoolean  = operators.TypeBoolean
	TypeDateTime = operators.TypeDateTime
	TypeFunction = operators.TypeFunction
	TypeInterval = operators.TypeInterval
	TypeTimeSpan = operators.TypeTimeSpan
)

// Type is the discriminant stored in every expression's "type" field.
type Type string

const (
	TypeProperty          Type = "property"
	TypeOperator          Type = "operator"
	TypeReduce            Type = "reduce"
	TypeFunctionParameter Type = "functionParameter"
	TypeGroupBy           Type = "groupBy"
	TypeOr                Type = "or"
	TypeAnd               Type = "and"
)

// Expression is implemented by every node kind.
type Expression interface {
	Kind() Type
	isExpression()
}

// Property names a column, table, function or literal and carries its type.
// Name may be a template variable token such as $column.
type Property struct {
	Name string       `json:"name"`
	Type PropertyType `json:"type"`
}

// PropertyExpression wraps a single property.
type PropertyExpression struct {
	Property Property `json:"property"`
}

// Operator is an operator token plus its value.
type Operator struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// OperatorExpression compares a property with a value.
type OperatorExpression struct {
	Property Property `json:"property"`
	Operator Operator `json:"operator"`
}

// FunctionParameterExpression is an argument of an aggregate function.
type FunctionParameterExpression struct {
	Name      string       `json:"name"`
	FieldType PropertyType `json:"fieldType"`
	Value     Value        `json:"value"`
}

// ReduceExpression applies an aggregate function to a property.
type ReduceExpression struct {
	Property   Property                      `json:"property"`
	Reduce     Property                      `json:"reduce"`
	Parameters []FunctionParameterExpression `json:"parameters,omitempty"`
}

// GroupByExpression partitions by a property, binned by Interval when the
// property is a datetime.
type GroupByExpression struct {
	Property Property  `json:"property"`
	Interval *Property `json:"interval,omitempty"`
}

// OrExpression is satisfied when any member is.
type OrExpression struct {
	Expressions []Expression `json:"expressions"`
}

// AndExpression is satisfied when every member is.
type AndExpression struct {
	Expressions []Expression `json:"expressions"`
}

func (PropertyExpression) Kind() Type          { return TypeProperty }
func (OperatorExpression) Kind() Type          { return TypeOperator }
func (FunctionParameterExpression) Kind() Type { return TypeFunctionParameter }
func (ReduceExpression) Kind() Type            { return TypeReduce }
func (GroupByExpression) Kind() Type           { return TypeGroupBy }
func (OrExpression) Kind() Type                { return TypeOr }
func (AndExpression) Kind() Type               { return TypeAnd }

func (PropertyExpression) isExpression()          {}
func (OperatorExpression) isExpression()          {}
func (FunctionParameterExpression) isExpression() {}
func (ReduceExpression) isExpression()            {}
func (GroupByExpression) isExpression()           {}
func (OrExpression) isExpression()                {}
func (AndExpression) isExpression()               {}

// NewAnd returns an and-group of the given members.
func NewAnd(exprs ...Expression) AndExpression {
	return AndExpression{Expressions: append([]Expression{}, exprs...)}
}

// NewOr returns an or-group of the given members.
func NewOr(exprs ...Expression) OrExpression {
	return OrExpression{Expressions: append([]Expression{}, exprs...)}
}

// Len returns the number of members.
func (a AndExpression) Len() int { return len(a.Expressions) }

// Each member type marshals with its "type" tag. The alias types drop the
// methods so json.Marshal does not recurse.

func (e PropertyExpression) MarshalJSON() ([]byte, error) {
	type alias PropertyExpression
	return marshalTagged(TypeProperty, alias(e))
}

func (e OperatorExpression) MarshalJSON() ([]byte, error) {
	type alias OperatorExpression
	return marshalTagged(TypeOperator, alias(e))
}

func (e FunctionParameterExpression) MarshalJSON() ([]byte, error) {
	type alias FunctionParameterExpression
	return marshalTagged(TypeFunctionParameter, alias(e))
}

func (e ReduceExpression) MarshalJSON() ([]byte, error) {
	type alias ReduceExpression
	return marshalTagged(TypeReduce, alias(e))
}

func (e GroupByExpression) MarshalJSON() ([]byte, error) {
	type alias GroupByExpression
	return marshalTagged(TypeGroupBy, alias(e))
}

func (e OrExpression) MarshalJSON() ([]byte, error) {
	return marshalGroup(TypeOr, e.Expressions)
}

func (e AndExpression) MarshalJSON() ([]byte, error) {
	return marshalGroup(TypeAnd, e.Expressions)
}

func (e *OrExpression) UnmarshalJSON(data []byte) error {
	exprs, err := unmarshalGroup(data)
	if err != nil {
		return err
	}
	e.Expressions = exprs
	return nil
}

func (e *AndExpression) UnmarshalJSON(data []byte) error {
	exprs, err := unmarshalGroup(data)
	if err != nil {
		return err
	}
	e.Expressions = exprs
	return nil
}

func marshalTagged(t Type, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(t)
	fields["type"] = tag
	return json.Marshal(fields)
}

func marshalGroup(t Type, exprs []Expression) ([]byte, error) {
	if exprs == nil {
		exprs = []Expression{}
	}
	return json.Marshal(struct {
		Type        Type         `json:"type"`
		Expressions []Expression `json:"expressions"`
	}{Type: t, Expressions: exprs})
}

func unmarshalGroup(data []byte) ([]Expression, error) {
	var raw struct {
		Expressions []json.RawMessage `json:"expressions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	exprs := make([]Expression, 0, len(raw.Expressions))
	for i, item := range raw.Expressions {
		e, err := Decode(item)
		if err != nil {
			return nil, fmt.Errorf("expression %d: %w", i, err)
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// Decode decodes one expression by its "type" tag.
func Decode(data []byte) (Expression, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case TypeProperty:
		type alias PropertyExpression
		var e alias
		err := json.Unmarshal(data, &e)
		return PropertyExpression(e), err
	case TypeOperator:
		type alias OperatorExpression
		var e alias
		err := json.Unmarshal(data, &e)
		return OperatorExpression(e), err
	case TypeFunctionParameter:
		type alias FunctionParameterExpression
		var e alias
		err := json.Unmarshal(data, &e)
		return FunctionParameterExpression(e), err
	case TypeReduce:
		type alias ReduceExpression
		var e alias
		err := json.Unmarshal(data, &e)
		return ReduceExpression(e), err
	case TypeGroupBy:
		type alias GroupByExpression
		var e alias
		err := json.Unmarshal(data, &e)
		return GroupByExpression(e), err
	case TypeOr:
		var e OrExpression
		err := json.Unmarshal(data, &e)
		return e, err
	case TypeAnd:
		var e AndExpression
		err := json.Unmarshal(data, &e)
		return e, err
	default:
		return nil, fmt.Errorf("unknown expression type %q", head.Type)
	}
}
