// Package schema models the cluster schema returned by
// ".show databases schema as json" and resolves it into per-table column
// lists, flattening dynamic columns into typed sub-columns.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paveg/adxql/internal/expression"
)

// DynamicType is the CSL type of nested object columns.
const DynamicType = "dynamic"

// Column describes one column of a table or one flattened dynamic sub-column.
type Column struct {
	Name      string `json:"Name"`
	Type      string `json:"Type,omitempty"`
	CslType   string `json:"CslType"`
	DocString string `json:"DocString,omitempty"`
	IsDynamic bool   `json:"isDynamic,omitempty"`
}

// PropertyType maps the column's CSL type to the builder's property type.
func (c Column) PropertyType() expression.PropertyType {
	return PropertyTypeFor(c.CslType)
}

// Table is a table, materialized view or external table.
type Table struct {
	Name           string   `json:"Name"`
	DocString      string   `json:"DocString,omitempty"`
	Folder         string   `json:"Folder,omitempty"`
	OrderedColumns []Column `json:"OrderedColumns"`
}

// Column returns the column named name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.OrderedColumns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// DynamicColumns returns the names of the table's dynamic columns.
func (t *Table) DynamicColumns() []string {
	var names []string
	for _, c := range t.OrderedColumns {
		if c.CslType == DynamicType {
			names = append(names, c.Name)
		}
	}
	return names
}

// Function is a stored function.
type Function struct {
	Name            string   `json:"Name"`
	InputParameters []Column `json:"InputParameters"`
	Body            string   `json:"Body"`
	Folder          string   `json:"Folder,omitempty"`
	DocString       string   `json:"DocString,omitempty"`
	FunctionKind    string   `json:"FunctionKind,omitempty"`
	OutputColumns   []Column `json:"OutputColumns"`
}

// Database holds the entities of one database in declaration order.
type Database struct {
	Name              string
	Tables            []*Table
	MaterializedViews []*Table
	ExternalTables    []*Table
	Functions         []*Function
}

// Table returns the table, view or external table named name.
func (d *Database) Table(name string) (*Table, bool) {
	for _, group := range [][]*Table{d.Tables, d.MaterializedViews, d.ExternalTables} {
		for _, t := range group {
			if t.Name == name {
				return t, true
			}
		}
	}
	return nil, false
}

type databaseJSON struct {
	Name              string          `json:"Name"`
	Tables            json.RawMessage `json:"Tables"`
	MaterializedViews json.RawMessage `json:"MaterializedViews"`
	ExternalTables    json.RawMessage `json:"ExternalTables"`
	Functions         json.RawMessage `json:"Functions"`
}

// UnmarshalJSON decodes the entity maps, keeping their key order.
func (d *Database) UnmarshalJSON(data []byte) error {
	var raw databaseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	out := Database{Name: raw.Name}
	if out.Tables, err = decodeOrdered[*Table](raw.Tables); err != nil {
		return fmt.Errorf("tables: %w", err)
	}
	if out.MaterializedViews, err = decodeOrdered[*Table](raw.MaterializedViews); err != nil {
		return fmt.Errorf("materialized views: %w", err)
	}
	if out.ExternalTables, err = decodeOrdered[*Table](raw.ExternalTables); err != nil {
		return fmt.Errorf("external tables: %w", err)
	}
	if out.Functions, err = decodeOrdered[*Function](raw.Functions); err != nil {
		return fmt.Errorf("functions: %w", err)
	}
	*d = out
	return nil
}

// MarshalJSON encodes the entity lists as name-keyed objects.
func (d *Database) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"Name":`)
	name, err := json.Marshal(d.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(name)

	sections := []struct {
		key    string
		encode func() ([]byte, error)
	}{
		{"Tables", func() ([]byte, error) { return encodeOrdered(d.Tables, tableName) }},
		{"MaterializedViews", func() ([]byte, error) { return encodeOrdered(d.MaterializedViews, tableName) }},
		{"ExternalTables", func() ([]byte, error) { return encodeOrdered(d.ExternalTables, tableName) }},
		{"Functions", func() ([]byte, error) { return encodeOrdered(d.Functions, functionName) }},
	}
	for _, s := range sections {
		b, err := s.encode()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, `,%q:`, s.key)
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Schema is the full cluster schema.
type Schema struct {
	Databases []*Database
}

// Database returns the database named name.
func (s *Schema) Database(name string) (*Database, bool) {
	if s == nil {
		return nil, false
	}
	for _, d := range s.Databases {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// UnmarshalJSON decodes {"Databases": {name: database}}.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw struct {
		Databases json.RawMessage `json:"Databases"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dbs, err := decodeOrdered[*Database](raw.Databases)
	if err != nil {
		return fmt.Errorf("databases: %w", err)
	}
	s.Databases = dbs
	return nil
}

// MarshalJSON encodes the schema in the cluster's layout.
func (s *Schema) MarshalJSON() ([]byte, error) {
	dbs, err := encodeOrdered(s.Databases, func(d *Database) string { return d.Name })
	if err != nil {
		return nil, err
	}
	return append(append([]byte(`{"Databases":`), dbs...), '}'), nil
}

// Parse decodes a schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return &s, nil
}

// named entities take their object key as name when the Name field is
// absent. A null entity reports false and is dropped.
type named interface {
	defaultName(key string) bool
}

func (t *Table) defaultName(key string) bool {
	if t == nil {
		return false
	}
	if t.Name == "" {
		t.Name = key
	}
	return true
}

func (f *Function) defaultName(key string) bool {
	if f == nil {
		return false
	}
	if f.Name == "" {
		f.Name = key
	}
	return true
}

func (d *Database) defaultName(key string) bool {
	if d == nil {
		return false
	}
	if d.Name == "" {
		d.Name = key
	}
	return true
}

func tableName(t *Table) string       { return t.Name }
func functionName(f *Function) string { return f.Name }

// decodeOrdered decodes a JSON object into its values in key order. An
// absent or null object yields no values.
func decodeOrdered[T any](data json.RawMessage) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []T
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)

		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if n, ok := any(v).(named); ok && !n.defaultName(key) {
			continue
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeOrdered[T any](values []T, key func(T) string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key(v))
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
