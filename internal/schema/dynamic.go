package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// indexerKey marks array elements in buildschema output.
const indexerKey = "`indexer`"

// SubColumnName renders the accessor of a nested path under column, for
// example col["a"]["b"].
func SubColumnName(column string, path ...string) string {
	var b strings.Builder
	b.WriteString(column)
	for _, p := range path {
		b.WriteByte('[')
		b.WriteString(strconv.Quote(p))
		b.WriteByte(']')
	}
	return b.String()
}

// Flatten expands the buildschema result of a dynamic column into typed
// sub-columns, sorted by path. Paths listing several candidate types take
// the first; arrays are kept as dynamic leaves.
func Flatten(column string, buildSchema json.RawMessage) ([]Column, error) {
	var root any
	if err := json.Unmarshal(buildSchema, &root); err != nil {
		return nil, fmt.Errorf("decoding buildschema of %s: %w", column, err)
	}

	var out []Column
	flatten(column, nil, root, &out)
	return out, nil
}

func flatten(column string, path []string, node any, out *[]Column) {
	switch v := node.(type) {
	case map[string]any:
		if _, ok := v[indexerKey]; ok {
			appendLeaf(column, path, DynamicType, out)
			return
		}
		for _, key := range slices.Sorted(maps.Keys(v)) {
			flatten(column, append(slices.Clone(path), key), v[key], out)
		}
	case []any:
		for _, candidate := range v {
			if t, ok := candidate.(string); ok {
				appendLeaf(column, path, t, out)
				return
			}
		}
		appendLeaf(column, path, DynamicType, out)
	case string:
		appendLeaf(column, path, v, out)
	}
}

func appendLeaf(column string, path []string, cslType string, out *[]Column) {
	if len(path) == 0 {
		return
	}
	*out = append(*out, Column{
		Name:      SubColumnName(column, path...),
		Type:      ClrType(cslType),
		CslType:   cslType,
		IsDynamic: true,
	})
}
