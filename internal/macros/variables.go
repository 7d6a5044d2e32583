package macros

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/grafana/regexp"
)

// ScopedVar is a variable supplied with a single request, such as
// __interval.
type ScopedVar struct {
	Text  string `json:"text"`
	Value any    `json:"value"`
}

// String renders the value, falling back to the text. Lists are comma
// joined.
func (v ScopedVar) String() string {
	switch val := v.Value.(type) {
	case nil:
		return v.Text
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

// ScopedVars maps variable names, without the leading $, to values.
type ScopedVars map[string]ScopedVar

// Lookup returns the rendered value of name.
func (s ScopedVars) Lookup(name string) (string, bool) {
	v, ok := s[name]
	if !ok {
		return "", false
	}
	return v.String(), true
}

// VariableResolver substitutes template variable tokens in text.
type VariableResolver interface {
	Replace(text string, scoped ScopedVars) string
}

// VariableResolverFunc adapts a function to VariableResolver.
type VariableResolverFunc func(text string, scoped ScopedVars) string

// Replace calls f.
func (f VariableResolverFunc) Replace(text string, scoped ScopedVars) string {
	return f(text, scoped)
}

var variablePattern = regexp.MustCompile(`\$(\w+)|\$\{(\w+)(?::\w+)?\}|\[\[(\w+)(?::\w+)?\]\]`)

// TemplateVariables resolves $name, ${name} and [[name]] tokens against a
// fixed set of dashboard variables. Scoped variables take precedence.
// Unknown tokens are left in place.
type TemplateVariables struct {
	vars map[string][]string
}

// NewTemplateVariables creates a resolver over vars.
func NewTemplateVariables(vars map[string][]string) *TemplateVariables {
	tv := &TemplateVariables{vars: make(map[string][]string, len(vars))}
	for k, v := range vars {
		tv.vars[k] = append([]string(nil), v...)
	}
	return tv
}

// Replace implements VariableResolver. Multi-values are comma joined.
func (tv *TemplateVariables) Replace(text string, scoped ScopedVars) string {
	return variablePattern.ReplaceAllStringFunc(text, func(token string) string {
		m := variablePattern.FindStringSubmatch(token)
		name := m[1] + m[2] + m[3]

		if v, ok := scoped.Lookup(name); ok {
			return v
		}
		if values, ok := tv.vars[name]; ok {
			return strings.Join(values, ",")
		}
		return token
	})
}
