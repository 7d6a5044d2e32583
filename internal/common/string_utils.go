// Package common provides shared string utilities for rendering KQL text
package common

import (
	"fmt"
	"strings"
)

// StringFormatter provides common KQL formatting utilities.
type StringFormatter struct{}

// NewStringFormatter creates a new StringFormatter instance.
func NewStringFormatter() *StringFormatter {
	return &StringFormatter{}
}

// FormatFunction formats a function call
// Pattern: functionName(arg1, arg2, ...)
func (sf *StringFormatter) FormatFunction(name string, args ...string) string {
	if len(args) == 0 {
		return fmt.Sprintf("%s()", name)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

// FormatClause formats a pipeline clause
// Pattern: operator content.
func (sf *StringFormatter) FormatClause(operator, content string) string {
	if content == "" {
		return ""
	}
	return fmt.Sprintf("%s %s", operator, content)
}

// FormatList formats a list of items with separator.
func (sf *StringFormatter) FormatList(items []string, separator string) string {
	return strings.Join(items, separator)
}

// FormatSort formats an order by key.
func (sf *StringFormatter) FormatSort(column string, ascending bool) string {
	direction := "asc"
	if !ascending {
		direction = "desc"
	}
	return fmt.Sprintf("%s %s", column, direction)
}

// IsQuoted reports whether s starts and ends with the same quote character.
// Both single and double quotes count.
func IsQuoted(s string) bool {
	if len(s) < 2 { //nolint:mnd // opening and closing quote
		return false
	}
	first, last := s[0], s[len(s)-1]
	return first == last && (first == '\'' || first == '"')
}

// Unquote strips one pair of surrounding quotes, if present.
func Unquote(s string) string {
	if IsQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

// Quote wraps s in single quotes unless it is already quoted.
func Quote(s string) string {
	if IsQuoted(s) {
		return s
	}
	return "'" + s + "'"
}

// QuoteAll quotes every value and joins them with separator.
func QuoteAll(values []string, separator string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return strings.Join(quoted, separator)
}

// SplitMulti splits a resolved template variable value on commas, trimming
// whitespace around every member. An empty input yields no members.
func SplitMulti(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// IsIdentifier reports whether name can be used as a bare KQL entity name.
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Default formatter instance for convenience.
var defaultFormatter = NewStringFormatter()

// FormatFunction formats a function call using the default formatter.
func FormatFunction(name string, args ...string) string {
	return defaultFormatter.FormatFunction(name, args...)
}

// FormatClause formats a pipeline clause using the default formatter.
func FormatClause(operator, content string) string {
	return defaultFormatter.FormatClause(operator, content)
}

// FormatList formats a list of items using the default formatter.
func FormatList(items []string, separator string) string {
	return defaultFormatter.FormatList(items, separator)
}

// FormatSort formats an order by key using the default formatter.
func FormatSort(column string, ascending bool) string {
	return defaultFormatter.FormatSort(column, ascending)
}
