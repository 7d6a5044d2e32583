// Package macros expands $__ macros and template variables in raw KQL text.
// It runs on the final query text, after compilation.
package macros

import (
	"strings"
	"time"

	"github.com/grafana/regexp"

	"github.com/paveg/adxql/internal/common"
)

// DefaultTimeFilterColumn is used by $__timeFilter() without an argument.
const DefaultTimeFilterColumn = "TimeGenerated"

// Tokens with a special meaning.
const (
	allValue      = "all"
	grafanaAll    = "$__all"
	tautology     = "1 == 1"
	intervalMsVar = "__interval_ms"
	intervalVar   = "__interval"
)

var (
	variableArg = `\$\{?\w+(?::\w+)?\}?|\[\[\w+(?::\w+)?\]\]`

	containsPattern    = regexp.MustCompile(`\$__contains\(\s*([^,()]+?)\s*,\s*(` + variableArg + `)\s*\)`)
	escapeMultiPattern = regexp.MustCompile(`\$__escapeMulti\(\s*('[^']*'(?:\s*,\s*'[^']*')*|` + variableArg + `)\s*\)`)
	quotedMember       = regexp.MustCompile(`'([^']*)'`)
	intervalMsPattern  = regexp.MustCompile(`\$` + intervalMsVar + `\b`)
	intervalPattern    = regexp.MustCompile(`\$` + intervalVar + `\b`)
	timeFilterPattern  = regexp.MustCompile(`\$__timeFilter\(\s*([^()]*?)\s*\)`)
	timeFromPattern    = regexp.MustCompile(`\$__timeFrom(?:\(\))?`)
	timeToPattern      = regexp.MustCompile(`\$__timeTo(?:\(\))?`)
)

// TimeRange is the query window.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Interpolator expands macros, resolving variable arguments through a
// VariableResolver.
type Interpolator struct {
	resolver VariableResolver
}

// New creates an interpolator. A nil resolver leaves variables unresolved.
func New(resolver VariableResolver) *Interpolator {
	if resolver == nil {
		resolver = VariableResolverFunc(func(text string, _ ScopedVars) string { return text })
	}
	return &Interpolator{resolver: resolver}
}

// Interpolate expands $__contains, $__escapeMulti, $__interval_ms and
// $__interval. With a time range it also expands $__timeFilter,
// $__timeFrom and $__timeTo; otherwise they are left for the host.
func (i *Interpolator) Interpolate(query string, scoped ScopedVars, tr *TimeRange) string {
	query = containsPattern.ReplaceAllStringFunc(query, func(match string) string {
		m := containsPattern.FindStringSubmatch(match)
		return i.contains(m[1], m[2], scoped)
	})

	query = escapeMultiPattern.ReplaceAllStringFunc(query, func(match string) string {
		m := escapeMultiPattern.FindStringSubmatch(match)
		return i.escapeMulti(m[1], scoped)
	})

	if v, ok := scoped.Lookup(intervalMsVar); ok {
		query = intervalMsPattern.ReplaceAllLiteralString(query, v)
	}
	if v, ok := scoped.Lookup(intervalVar); ok {
		query = intervalPattern.ReplaceAllLiteralString(query, v)
	}

	if tr != nil {
		query = expandTimeMacros(query, *tr)
	}
	return query
}

// ApplyTemplateVariables expands macros, then resolves the remaining
// variable tokens.
func (i *Interpolator) ApplyTemplateVariables(query string, scoped ScopedVars, tr *TimeRange) string {
	return i.resolver.Replace(i.Interpolate(query, scoped, tr), scoped)
}

func (i *Interpolator) contains(column, variable string, scoped ScopedVars) string {
	resolved := i.resolver.Replace(variable, scoped)
	members := members(resolved)
	if isAll(members) {
		return tautology
	}
	return column + " in (" + common.QuoteAll(members, ",") + ")"
}

func (i *Interpolator) escapeMulti(arg string, scoped ScopedVars) string {
	var values []string
	if strings.HasPrefix(arg, "'") {
		for _, m := range quotedMember.FindAllStringSubmatch(arg, -1) {
			values = append(values, m[1])
		}
	} else {
		values = members(i.resolver.Replace(arg, scoped))
	}

	escaped := make([]string, len(values))
	for n, v := range values {
		escaped[n] = "@'" + v + "'"
	}
	return strings.Join(escaped, ", ")
}

// members splits a resolved value on commas and strips member quotes.
func members(resolved string) []string {
	parts := common.SplitMulti(resolved)
	for n, p := range parts {
		parts[n] = common.Unquote(p)
	}
	return parts
}

func isAll(members []string) bool {
	if len(members) != 1 {
		return false
	}
	return strings.EqualFold(members[0], allValue) || members[0] == grafanaAll
}

func expandTimeMacros(query string, tr TimeRange) string {
	from, to := datetime(tr.From), datetime(tr.To)

	query = timeFilterPattern.ReplaceAllStringFunc(query, func(match string) string {
		column := timeFilterPattern.FindStringSubmatch(match)[1]
		if column == "" {
			column = DefaultTimeFilterColumn
		}
		return column + " >= " + from + " and " + column + " <= " + to
	})
	query = timeFromPattern.ReplaceAllString(query, from)
	return timeToPattern.ReplaceAllString(query, to)
}

func datetime(t time.Time) string {
	return "datetime(" + t.UTC().Format(time.RFC3339Nano) + ")"
}
