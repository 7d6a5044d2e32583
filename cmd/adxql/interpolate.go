package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/paveg/adxql/internal/macros"
)

// interpolateCommand expands template variables and macros in a query.
type interpolateCommand struct {
	g     *globals
	query string
	vars  map[string]string
	from  string
	to    string
}

func addInterpolateCommand(app *kingpin.Application, g *globals) {
	cmd := &interpolateCommand{g: g, vars: map[string]string{}}
	c := app.Command("interpolate", "Expand template variables and macros.").Action(cmd.run)
	c.Arg("query", "Query text, - for stdin.").Required().StringVar(&cmd.query)
	c.Flag("var", "Template variable, name=value[,value...]. Repeatable.").StringMapVar(&cmd.vars)
	c.Flag("from", "Start of the time range (RFC3339).").StringVar(&cmd.from)
	c.Flag("to", "End of the time range (RFC3339).").StringVar(&cmd.to)
}

func (cmd *interpolateCommand) run(_ *kingpin.ParseContext) error {
	query := cmd.query
	if query == "-" {
		data, err := readInput("-")
		if err != nil {
			return err
		}
		query = string(data)
	}
	tr, err := parseTimeRange(cmd.from, cmd.to)
	if err != nil {
		return err
	}
	return interpolate(cmd.g.out, query, parseVars(cmd.vars), tr)
}

func interpolate(w io.Writer, query string, vars map[string][]string, tr *macros.TimeRange) error {
	i := macros.New(macros.NewTemplateVariables(vars))
	_, err := fmt.Fprintln(w, i.ApplyTemplateVariables(query, nil, tr))
	return err
}

// parseVars splits comma separated values into multi-values.
func parseVars(raw map[string]string) map[string][]string {
	vars := make(map[string][]string, len(raw))
	for name, v := range raw {
		vars[name] = strings.Split(v, ",")
	}
	return vars
}

func parseTimeRange(from, to string) (*macros.TimeRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("--from and --to must be given together")
	}
	f, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return nil, fmt.Errorf("parsing --from: %w", err)
	}
	t, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return nil, fmt.Errorf("parsing --to: %w", err)
	}
	if t.Before(f) {
		return nil, fmt.Errorf("--to is before --from")
	}
	return &macros.TimeRange{From: f, To: t}, nil
}
