package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"

	"github.com/paveg/adxql/internal/expression"
	"github.com/paveg/adxql/internal/kql"
	"github.com/paveg/adxql/internal/schema"
	"github.com/paveg/adxql/internal/validation"
)

// compileCommand compiles a query expression file to KQL.
type compileCommand struct {
	g          *globals
	file       string
	schemaFile string
	validate   bool
	offline    bool
}

func addCompileCommand(app *kingpin.Application, g *globals) {
	cmd := &compileCommand{g: g}
	c := app.Command("compile", "Compile a query expression to KQL.").Action(cmd.run)
	c.Arg("expression", "Expression JSON file, - for stdin.").Required().StringVar(&cmd.file)
	c.Flag("schema", "Schema JSON file used instead of the cluster.").StringVar(&cmd.schemaFile)
	c.Flag("validate", "Check columns, operators and aggregations first.").BoolVar(&cmd.validate)
	c.Flag("offline", "Compile without any schema.").BoolVar(&cmd.offline)
}

func (cmd *compileCommand) run(_ *kingpin.ParseContext) error {
	cfg, err := cmd.g.load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	data, err := readInput(cmd.file)
	if err != nil {
		return err
	}
	q, err := expression.Parse(data)
	if err != nil {
		return err
	}

	var (
		columns []schema.Column
		tables  []string
	)
	if !cmd.offline {
		r, err := resolverFor(cmd.schemaFile, cfg, logger)
		if err != nil {
			return err
		}
		defer r.close()

		if err := r.ResolveAndCacheSchema(context.Background()); err != nil {
			level.Warn(logger).Log("msg", "compiling without schema", "err", err)
		} else {
			columns = r.GetColumnsForTable(cfg.DefaultDatabase, q.Table())
			tables = r.GetTablesForDatabase(cfg.DefaultDatabase)
		}
	}

	return compile(cmd.g.out, q, columns, tables, cmd.validate)
}

func compile(w io.Writer, q expression.QueryExpression, columns []schema.Column, tables []string, validate bool) error {
	if validate {
		if errs := validation.ValidateQuery(q, tables, columns); len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			return fmt.Errorf("invalid expression:\n  %s", strings.Join(msgs, "\n  "))
		}
	}
	_, err := fmt.Fprintln(w, kql.Compile(q, columns))
	return err
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
