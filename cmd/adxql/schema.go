package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"

	"github.com/paveg/adxql/internal/schema"
)

// schemaCommand lists databases, tables or columns.
type schemaCommand struct {
	g          *globals
	schemaFile string
	database   string
	table      string
	arrow      bool
}

func addSchemaCommand(app *kingpin.Application, g *globals) {
	cmd := &schemaCommand{g: g}
	c := app.Command("schema", "Show databases, the tables of a database, or the columns of a table.").Action(cmd.run)
	c.Arg("database", "Database to list tables of.").StringVar(&cmd.database)
	c.Arg("table", "Table to list columns of.").StringVar(&cmd.table)
	c.Flag("schema", "Schema JSON file used instead of the cluster.").StringVar(&cmd.schemaFile)
	c.Flag("arrow", "Print the columns as an Arrow schema.").BoolVar(&cmd.arrow)
}

func (cmd *schemaCommand) run(_ *kingpin.ParseContext) error {
	cfg, err := cmd.g.load()
	if err != nil {
		return err
	}

	r, err := resolverFor(cmd.schemaFile, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer r.close()

	if err := r.ResolveAndCacheSchema(context.Background()); err != nil {
		return err
	}
	return printSchema(cmd.g.out, r.Resolver, cmd.database, cmd.table, cmd.arrow)
}

func printSchema(w io.Writer, r *schema.Resolver, database, table string, arrow bool) error {
	switch {
	case database == "":
		for _, db := range r.GetDatabases() {
			fmt.Fprintln(w, db)
		}
	case table == "":
		for _, t := range r.GetTablesForDatabase(database) {
			fmt.Fprintln(w, t)
		}
		for _, f := range r.GetFunctionsForDatabase(database) {
			fmt.Fprintf(w, "%s(%s) (function)\n", f.Name, signature(f.InputParameters))
		}
	case arrow:
		fmt.Fprintln(w, schema.ArrowSchema(r.GetColumnsForTable(database, table)))
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCSL TYPE\tCLR TYPE")
		for _, c := range r.GetColumnsForTable(database, table) {
			clr := c.Type
			if clr == "" {
				clr = schema.ClrType(c.CslType)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.CslType, clr)
		}
		return tw.Flush()
	}
	return nil
}

func signature(params []schema.Column) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.Name+":"+p.CslType)
	}
	return strings.Join(parts, ", ")
}
