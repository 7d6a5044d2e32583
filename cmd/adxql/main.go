// Command adxql compiles visual query expressions to KQL, expands template
// macros and inspects Azure Data Explorer schemas.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/paveg/adxql/internal/config"
	"github.com/paveg/adxql/internal/version"
)

// globals are the flags shared by every command.
type globals struct {
	configFile string
	clusterURL string
	database   string
	logLevel   string

	out io.Writer
}

// load builds the effective configuration: file, then environment when no
// file is given, then command line overrides.
func (g *globals) load() (config.Config, error) {
	cfg := config.LoadFromEnv()
	if g.configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(g.configFile); err != nil {
			return config.Config{}, err
		}
	}

	if g.clusterURL != "" {
		cfg.ClusterURL = g.clusterURL
	}
	if g.database != "" {
		cfg.DefaultDatabase = g.database
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, cfg.LevelFilter())
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

func newApp(g *globals) *kingpin.Application {
	app := kingpin.New("adxql", "Azure Data Explorer query builder.")
	app.Version(version.Info().String())
	app.HelpFlag.Short('h')

	app.Flag("config.file", "YAML or JSON configuration file.").StringVar(&g.configFile)
	app.Flag("cluster", "Cluster URL, overrides the configuration.").StringVar(&g.clusterURL)
	app.Flag("database", "Default database, overrides the configuration.").StringVar(&g.database)
	app.Flag("log.level", "Log level: debug, info, warn or error.").StringVar(&g.logLevel)

	addCompileCommand(app, g)
	addInterpolateCommand(app, g)
	addSchemaCommand(app, g)
	addServeCommand(app, g)
	addVersionCommand(app, g)
	return app
}

func addVersionCommand(app *kingpin.Application, g *globals) {
	app.Command("version", "Print build information.").Action(func(_ *kingpin.ParseContext) error {
		_, err := fmt.Fprint(g.out, version.Info().String())
		return err
	})
}

func main() {
	g := &globals{out: os.Stdout}
	app := newApp(g)
	kingpin.MustParse(app.Parse(os.Args[1:]))
}
