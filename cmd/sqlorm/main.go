package main

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"

	"github.com/canonical/sqlorm"
)

var (
	version string
	app     = kingpin.New("sqlorm", "Run statements through an sqlorm connection pool")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("SQLORM_DEBUG").
		Bool()

	configFile = app.Flag(
		"config", "YAML file holding the connection options").
		Short('c').
		Required().
		ExistingFile()

	host = app.Flag(
		"host", "Database host, overriding the options file").
		Envar("SQLORM_HOST").
		String()

	pingCmd = app.Command("ping", "Check that the database is reachable.")

	selectCmd   = app.Command("select", "Run a query and print the rows as YAML.")
	selectSQL   = selectCmd.Arg("sql", "Query, with ? placeholders").Required().String()
	selectArgs  = selectCmd.Arg("args", "Placeholder values").Strings()
	selectLimit = selectCmd.Flag("limit", "Maximum number of rows, 0 for all").Default("0").Int()

	execCmd  = app.Command("exec", "Run a statement and print the number of affected rows.")
	execSQL  = execCmd.Arg("sql", "Statement, with ? placeholders").Required().String()
	execArgs = execCmd.Arg("args", "Placeholder values").Strings()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Rows go to stdout, so keep the logs on stderr.
	log.SetOutput(os.Stderr)
	if *debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	opts, err := sqlorm.LoadOptions(*configFile)
	if err != nil {
		log.WithError(err).Fatal("Cannot load options")
	}
	if *host != "" {
		opts.Host = *host
	}

	ctx := context.Background()
	pool, err := sqlorm.CreatePool(ctx, opts, sqlorm.WithLogger(log.StandardLogger()))
	if err != nil {
		log.WithError(err).Fatal("Cannot connect to database")
	}

	// log.Fatal exits without running deferred calls, so the pool is closed
	// before any error is reported.
	err = run(ctx, pool, cmd, os.Stdout)
	pool.Close()
	if err != nil {
		log.WithError(err).Fatal("Command failed")
	}
}

// run executes the parsed command on the pool, writing its result to out.
func run(ctx context.Context, pool *sqlorm.Pool, cmd string, out io.Writer) error {
	switch cmd {
	case pingCmd.FullCommand():
		if err := pool.DB().PingContext(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		log.Info("Database is reachable")
	case selectCmd.FullCommand():
		rows, err := pool.Select(ctx, *selectSQL, toArgs(*selectArgs), *selectLimit)
		if err != nil {
			return errors.Wrap(err, "query failed")
		}
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		if err := enc.Encode(rows); err != nil {
			return errors.Wrap(err, "cannot print rows")
		}
	case execCmd.FullCommand():
		affected, err := pool.Execute(ctx, *execSQL, toArgs(*execArgs)...)
		if err != nil {
			return errors.Wrap(err, "statement failed")
		}
		if err := yaml.NewEncoder(out).Encode(map[string]int64{"affected": affected}); err != nil {
			return errors.Wrap(err, "cannot print result")
		}
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
	return nil
}

func toArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
