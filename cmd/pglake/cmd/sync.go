package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/lawrencejones/pglake/internal/migration"
	"github.com/lawrencejones/pglake/pkg/decode"
	"github.com/lawrencejones/pglake/pkg/imports"
	"github.com/lawrencejones/pglake/pkg/runs"
	sinkbigquery "github.com/lawrencejones/pglake/pkg/sinks/bigquery"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"
	"github.com/lawrencejones/pglake/pkg/sinks/lake"
	"github.com/lawrencejones/pglake/pkg/source"

	"contrib.go.opencensus.io/integrations/ocsql"
	"github.com/alecthomas/kingpin"
	"github.com/davecgh/go-spew/spew"
	kitlog "github.com/go-kit/kit/log"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// commandFlags are shared by every command that reads from the source
type commandFlags struct {
	Source          *source.ConnectionOptions
	SourceNamespace *string
	Catalog         *source.ConnectionOptions
	Destination     *string
	Lake            *lake.Options
	BigQuery        *sinkbigquery.Options
	Imports         *imports.Options
}

func bindSyncFlags(cmd *kingpin.CmdClause) *commandFlags {
	return &commandFlags{
		Source:          new(source.ConnectionOptions).Bind(cmd, "source."),
		SourceNamespace: cmd.Flag("source.namespace", "Postgres schema to sync").Default("public").String(),
		Catalog:         new(source.ConnectionOptions).Bind(cmd, "catalog."),
		Destination:     cmd.Flag("destination", "Type of destination").Default("lake").Enum("lake", "bigquery"),
		Lake:            new(lake.Options).Bind(cmd, "lake."),
		BigQuery:        new(sinkbigquery.Options).Bind(cmd, "bigquery."),
		Imports:         new(imports.Options).Bind(cmd, ""),
	}
}

// importOptions completes the import options with the namespaces, which belong to the
// source and destination flags.
func (f *commandFlags) importOptions() (imports.Options, error) {
	opts := *f.Imports
	opts.SourceNamespace = *f.SourceNamespace

	switch *f.Destination {
	case "lake":
		opts.DestinationNamespace = f.Lake.Namespace
	case "bigquery":
		opts.DestinationNamespace = f.BigQuery.Dataset
	}

	if err := opts.Validate(); err != nil {
		return opts, UsageError{err}
	}

	return opts, nil
}

// workspace holds every connection a command needs, closed together.
type workspace struct {
	opts        imports.Options
	catalog     *sql.DB
	conn        *pgx.Conn
	source      *source.Source
	destination generic.Destination
	driver      *imports.Driver
	runs        *runs.Store
}

func (w *workspace) Close() {
	if w.destination != nil {
		w.destination.Close()
	}
	if w.conn != nil {
		w.conn.Close(context.Background())
	}
	if w.catalog != nil {
		w.catalog.Close()
	}
}

// buildWorkspace connects to the source and catalog, prepares the catalog, and opens the
// destination. Read-only workspaces require an already migrated catalog.
func buildWorkspace(ctx context.Context, flags *commandFlags, readOnly bool) (ws *workspace, err error) {
	ws = &workspace{}
	defer func() {
		if err != nil {
			ws.Close()
		}
	}()

	ws.opts, err = flags.importOptions()
	if err != nil {
		return nil, err
	}

	ws.catalog, err = openCatalog(flags.Catalog.WithDefaults(*flags.Source))
	if err != nil {
		return nil, err
	}

	if err := prepareCatalog(ctx, ws.catalog, readOnly); err != nil {
		return nil, err
	}

	ws.conn, err = source.Connect(ctx, *flags.Source)
	if err != nil {
		return nil, err
	}

	ws.source = source.New(ws.conn, decode.NewDecoder(decode.Mappings))

	var destination generic.Destination
	switch *flags.Destination {
	case "lake":
		opts := *flags.Lake
		opts.IngestionColumn = ws.opts.IngestionColumn
		destination, err = lake.Open(ctx, logger, lake.NewPostgresCatalog(ws.catalog), opts)
	case "bigquery":
		opts := *flags.BigQuery
		opts.IngestionColumn = ws.opts.IngestionColumn
		destination, err = sinkbigquery.New(ctx, logger, opts)
	default:
		return nil, UsageError{fmt.Errorf("unsupported destination: %s", *flags.Destination)}
	}

	if err != nil {
		return nil, err
	}

	ws.destination = generic.NewInstrumentedDestination(logger, *flags.Destination, destination)
	ws.runs = runs.NewStore(ws.catalog)
	ws.driver = imports.NewDriver(
		kitlog.With(logger, "component", "driver"), ws.source, ws.destination, ws.opts,
		imports.WithLocker(runs.NewAdvisoryLock(logger, ws.catalog, fmt.Sprintf("pglake:%s:%s", ws.opts.SourceNamespace, ws.opts.DestinationNamespace))),
		imports.WithRecorder(*flags.Destination, ws.runs),
	)

	return ws, nil
}

// prepareCatalog migrates the catalog, unless the command promises not to write, in
// which case the catalog must already be current.
func prepareCatalog(ctx context.Context, db *sql.DB, readOnly bool) error {
	if readOnly {
		return migration.Check(ctx, db)
	}

	if err := migration.Migrate(ctx, logger, db); err != nil {
		return errors.Wrap(err, "failed to migrate catalog")
	}

	return nil
}

// openCatalog opens the catalog database with traced queries. We use sql.DB for the
// catalog, as jet and goose both expect it.
func openCatalog(opts source.ConnectionOptions) (*sql.DB, error) {
	cfg, err := opts.ConnConfig()
	if err != nil {
		return nil, UsageError{err}
	}

	logger.Log("event", "catalog.config",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"user", cfg.User,
	)

	driverName, err := ocsql.Register("pgx", ocsql.WithAllTraceOptions())
	if err != nil {
		return nil, errors.Wrap(err, "failed to register traced driver")
	}

	db, err := sql.Open(driverName, stdlib.RegisterConnConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialise db.SQL: %w", err)
	}

	return db, nil
}

func runSync(ctx context.Context, flags *commandFlags) error {
	ws, err := buildWorkspace(ctx, flags, false)
	if err != nil {
		return err
	}
	defer ws.Close()

	report := ws.driver.Run(ctx)
	printReport(os.Stdout, report)

	if *syncPushgateway != "" {
		err := push.New(*syncPushgateway, *syncPushgatewayJob).Gatherer(prometheus.DefaultGatherer).Push()
		if err != nil {
			logger.Log("event", "metrics.push_failed", "error", err)
		}
	}

	if !report.OK() {
		return SilentError
	}

	return nil
}

func runPlan(ctx context.Context, flags *commandFlags) error {
	ws, err := buildWorkspace(ctx, flags, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	plans, err := ws.driver.Plan(ctx, ws.destination, ws.source)
	if err != nil {
		return err
	}

	if *planVerbose {
		spew.Dump(plans)
	}

	printPlans(os.Stdout, plans)

	for _, plan := range plans {
		if plan.Err != nil {
			return SilentError
		}
	}

	return nil
}
