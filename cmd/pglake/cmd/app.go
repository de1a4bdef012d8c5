package cmd

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawrencejones/pglake/internal/migration"
	"github.com/lawrencejones/pglake/pkg/imports"
	"github.com/lawrencejones/pglake/pkg/sinks/lake"
	"github.com/lawrencejones/pglake/pkg/source"

	"contrib.go.opencensus.io/exporter/jaeger"
	"github.com/alecthomas/kingpin"
	"github.com/getsentry/sentry-go"
	kitlog "github.com/go-kit/kit/log"
	level "github.com/go-kit/kit/log/level"
	"github.com/joho/godotenv"
	"go.opencensus.io/trace"
)

var logger kitlog.Logger

var (
	app = kingpin.New("pglake", "Incrementally sync Postgres tables into a versioned lake").Version(versionStanza())

	// Global flags
	debug               = app.Flag("debug", "Enable debug logging").Default("false").Bool()
	jaegerAgentEndpoint = app.Flag("jaeger-agent-endpoint", "Endpoint for Jaeger agent").Default("localhost:6831").String()
	sentryDSN           = app.Flag("sentry-dsn", "Sentry DSN, errors are reported to Sentry when set").String()

	sync               = app.Command("sync", "Sync every table once, then exit")
	syncFlags          = bindSyncFlags(sync)
	syncPushgateway    = sync.Flag("metrics.pushgateway", "Push metrics to this Prometheus Pushgateway after the run").String()
	syncPushgatewayJob = sync.Flag("metrics.pushgateway-job", "Job name for pushed metrics").Default("pglake").String()

	serve              = app.Command("serve", "Sync on an interval, serving metrics and on-demand syncs over HTTP")
	serveFlags         = bindSyncFlags(serve)
	serveWorkerOptions = new(imports.WorkerOptions).Bind(serve, "")
	serveAddress       = serve.Flag("listen-address", "Address to bind HTTP listener").Default("127.0.0.1:9525").String()

	plan        = app.Command("plan", "Show what a sync would do, without writing anything")
	planFlags   = bindSyncFlags(plan)
	planVerbose = plan.Flag("verbose", "Dump the full plan of each table").Default("false").Bool()

	tables        = app.Command("tables", "List lake tables with their snapshot history")
	tablesCatalog = new(source.ConnectionOptions).Bind(tables, "catalog.")
	tablesLake    = new(lake.Options).Bind(tables, "lake.")
	tablesHistory = tables.Flag("history", "Show the snapshot history of each table").Default("false").Bool()
	tablesRows    = tables.Flag("rows", "Scan each table and count its rows").Default("false").Bool()
	tablesInclude = tables.Flag("include", "Show only tables matching these glob patterns").Strings()

	migrate        = app.Command("migrate", "Apply catalog migrations")
	migrateCatalog = new(source.ConnectionOptions).Bind(migrate, "catalog.")
)

// SilentError should be returned when the command wants to skip all logging of the error
// it has encountered. It wraps no error content as we should never inspect it.
var SilentError = errors.New("silent error")

type UsageError struct {
	error
}

func Run() (err error) {
	_ = godotenv.Load() // optional .env for local runs

	app.DefaultEnvars()
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.AllowInfo())
	if *debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	}
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.DefaultCaller)
	stdlog.SetOutput(kitlog.NewStdlibAdapter(logger))

	// Setup an error handler to log and print usage
	defer func() {
		var usageErr UsageError
		switch {
		// Do nothing if no error
		case err == nil:
			return
		// Suppress silent errors
		case errors.Is(err, SilentError):
			return
		// If we're a usage error, unwrap it and print out usage before returning
		case errors.As(err, &usageErr):
			context, _ := app.ParseContext(os.Args[1:])
			app.UsageForContext(context)
			fmt.Fprintf(os.Stderr, "error: %s\n", usageErr.Error())

			err = usageErr.error
			return
		// Otherwise we probably want to log our error
		default:
			logger.Log("event", "error", "error", err, "msg", "exiting with error")
		}
	}()

	// This is the root context for the application. Once terminated, everything we have
	// started should also finish.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stage our shutdown to first request termination, then cancel contexts if downstream
	// workers haven't responded.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	shutdown := make(chan struct{})

	go func() {
		<-sigc
		close(shutdown)
		select {
		case <-time.After(30 * time.Second):
		case <-sigc:
		}
		cancel()
	}()

	{
		// Tracing with jaeger
		jexporter, err := jaeger.NewExporter(jaeger.Options{
			AgentEndpoint: *jaegerAgentEndpoint,
			Process: jaeger.Process{
				ServiceName: "pglake",
			},
		})

		if err != nil {
			return UsageError{err}
		}

		trace.RegisterExporter(jexporter)
		trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})
		defer jexporter.Flush()
	}

	// An empty DSN falls back to SENTRY_DSN, and disables Sentry if that is also empty
	if err := sentry.Init(sentry.ClientOptions{Dsn: *sentryDSN, Release: Version}); err != nil {
		return UsageError{fmt.Errorf("invalid sentry configuration: %w", err)}
	}
	defer sentry.Flush(5 * time.Second)

	switch command {
	case sync.FullCommand():
		return runSync(ctx, syncFlags)
	case serve.FullCommand():
		return runServe(ctx, shutdown, serveFlags)
	case plan.FullCommand():
		return runPlan(ctx, planFlags)
	case tables.FullCommand():
		return runTables(ctx)
	case migrate.FullCommand():
		db, err := openCatalog(*migrateCatalog)
		if err != nil {
			return err
		}
		defer db.Close()

		return migration.Migrate(ctx, logger, db)
	}

	return UsageError{fmt.Errorf("unsupported command")}
}
