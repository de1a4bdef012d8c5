package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/lawrencejones/pglake/internal/migration"

	"github.com/alecthomas/kingpin"
	kitlog "github.com/go-kit/kit/log"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose"
)

var (
	app     = kingpin.New("goose", "Manage pglake catalog migrations")
	dir     = app.Flag("dir", "Directory containing migrations").Default("internal/migration").String()
	command = app.Arg("command", "Command to pass to goose").Required().String()
	args    = app.Arg("args", "Arguments to goose command").Strings()
)

func main() {
	app.UsageTemplate(kingpin.DefaultUsageTemplate + `

Commands:
	up                   Create the pglake schema and migrate to the most recent version
	up-to VERSION        Migrate the DB to a specific VERSION
	down                 Roll back the version by 1
	down-to VERSION      Roll back to a specific VERSION
	redo                 Re-run the latest migration
	reset                Roll back all migrations
	status               Dump the migration status for the current DB
	version              Print the current version of the database
	create NAME [sql|go] Creates new migration file with the current timestamp
	fix                  Apply sequential ordering to migrations
`)

	if _, err := app.Parse(os.Args[1:]); err != nil {
		app.FatalUsage(err.Error())
	}

	db, err := sql.Open("pgx", "")
	if err != nil {
		app.Fatalf("failed to open DB: %v\n", err)
	}

	defer func() {
		if err := db.Close(); err != nil {
			app.Fatalf("failed to close DB: %v\n", err)
		}
	}()

	// Plain up is what the pglake migrate command runs, which also creates the schema
	if *command == "up" {
		logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
		if err := migration.Migrate(context.Background(), logger, db); err != nil {
			app.Fatalf(err.Error())
		}

		return
	}

	// Goose migrations should exist within the schema, too
	goose.SetTableName(fmt.Sprintf("%s.schema_migrations", migration.Schema))

	if err := goose.Run(*command, db, *dir, *args...); err != nil {
		app.Fatalf(err.Error())
	}
}
