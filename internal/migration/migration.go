package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"math"
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/pressly/goose"
)

// Schema holds the catalog tables and the goose migration history.
const Schema = "pglake"

// ErrNotMigrated is returned by Check when the catalog is behind the migrations compiled
// into this binary.
var ErrNotMigrated = errors.New("catalog is not migrated, run pglake migrate")

func Migrate(ctx context.Context, logger kitlog.Logger, db *sql.DB) error {
	logger.Log("event", "schema.create", "schema", Schema)
	if _, err := db.ExecContext(ctx, `create schema if not exists pglake;`); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}

	logger.Log("event", "migrations.run", "schema", Schema)
	goose.SetTableName(versionTable)

	return withScratchDir(func(dir string) error {
		if err := goose.Up(db, dir); err != nil {
			return errors.Wrap(err, "failed to migrate database")
		}

		return nil
	})
}

// Check verifies the catalog has every migration applied, without changing the database.
// Commands that only read the catalog use this in place of Migrate.
func Check(ctx context.Context, db *sql.DB) error {
	return check(ctx, db, versionTable)
}

func check(ctx context.Context, db *sql.DB, table string) error {
	latest, err := latestVersion()
	if err != nil {
		return err
	}

	current, err := appliedVersion(ctx, db, table)
	if err != nil {
		return err
	}

	if current < latest {
		return errors.Wrapf(ErrNotMigrated, "catalog at version %d, latest is %d", current, latest)
	}

	return nil
}

const versionTable = Schema + ".schema_migrations"

// latestVersion is the newest migration registered with goose.
func latestVersion() (latest int64, err error) {
	err = withScratchDir(func(dir string) error {
		migrations, err := goose.CollectMigrations(dir, 0, math.MaxInt64)
		if err != nil {
			return errors.Wrap(err, "failed to collect migrations")
		}

		last, err := migrations.Last()
		if err != nil {
			return errors.Wrap(err, "no migrations registered")
		}

		latest = last.Version
		return nil
	})

	return latest, err
}

// appliedVersion reads the version goose would report from table, or zero if the table
// doesn't exist. Unlike goose.GetDBVersion it never creates the table. The most recent
// row for each version says whether it is currently applied.
func appliedVersion(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var exists bool
	if err := db.QueryRowContext(ctx, `select to_regclass($1) is not null;`, table).Scan(&exists); err != nil {
		return 0, errors.Wrap(err, "failed to find migrations table")
	}
	if !exists {
		return 0, nil
	}

	query := fmt.Sprintf(`
	select coalesce(max(version_id), 0)
	from (
		select distinct on (version_id) version_id, is_applied
		from %s
		order by version_id, id desc
	) versions
	where is_applied;
	`, table)

	var version int64
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, errors.Wrap(err, "failed to read migration version")
	}

	return version, nil
}

// There is no good reason we have to do this, but goose chokes whenever we give it our
// current directory with "no separator" errors. We don't even use text migrations in
// this project, so create a random scratch directory and remove it as soon as we're
// done.
func withScratchDir(do func(dir string) error) error {
	dir, err := ioutil.TempDir("", "goose-migrations-")
	if err != nil {
		return errors.Wrap(err, "failed to create scratch migration directory")
	}
	defer os.RemoveAll(dir)

	return do(dir)
}

// exec is a helper for most migrations, where we want to return the error given by a SQL
// operation and no more.
func exec(tx *sql.Tx, query string, args ...interface{}) error {
	_, err := tx.Exec(query, args...)
	return err
}
