// Package dbtest helps test interactions with Postgres from Ginkgo suites. Connections are
// configured from the libpq environment (PGHOST, PGDATABASE, etc).
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"

	. "github.com/onsi/gomega"
)

// DB is used to help test interactions with Postgres. Our tests create tables with
// arbitrary schemas, and the catalog lives outside of any test schema, so we need to
// reliably clean-up before each test and close any connections we hand out.
type DB struct {
	db          *sql.DB
	schema      string
	connections []*pgx.Conn
	createFuncs []func(context.Context, *sql.DB) (sql.Result, error)
	cleanFuncs  []func(context.Context, *sql.DB) (sql.Result, error)
}

func Configure(opts ...func(*DB)) *DB {
	dbtest := &DB{}
	for _, opt := range opts {
		opt(dbtest)
	}

	return dbtest
}

func (d *DB) Setup(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	// Close any connections that we explicitly acquired
	for _, conn := range d.connections {
		Expect(conn.Close(ctx)).To(Succeed())
	}
	d.connections = nil

	// Force close the connection pool, which shouldn't have any connections still open
	if d.db != nil {
		Expect(d.db.Close()).To(Succeed(), "closing database should always succeed")
	}

	// Re-open connection pools with a search_path that matches our schema, preventing
	// accidental creation/querying of resources in the public namespace.
	var err error
	d.db, err = sql.Open("pgx", fmt.Sprintf("search_path=%s,public", d.schema))
	Expect(err).NotTo(HaveOccurred(), "failed to open database connection")

	// In case previous tests exited abruptly, clean-up before we begin
	for _, clean := range d.cleanFuncs {
		_, err := clean(ctx, d.db)
		Expect(err).NotTo(HaveOccurred(), "failed to run cleanup before test start")
	}

	// Just before we begin testing, run all the creation functions
	for _, create := range d.createFuncs {
		_, err := create(ctx, d.db)
		Expect(err).NotTo(HaveOccurred(), "failed to run creation before test start")
	}

	return ctx, cancel
}

func (d *DB) MustExec(ctx context.Context, query string, args ...interface{}) {
	_, err := d.db.ExecContext(ctx, query, args...)
	Expect(err).NotTo(HaveOccurred())
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

// GetConnection checks out a connection from the pool. It is closed on the next Setup.
func (d *DB) GetConnection(ctx context.Context) *pgx.Conn {
	conn, err := stdlib.AcquireConn(d.db)
	Expect(err).NotTo(HaveOccurred(), "failed to checkout connection")

	d.connections = append(d.connections, conn)

	return conn
}

// GetSchema returns the schema this test is scoped to.
func (d *DB) GetSchema() string {
	return d.schema
}

type Option func(*DB)

func (o Option) And(other func(*DB)) Option {
	return func(db *DB) {
		o(db)
		other(db)
	}
}

func WithLifecycle(createFunc, cleanFunc func(context.Context, *sql.DB) (sql.Result, error)) func(*DB) {
	return func(db *DB) {
		if createFunc != nil {
			db.createFuncs = append(db.createFuncs, createFunc)
		}
		if cleanFunc != nil {
			db.cleanFuncs = append(db.cleanFuncs, cleanFunc)
		}
	}
}

func WithSchema(name string) func(*DB) {
	return func(db *DB) {
		db.schema = name

		WithLifecycle(
			func(ctx context.Context, db *sql.DB) (sql.Result, error) {
				return db.ExecContext(ctx, fmt.Sprintf(`create schema %s;`, name))
			},
			func(ctx context.Context, db *sql.DB) (sql.Result, error) {
				return db.ExecContext(ctx, fmt.Sprintf(`drop schema if exists %s cascade;`, name))
			},
		)(db)
	}
}

func WithTruncate(names ...string) func(*DB) {
	return WithLifecycle(
		nil, // allow the test to create data
		func(ctx context.Context, db *sql.DB) (sql.Result, error) {
			return db.ExecContext(ctx, fmt.Sprintf(`truncate %s cascade;`, strings.Join(names, ", ")))
		},
	)
}

// WithCatalog removes every catalog record before each test, for suites that exercise
// the lake or run history.
func WithCatalog() func(*DB) {
	return WithTruncate(
		"pglake.refs", "pglake.snapshots", "pglake.tables", "pglake.namespaces",
		"pglake.run_tables", "pglake.runs",
	)
}

func WithTable(schema, name string, fieldDefinitions ...string) func(*DB) {
	return WithLifecycle(
		func(ctx context.Context, db *sql.DB) (sql.Result, error) {
			return db.ExecContext(ctx, fmt.Sprintf("create table %s.%s (%s);", schema, name, strings.Join(fieldDefinitions, ", ")))
		},
		func(ctx context.Context, db *sql.DB) (sql.Result, error) {
			return db.ExecContext(ctx, fmt.Sprintf(`drop table if exists %s.%s cascade;`, schema, name))
		},
	)
}
