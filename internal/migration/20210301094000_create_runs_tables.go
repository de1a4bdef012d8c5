package migration

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(Up20210301094000, Down20210301094000)
}

func Up20210301094000(tx *sql.Tx) error {
	return exec(tx, `
	create table pglake.runs (
		id uuid primary key,
		destination text not null,
		namespace text not null,
		started_at timestamptz not null,
		completed_at timestamptz,
		error text,
		table_count integer not null default 0,
		failed_count integer not null default 0
	);

	create table pglake.run_tables (
		id bigserial primary key,
		run_id uuid not null references pglake.runs(id) on delete cascade,
		schema text not null,
		table_name text not null,
		state text not null,
		step text,
		error text,
		row_count bigint not null default 0,
		created boolean not null default false,
		snapshot text,
		watermark timestamptz,
		ingested_at timestamptz,
		duration_seconds double precision not null
	);
	`)
}

func Down20210301094000(tx *sql.Tx) error {
	return exec(tx, `
	drop table pglake.run_tables;
	drop table pglake.runs;
	`)
}
