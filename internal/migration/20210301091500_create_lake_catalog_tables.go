package migration

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(Up20210301091500, Down20210301091500)
}

func Up20210301091500(tx *sql.Tx) error {
	return exec(tx, `
	create table pglake.namespaces (
		name text primary key,
		created_at timestamptz not null default now()
	);

	create table pglake.tables (
		id bigserial primary key,
		namespace text not null references pglake.namespaces(name),
		name text not null,
		schema jsonb not null,
		fingerprint text not null,
		ingestion_column text not null,
		location text not null,
		created_at timestamptz not null default now(),
		unique (namespace, name)
	);

	create table pglake.snapshots (
		id uuid primary key,
		table_id bigint not null references pglake.tables(id),
		parent_id uuid references pglake.snapshots(id),
		branch text not null,
		watermark timestamptz not null,
		row_count bigint not null,
		data_file text not null,
		data_file_bytes bigint not null,
		compression text not null,
		committed_at timestamptz not null default now()
	);

	create table pglake.refs (
		table_id bigint not null references pglake.tables(id),
		branch text not null,
		snapshot_id uuid not null references pglake.snapshots(id),
		updated_at timestamptz not null default now(),
		primary key (table_id, branch)
	);
	`)
}

func Down20210301091500(tx *sql.Tx) error {
	return exec(tx, `
	drop table pglake.refs;
	drop table pglake.snapshots;
	drop table pglake.tables;
	drop table pglake.namespaces;
	`)
}
