package migration

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(Up20210316102000, Down20210316102000)
}

// Listing a branch history walks snapshots by table and branch, newest first.
func Up20210316102000(tx *sql.Tx) error {
	return exec(tx, `
	create index snapshots_table_id_branch_committed_at_idx
	on pglake.snapshots (table_id, branch, committed_at desc);
	`)
}

func Down20210316102000(tx *sql.Tx) error {
	return exec(tx, `drop index pglake.snapshots_table_id_branch_committed_at_idx;`)
}
