package cmd

import (
	"context"
	"os"

	"github.com/lawrencejones/pglake/pkg/sinks/lake"
	"github.com/lawrencejones/pglake/pkg/util"
	"github.com/pkg/errors"
)

// tableListing is what the tables command prints for each lake table
type tableListing struct {
	Entry   lake.TableEntry
	History []lake.Snapshot
	Rows    *int
}

func runTables(ctx context.Context) error {
	filter := util.Filter{Include: *tablesInclude}
	if err := filter.Validate(); err != nil {
		return UsageError{err}
	}

	db, err := openCatalog(*tablesCatalog)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := prepareCatalog(ctx, db, true); err != nil {
		return err
	}

	lk, err := lake.Open(ctx, logger, lake.NewPostgresCatalog(db), *tablesLake)
	if err != nil {
		return err
	}
	defer lk.Close()

	entries, err := lk.Tables(ctx, tablesLake.Namespace)
	if err != nil {
		return err
	}

	listings := []tableListing{}
	for _, entry := range entries {
		if !filter.Match(entry.Name) {
			continue
		}

		listing := tableListing{Entry: entry}
		listing.History, err = lk.History(ctx, entry.Table())
		if err != nil {
			return errors.Wrapf(err, "failed to read history of %s", entry.Table())
		}

		if *tablesRows {
			rows, err := lk.Scan(ctx, entry.Table())
			if err != nil {
				return errors.Wrapf(err, "failed to scan %s", entry.Table())
			}

			count := len(rows)
			listing.Rows = &count
		}

		listings = append(listings, listing)
	}

	printTables(os.Stdout, listings, *tablesHistory)

	return nil
}
