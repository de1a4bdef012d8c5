// Package generictest verifies destinations adhere to the semantics the sync engine relies
// on. Every implementation of generic.Destination should pass this suite.
package generictest

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgtype"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/decode"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

const IngestionColumn = "ingestion_timestamp"

// FixtureBatch builds a stamped batch for the given table, with an id and msg column.
func FixtureBatch(table changelog.Table, at time.Time, ids ...int64) changelog.Batch {
	batch := changelog.Batch{
		Schema: changelog.Schema{
			Namespace: "public",
			Name:      table.TableName,
			Columns: []changelog.Column{
				{Name: "id", Type: pgtype.Int8OID, Kind: decode.KindInteger},
				{Name: "msg", Type: pgtype.TextOID, Kind: decode.KindString},
			},
		},
		ExtractedAt: at,
	}

	for _, id := range ids {
		batch.Rows = append(batch.Rows, changelog.Row{"id": id, "msg": "fixture"})
	}

	stamped, err := batch.Stamp(IngestionColumn, at)
	if err != nil {
		panic(err)
	}

	return stamped
}

// Suite configures how to build the destination under test. Table should return a table
// that does not yet exist in the destination, and may be called once per test.
type Suite struct {
	New   func(ctx context.Context) generic.Destination
	Table func() changelog.Table
}

func VerifyDestination(suite Suite) {
	var (
		ctx    context.Context
		cancel func()
		dest   generic.Destination
		table  changelog.Table
		at     time.Time
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		dest = suite.New(ctx)
		table = suite.Table()
		at = time.Now().UTC().Truncate(time.Microsecond)
	})

	AfterEach(func() {
		Expect(dest.Close()).To(Succeed())
		cancel()
	})

	create := func() {
		Expect(dest.EnsureNamespace(ctx, table.Schema)).To(Succeed())
		created, err := dest.CreateTableIfNotExists(ctx, table, FixtureBatch(table, at, 1).Schema)
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())
	}

	Describe("TableExists", func() {
		It("is false before creation", func() {
			Expect(dest.TableExists(ctx, table)).To(BeFalse())
		})

		It("is true after creation", func() {
			create()
			Expect(dest.TableExists(ctx, table)).To(BeTrue())
		})
	})

	Describe("EnsureNamespace", func() {
		It("can be called repeatedly", func() {
			Expect(dest.EnsureNamespace(ctx, table.Schema)).To(Succeed())
			Expect(dest.EnsureNamespace(ctx, table.Schema)).To(Succeed())
		})
	})

	Describe("CreateTableIfNotExists", func() {
		It("reports nothing created when the table exists", func() {
			create()

			created, err := dest.CreateTableIfNotExists(ctx, table, FixtureBatch(table, at, 1).Schema)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
		})
	})

	Describe("Watermark", func() {
		It("returns ErrTableNotFound for missing tables", func() {
			_, err := dest.Watermark(ctx, table, IngestionColumn)
			Expect(errors.Is(err, generic.ErrTableNotFound)).To(BeTrue(), "expected ErrTableNotFound, got %v", err)
		})

		It("returns nil for a table with no commits", func() {
			create()
			Expect(dest.Watermark(ctx, table, IngestionColumn)).To(BeNil())
		})

		It("advances with each append", func() {
			create()

			_, err := dest.Append(ctx, table, FixtureBatch(table, at, 1, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(dest.Watermark(ctx, table, IngestionColumn)).To(
				PointTo(BeTemporally("==", at)),
			)

			later := at.Add(time.Minute)
			_, err = dest.Append(ctx, table, FixtureBatch(table, later, 3))
			Expect(err).NotTo(HaveOccurred())
			Expect(dest.Watermark(ctx, table, IngestionColumn)).To(
				PointTo(BeTemporally("==", later)),
			)
		})
	})

	Describe("Append", func() {
		It("returns a commit describing the batch", func() {
			create()

			commit, err := dest.Append(ctx, table, FixtureBatch(table, at, 1, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(commit).To(MatchFields(IgnoreExtras, Fields{
				"Table":     Equal(table),
				"Snapshot":  Not(BeEmpty()),
				"Rows":      Equal(2),
				"Watermark": BeTemporally("==", at),
			}))
		})

		It("refuses unstamped batches", func() {
			create()

			batch := FixtureBatch(table, at, 1)
			batch.IngestedAt = time.Time{}

			_, err := dest.Append(ctx, table, batch)
			Expect(err).To(HaveOccurred())
		})

		It("refuses batches that diverge from the frozen schema", func() {
			create()

			batch := FixtureBatch(table, at, 1)
			batch.Schema = batch.Schema.WithColumn(changelog.Column{Name: "extra", Kind: decode.KindString})

			_, err := dest.Append(ctx, table, batch)
			Expect(errors.Is(err, generic.ErrSchemaMismatch)).To(BeTrue(), "expected ErrSchemaMismatch, got %v", err)
		})
	})
}
