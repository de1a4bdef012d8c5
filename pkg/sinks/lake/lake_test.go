package lake

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"
	"github.com/lawrencejones/pglake/pkg/sinks/generic/generictest"
	"github.com/lawrencejones/pglake/pkg/sinks/lake/codecs"
	"github.com/lawrencejones/pglake/pkg/sinks/lake/store"
	"github.com/spf13/afero"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gstruct"
)

func newMemoryLake(catalog Catalog, compression codecs.Codec) (*Lake, afero.Fs) {
	fs := afero.NewMemMapFs()
	root, _ := url.Parse("mem://warehouse")

	l, err := New(kitlog.NewNopLogger(), catalog, store.NewFS(fs, root), Options{
		Branch:      "main",
		Compression: compression.String(),
	})
	Expect(err).NotTo(HaveOccurred())

	return l, fs
}

// racingCatalog advances the branch behind the caller's back just before their commit.
type racingCatalog struct {
	*MemoryCatalog
	race func(Snapshot)
}

func (c *racingCatalog) Commit(ctx context.Context, snapshot Snapshot) error {
	if c.race != nil {
		c.race(snapshot)
	}

	return c.MemoryCatalog.Commit(ctx, snapshot)
}

// occupiedStore claims an object already exists at every path
type occupiedStore struct {
	store.Store
}

func (occupiedStore) Exists(context.Context, string) (bool, error) {
	return true, nil
}

var _ = Describe("Lake", func() {
	tableCount := 0
	nextTable := func() changelog.Table {
		tableCount++
		return changelog.Table{Schema: "bronze", TableName: fmt.Sprintf("example_%d", tableCount)}
	}

	for _, codec := range []codecs.Codec{codecs.None, codecs.Zstd} {
		codec := codec

		Describe(fmt.Sprintf("with %s compression", codec), func() {
			generictest.VerifyDestination(generictest.Suite{
				New: func(context.Context) generic.Destination {
					l, _ := newMemoryLake(NewMemoryCatalog(), codec)
					return l
				},
				Table: nextTable,
			})
		})
	}

	var (
		ctx     context.Context
		cancel  func()
		catalog *racingCatalog
		l       *Lake
		fs      afero.Fs
		table   changelog.Table
		at      time.Time
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		catalog = &racingCatalog{MemoryCatalog: NewMemoryCatalog()}
		l, fs = newMemoryLake(catalog, codecs.Gzip)
		table = nextTable()
		at = time.Date(2021, 3, 1, 9, 15, 0, 0, time.UTC)

		Expect(l.EnsureNamespace(ctx, table.Schema)).To(Succeed())
		_, err := l.CreateTableIfNotExists(ctx, table, generictest.FixtureBatch(table, at, 1).Schema)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cancel()
	})

	countFiles := func() int {
		count := 0
		Expect(afero.Walk(fs, "/", func(_ string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				count++
			}
			return err
		})).To(Succeed())
		return count
	}

	Describe("Append", func() {
		It("writes one data file per snapshot, under the templated path", func() {
			commit, err := l.Append(ctx, table, generictest.FixtureBatch(table, at, 1, 2))
			Expect(err).NotTo(HaveOccurred())

			exists, err := afero.Exists(fs, fmt.Sprintf("/bronze/%s/data/2021-03-01/%s.jsonl.gz", table.TableName, commit.Snapshot))
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
			Expect(countFiles()).To(Equal(1))
		})

		It("chains snapshots on the branch", func() {
			first, err := l.Append(ctx, table, generictest.FixtureBatch(table, at, 1))
			Expect(err).NotTo(HaveOccurred())
			second, err := l.Append(ctx, table, generictest.FixtureBatch(table, at.Add(time.Minute), 2))
			Expect(err).NotTo(HaveOccurred())

			history, err := l.History(ctx, table)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
			Expect(history[0].ID.String()).To(Equal(second.Snapshot))
			Expect(history[0].ParentID).To(gstruct.PointTo(Equal(history[1].ID)))
			Expect(history[1].ID.String()).To(Equal(first.Snapshot))
			Expect(history[1].ParentID).To(BeNil())
		})

		Context("when another writer advances the branch first", func() {
			BeforeEach(func() {
				catalog.race = func(snapshot Snapshot) {
					catalog.race = nil
					_, err := l.Append(ctx, table, generictest.FixtureBatch(table, at, 99))
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("returns ErrConcurrentCommit and removes the orphaned data file", func() {
				_, err := l.Append(ctx, table, generictest.FixtureBatch(table, at.Add(time.Minute), 1))
				Expect(err).To(Equal(ErrConcurrentCommit))

				// Only the winning writer's file remains
				Expect(countFiles()).To(Equal(1))

				rows, err := l.Scan(ctx, table)
				Expect(err).NotTo(HaveOccurred())
				Expect(rows).To(ConsistOf(HaveKeyWithValue("id", int64(99))))
			})
		})

		It("never overwrites an existing data file", func() {
			root, _ := url.Parse("mem://warehouse")
			occupied, err := New(kitlog.NewNopLogger(), catalog, occupiedStore{store.NewFS(fs, root)}, Options{
				Branch:      "main",
				Compression: codecs.Gzip.String(),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = occupied.Append(ctx, table, generictest.FixtureBatch(table, at, 1))
			Expect(err).To(MatchError(ContainSubstring("already exists")))

			Expect(countFiles()).To(Equal(0))
			Expect(l.History(ctx, table)).To(BeEmpty())
		})

		It("rejects batches missing from the catalog", func() {
			missing := nextTable()
			_, err := l.Append(ctx, missing, generictest.FixtureBatch(missing, at, 1))
			Expect(err).To(Equal(generic.ErrTableNotFound))
		})
	})

	Describe("Scan", func() {
		It("returns every committed row in commit order, restoring types", func() {
			_, err := l.Append(ctx, table, generictest.FixtureBatch(table, at, 1, 2))
			Expect(err).NotTo(HaveOccurred())
			_, err = l.Append(ctx, table, generictest.FixtureBatch(table, at.Add(time.Hour), 3))
			Expect(err).NotTo(HaveOccurred())

			rows, err := l.Scan(ctx, table)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0]).To(gstruct.MatchAllKeys(gstruct.Keys{
				"id":                        Equal(int64(1)),
				"msg":                       Equal("fixture"),
				generictest.IngestionColumn: BeTemporally("==", at),
			}))
			Expect(rows[2]).To(HaveKeyWithValue("id", int64(3)))
		})

		It("returns no rows for a table with no commits", func() {
			Expect(l.Scan(ctx, table)).To(BeEmpty())
		})
	})

	Describe("Watermark", func() {
		It("rejects a different ingestion column", func() {
			_, err := l.Watermark(ctx, table, "synced_at")
			Expect(err).To(MatchError(ContainSubstring("records ingestion in ingestion_timestamp")))
		})
	})

	Describe("CreateTableIfNotExists", func() {
		It("requires the ingestion column in the schema", func() {
			other := nextTable()
			batch := generictest.FixtureBatch(other, at, 1)
			batch.Schema.Columns = batch.Schema.Columns[:2]

			_, err := l.CreateTableIfNotExists(ctx, other, batch.Schema)
			Expect(err).To(MatchError(ContainSubstring("missing ingestion column")))
		})
	})

	Describe("Tables", func() {
		It("lists tables in the namespace", func() {
			entries, err := l.Tables(ctx, table.Schema)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(ContainElement(gstruct.MatchFields(gstruct.IgnoreExtras, gstruct.Fields{
				"Name":            Equal(table.TableName),
				"IngestionColumn": Equal(generictest.IngestionColumn),
				"Location":        Equal("mem://warehouse/bronze/" + table.TableName),
			})))
		})
	})
})
