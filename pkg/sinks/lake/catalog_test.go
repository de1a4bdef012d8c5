package lake

import (
	"context"

	"github.com/google/uuid"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("walkHistory", func() {
	var (
		first  = uuid.New()
		second = uuid.New()
		third  = uuid.New()
		stray  = uuid.New()
	)

	It("follows parents from the head, ignoring unreachable snapshots", func() {
		snapshots := []Snapshot{
			{ID: stray, ParentID: &first},
			{ID: first},
			{ID: third, ParentID: &second},
			{ID: second, ParentID: &first},
		}

		history := walkHistory(&third, snapshots)
		Expect(history).To(HaveLen(3))
		Expect([]uuid.UUID{history[0].ID, history[1].ID, history[2].ID}).To(
			Equal([]uuid.UUID{third, second, first}),
		)
	})

	It("returns nothing without a head", func() {
		Expect(walkHistory(nil, []Snapshot{{ID: first}})).To(BeEmpty())
	})
})

var _ = Describe("MemoryCatalog", func() {
	var (
		ctx     = context.Background()
		catalog *MemoryCatalog
		table   = changelog.Table{Schema: "bronze", TableName: "users"}
	)

	BeforeEach(func() {
		catalog = NewMemoryCatalog()
	})

	It("refuses tables in unknown namespaces", func() {
		_, _, err := catalog.CreateTable(ctx, TableEntry{Namespace: "bronze", Name: "users"})
		Expect(err).To(MatchError("namespace bronze does not exist"))
	})

	It("returns ErrTableNotFound for unknown tables", func() {
		_, err := catalog.GetTable(ctx, table)
		Expect(err).To(Equal(generic.ErrTableNotFound))
	})

	Describe("Commit", func() {
		var entry *TableEntry

		BeforeEach(func() {
			Expect(catalog.EnsureNamespace(ctx, "bronze")).To(Succeed())

			var err error
			entry, _, err = catalog.CreateTable(ctx, TableEntry{Namespace: "bronze", Name: "users"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("advances the branch from its current head", func() {
			first := Snapshot{ID: uuid.New(), TableID: entry.ID, Branch: "main"}
			Expect(catalog.Commit(ctx, first)).To(Succeed())

			second := Snapshot{ID: uuid.New(), TableID: entry.ID, Branch: "main", ParentID: &first.ID}
			Expect(catalog.Commit(ctx, second)).To(Succeed())

			head, err := catalog.Head(ctx, entry.ID, "main")
			Expect(err).NotTo(HaveOccurred())
			Expect(head.ID).To(Equal(second.ID))
		})

		It("rejects commits from a stale head", func() {
			first := Snapshot{ID: uuid.New(), TableID: entry.ID, Branch: "main"}
			Expect(catalog.Commit(ctx, first)).To(Succeed())

			stale := Snapshot{ID: uuid.New(), TableID: entry.ID, Branch: "main"}
			Expect(catalog.Commit(ctx, stale)).To(Equal(ErrConcurrentCommit))
		})

		It("keeps branches independent", func() {
			Expect(catalog.Commit(ctx, Snapshot{ID: uuid.New(), TableID: entry.ID, Branch: "main"})).To(Succeed())
			Expect(catalog.Commit(ctx, Snapshot{ID: uuid.New(), TableID: entry.ID, Branch: "dev"})).To(Succeed())

			history, err := catalog.History(ctx, entry.ID, "dev")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
		})
	})
})
