package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/internal/dbtest"
	"github.com/lawrencejones/pglake/pkg/imports"
	"github.com/lawrencejones/pglake/pkg/runs"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("runs", func() {
	var (
		ctx    context.Context
		cancel func()
		db     = dbtest.Configure(
			dbtest.WithSchema("runs_integration_test"),
			dbtest.WithCatalog(),
		)
	)

	BeforeEach(func() {
		ctx, cancel = db.Setup(context.Background(), 10*time.Second)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("AdvisoryLock", func() {
		var lock *runs.AdvisoryLock

		BeforeEach(func() {
			lock = runs.NewAdvisoryLock(kitlog.NewNopLogger(), db.GetDB(), "runs_integration_test")
		})

		It("refuses a second holder until unlocked", func() {
			unlock, err := lock.Lock(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, err = lock.Lock(ctx)
			Expect(errors.Is(err, imports.ErrRunInProgress)).To(BeTrue(), "expected ErrRunInProgress, got %v", err)

			Expect(unlock(ctx)).To(Succeed())

			unlock, err = lock.Lock(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(unlock(ctx)).To(Succeed())
		})

		It("releases the lock when the run was cancelled", func() {
			runCtx, runCancel := context.WithCancel(ctx)
			unlock, err := lock.Lock(runCtx)
			Expect(err).NotTo(HaveOccurred())

			runCancel()
			Expect(unlock(runCtx)).To(Succeed())

			unlock, err = lock.Lock(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(unlock(ctx)).To(Succeed())
		})

		It("does not conflict with differently named locks", func() {
			unlock, err := lock.Lock(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer unlock(ctx)

			other := runs.NewAdvisoryLock(kitlog.NewNopLogger(), db.GetDB(), "runs_integration_test_other")
			otherUnlock, err := other.Lock(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(otherUnlock(ctx)).To(Succeed())
		})
	})

	Describe("Store", func() {
		var store *runs.Store

		BeforeEach(func() {
			store = runs.NewStore(db.GetDB())
		})

		newReport := func(startedAt time.Time, tables ...string) *imports.Report {
			report := imports.NewReport()
			report.StartedAt = startedAt
			report.FinishedAt = startedAt.Add(time.Second)
			for _, name := range tables {
				report.Results = append(report.Results, imports.Result{
					Table:    imports.TableDescriptor{Name: name, SourceNamespace: "public", DestinationNamespace: "bronze"},
					State:    imports.StateEmpty,
					Duration: time.Millisecond,
				})
			}

			return report
		}

		It("records runs and lists the most recent with their tables", func() {
			base := time.Now().UTC().Truncate(time.Second)
			for idx := 0; idx < 3; idx++ {
				report := newReport(base.Add(time.Duration(idx)*time.Minute), fmt.Sprintf("first_%d", idx), fmt.Sprintf("second_%d", idx))
				Expect(store.Record(ctx, "lake", "public", report)).To(Succeed())
			}

			recent, err := store.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(2))

			Expect(recent[0].StartedAt).To(BeTemporally("==", base.Add(2*time.Minute)))
			Expect(recent[0].Tables).To(HaveLen(2))
			Expect(recent[0].Tables[0].TableName).To(Equal("first_2"))
			Expect(recent[1].Tables[1].TableName).To(Equal("second_1"))
		})

		It("records runs with no tables", func() {
			report := newReport(time.Now())
			report.Err = errors.New("failed to enumerate source tables")
			Expect(store.Record(ctx, "lake", "public", report)).To(Succeed())

			recent, err := store.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(HaveLen(1))
			Expect(recent[0].Tables).To(BeEmpty())
			Expect(*recent[0].Error).To(Equal("failed to enumerate source tables"))
		})
	})
})
