package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	"github.com/lawrencejones/pglake/internal/dbschema/pglake/model"
	"github.com/lawrencejones/pglake/pkg/imports"
	"github.com/lawrencejones/pglake/pkg/runs"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeSyncer struct {
	report *imports.Report
	calls  int
}

func (f *fakeSyncer) Sync(ctx context.Context) (*imports.Report, bool) {
	f.calls++
	return f.report, false
}

type fakeRunLister struct {
	runs  []runs.Run
	err   error
	limit int64
}

func (f *fakeRunLister) List(ctx context.Context, limit int64) ([]runs.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

var _ = Describe("buildHandler", func() {
	var (
		worker  *fakeSyncer
		history *fakeRunLister
		handler http.Handler
		rec     *httptest.ResponseRecorder
	)

	users := imports.TableDescriptor{
		Name: "users", SourceNamespace: "public", DestinationNamespace: "bronze",
		ChangeColumn: "updated_at", IngestionColumn: "ingestion_timestamp",
	}

	BeforeEach(func() {
		worker = &fakeSyncer{report: imports.NewReport()}
		history = &fakeRunLister{}
		handler = buildHandler(worker, history)
		rec = httptest.NewRecorder()
	})

	Describe("/sync", func() {
		It("rejects anything but POST", func() {
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/sync", nil))

			Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(worker.calls).To(Equal(0))
		})

		It("runs a sync and returns the report", func() {
			ingestedAt := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
			worker.report.Results = []imports.Result{
				{Table: users, State: imports.StateCommitted, Rows: 3, IngestedAt: &ingestedAt, Snapshot: "abc"},
			}

			handler.ServeHTTP(rec, httptest.NewRequest("POST", "/sync", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(worker.calls).To(Equal(1))

			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("ok", true))
			Expect(body["tables"]).To(ConsistOf(
				And(
					HaveKeyWithValue("table", "public.users"),
					HaveKeyWithValue("state", "COMMITTED"),
					HaveKeyWithValue("rows", BeNumerically("==", 3)),
					HaveKeyWithValue("ingested_at", "2021-03-01T09:00:00Z"),
					HaveKeyWithValue("snapshot", "abc"),
				),
			))
		})

		It("responds with an error status when a table failed", func() {
			worker.report.Results = []imports.Result{
				{Table: users, State: imports.StateWatermarkRead, Step: imports.StepExtract, Err: fmt.Errorf("boom")},
			}

			handler.ServeHTTP(rec, httptest.NewRequest("POST", "/sync", nil))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(ContainSubstring(`"step":"extract"`))
			Expect(rec.Body.String()).To(ContainSubstring(`"error":"boom"`))
		})
	})

	Describe("/runs", func() {
		It("lists runs with the default limit", func() {
			step := "commit"
			history.runs = []runs.Run{
				{
					Runs: model.Runs{ID: uuid.New(), Destination: "lake", Namespace: "public"},
					Tables: []model.RunTables{
						{Schema: "public", TableName: "users", State: "BOOTSTRAPPED", Step: &step},
					},
				},
			}

			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/runs", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(history.limit).To(BeEquivalentTo(defaultRunsLimit))
			Expect(rec.Body.String()).To(ContainSubstring(`"table":"public.users"`))
			Expect(rec.Body.String()).To(ContainSubstring(`"step":"commit"`))
		})

		It("honours the limit parameter", func() {
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/runs?limit=5", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(history.limit).To(BeEquivalentTo(5))
			Expect(rec.Body.String()).To(Equal("[]\n"))
		})

		It("rejects invalid limits", func() {
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/runs?limit=0", nil))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("fails when the history can't be read", func() {
			history.err = fmt.Errorf("connection refused")
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/runs", nil))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	It("serves health checks", func() {
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
