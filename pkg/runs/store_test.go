package runs

import (
	"fmt"
	"time"

	"github.com/lawrencejones/pglake/pkg/imports"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

var _ = Describe("serialize", func() {
	var (
		started   = time.Date(2021, 3, 1, 9, 15, 0, 0, time.UTC)
		watermark = time.Date(2021, 3, 1, 8, 0, 0, 0, time.FixedZone("BST", 3600))
		report    *imports.Report
	)

	BeforeEach(func() {
		report = imports.NewReport()
		report.StartedAt = started
		report.FinishedAt = started.Add(time.Minute)
		report.Results = []imports.Result{
			{
				Table:      imports.TableDescriptor{Name: "users", SourceNamespace: "public", DestinationNamespace: "bronze"},
				State:      imports.StateCommitted,
				Watermark:  &watermark,
				IngestedAt: &started,
				Rows:       3,
				Created:    true,
				Snapshot:   "5d2a3a8e",
				Duration:   2 * time.Second,
			},
			{
				Table: imports.TableDescriptor{Name: "payments", SourceNamespace: "public", DestinationNamespace: "bronze"},
				State: imports.StateWatermarkRead,
				Step:  imports.StepExtract,
				Err:   fmt.Errorf("connection reset"),
			},
		}
	})

	It("summarises the run", func() {
		run, _ := serialize("lake", "public", report)
		Expect(run).To(MatchFields(IgnoreExtras, Fields{
			"ID":          Equal(report.ID),
			"Destination": Equal("lake"),
			"Namespace":   Equal("public"),
			"CompletedAt": PointTo(BeTemporally("==", started.Add(time.Minute))),
			"Error":       BeNil(),
			"TableCount":  BeEquivalentTo(2),
			"FailedCount": BeEquivalentTo(1),
		}))
	})

	It("records each table outcome", func() {
		_, tables := serialize("lake", "public", report)
		Expect(tables).To(HaveLen(2))

		Expect(tables[0]).To(MatchFields(IgnoreExtras, Fields{
			"RunID":           Equal(report.ID),
			"Schema":          Equal("public"),
			"TableName":       Equal("users"),
			"State":           Equal("COMMITTED"),
			"Step":            BeNil(),
			"Error":           BeNil(),
			"RowCount":        BeEquivalentTo(3),
			"Created":         BeTrue(),
			"Snapshot":        PointTo(Equal("5d2a3a8e")),
			"Watermark":       PointTo(Equal(watermark.UTC())),
			"DurationSeconds": BeNumerically("==", 2),
		}))

		Expect(tables[1]).To(MatchFields(IgnoreExtras, Fields{
			"State":    Equal("WATERMARK_READ"),
			"Step":     PointTo(Equal("extract")),
			"Error":    PointTo(Equal("connection reset")),
			"Snapshot": BeNil(),
		}))
	})

	It("records run level errors", func() {
		report.Err = imports.ErrRunInProgress
		run, _ := serialize("lake", "public", report)
		Expect(run.Error).To(PointTo(Equal(imports.ErrRunInProgress.Error())))
	})
})
