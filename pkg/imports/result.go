package imports

import (
	"time"

	"github.com/google/uuid"
)

// Step names the stage of the per-table pipeline, used to tag where a table failed.
type Step string

const (
	StepWatermark Step = "watermark"
	StepExtract   Step = "extract"
	StepBootstrap Step = "bootstrap"
	StepCommit    Step = "commit"
)

// State is how far a table progressed through the pipeline:
//
//	START -> WATERMARK_READ -> EXTRACTED -> EMPTY
//	                                    -> BOOTSTRAPPED -> COMMITTED
type State string

const (
	StateStart         State = "START"
	StateWatermarkRead State = "WATERMARK_READ"
	StateExtracted     State = "EXTRACTED"
	StateEmpty         State = "EMPTY"
	StateBootstrapped  State = "BOOTSTRAPPED"
	StateCommitted     State = "COMMITTED"
)

// Result is the outcome of syncing one table. When Err is set, Step is the step that
// failed and State is the last state reached.
type Result struct {
	Table      TableDescriptor
	State      State
	Step       Step
	Err        error
	Watermark  *time.Time    // watermark read from the destination, nil if never synced
	IngestedAt *time.Time    // ingestion time of the committed batch
	Rows       int           // rows extracted
	Created    bool          // whether the destination table was created
	Snapshot   string        // destination version created by the commit
	Duration   time.Duration // time spent on the table
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// Done is true when the table finished without error, whether or not it had rows.
func (r Result) Done() bool {
	return r.Err == nil && (r.State == StateEmpty || r.State == StateCommitted)
}

// Report is the outcome of a run over every table. Err is set only when the run could
// not get as far as syncing tables, such as failing to list them.
type Report struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
	Results    []Result
}

func NewReport() *Report {
	return &Report{ID: uuid.New(), StartedAt: time.Now()}
}

// Failed returns results of tables that failed.
func (r *Report) Failed() []Result {
	failed := []Result{}
	for _, result := range r.Results {
		if result.Failed() {
			failed = append(failed, result)
		}
	}

	return failed
}

// OK is true only if the run completed and every table succeeded.
func (r *Report) OK() bool {
	return r.Err == nil && len(r.Failed()) == 0
}

// Committed returns results of tables that committed a new snapshot.
func (r *Report) Committed() []Result {
	committed := []Result{}
	for _, result := range r.Results {
		if result.State == StateCommitted && result.Err == nil {
			committed = append(committed, result)
		}
	}

	return committed
}

func (r *Report) Rows() int {
	count := 0
	for _, result := range r.Committed() {
		count += result.Rows
	}

	return count
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
