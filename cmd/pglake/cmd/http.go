package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lawrencejones/pglake/internal/telem"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/imports"
	"github.com/lawrencejones/pglake/pkg/runs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// syncer triggers a run, joining any run already in progress
type syncer interface {
	Sync(ctx context.Context) (*imports.Report, bool)
}

type runLister interface {
	List(ctx context.Context, limit int64) ([]runs.Run, error)
}

const defaultRunsLimit = 20

func buildHandler(worker syncer, history runLister) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// A client hanging up must not cancel a run that other callers may have joined
		report, shared := worker.Sync(context.WithoutCancel(r.Context()))
		telem.LoggerFrom(r.Context()).Log("event", "sync.triggered", "run_id", report.ID, "shared", shared, "ok", report.OK())

		status := http.StatusOK
		if !report.OK() {
			status = http.StatusInternalServerError
		}

		writeJSON(w, status, buildReportResponse(report, shared))
	})

	mux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		limit := int64(defaultRunsLimit)
		if param := r.URL.Query().Get("limit"); param != "" {
			parsed, err := strconv.ParseInt(param, 10, 64)
			if err != nil || parsed < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}

			limit = parsed
		}

		found, err := history.List(r.Context(), limit)
		if err != nil {
			telem.LoggerFrom(r.Context()).Log("event", "runs.list_failed", "error", err)
			http.Error(w, "failed to list runs", http.StatusInternalServerError)
			return
		}

		response := []runResponse{}
		for _, run := range found {
			response = append(response, buildRunResponse(run))
		}

		writeJSON(w, http.StatusOK, response)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type reportResponse struct {
	ID         uuid.UUID        `json:"id"`
	Shared     bool             `json:"shared"`
	OK         bool             `json:"ok"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Tables     []resultResponse `json:"tables"`
}

type resultResponse struct {
	Table      string     `json:"table"`
	State      string     `json:"state"`
	Step       string     `json:"step,omitempty"`
	Error      string     `json:"error,omitempty"`
	Rows       int        `json:"rows"`
	Watermark  *time.Time `json:"watermark,omitempty"`
	IngestedAt *time.Time `json:"ingested_at,omitempty"`
	Snapshot   string     `json:"snapshot,omitempty"`
}

func buildReportResponse(report *imports.Report, shared bool) reportResponse {
	response := reportResponse{
		ID:         report.ID,
		Shared:     shared,
		OK:         report.OK(),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Tables:     []resultResponse{},
	}
	if report.Err != nil {
		response.Error = report.Err.Error()
	}

	for _, result := range report.Results {
		table := resultResponse{
			Table:      result.Table.Source().String(),
			State:      string(result.State),
			Rows:       result.Rows,
			Watermark:  result.Watermark,
			IngestedAt: result.IngestedAt,
			Snapshot:   result.Snapshot,
		}
		if result.Err != nil {
			table.Step = string(result.Step)
			table.Error = result.Err.Error()
		}

		response.Tables = append(response.Tables, table)
	}

	return response
}

type runResponse struct {
	ID          uuid.UUID          `json:"id"`
	Destination string             `json:"destination"`
	Namespace   string             `json:"namespace"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Error       *string            `json:"error,omitempty"`
	Tables      []runTableResponse `json:"tables"`
}

type runTableResponse struct {
	Table      string     `json:"table"`
	State      string     `json:"state"`
	Step       *string    `json:"step,omitempty"`
	Error      *string    `json:"error,omitempty"`
	Rows       int64      `json:"rows"`
	Watermark  *time.Time `json:"watermark,omitempty"`
	IngestedAt *time.Time `json:"ingested_at,omitempty"`
	Snapshot   *string    `json:"snapshot,omitempty"`
}

func buildRunResponse(run runs.Run) runResponse {
	response := runResponse{
		ID:          run.ID,
		Destination: run.Destination,
		Namespace:   run.Namespace,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
		Tables:      []runTableResponse{},
	}

	for _, table := range run.Tables {
		response.Tables = append(response.Tables, runTableResponse{
			Table:      changelog.Table{Schema: table.Schema, TableName: table.TableName}.String(),
			State:      table.State,
			Step:       table.Step,
			Error:      table.Error,
			Rows:       table.RowCount,
			Watermark:  table.Watermark,
			IngestedAt: table.IngestedAt,
			Snapshot:   table.Snapshot,
		})
	}

	return response
}
