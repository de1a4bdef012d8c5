package imports

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin"
	kitlog "github.com/go-kit/kit/log"
	"golang.org/x/sync/singleflight"
)

type WorkerOptions struct {
	Interval time.Duration
}

func (opt *WorkerOptions) Bind(cmd *kingpin.CmdClause, prefix string) *WorkerOptions {
	cmd.Flag(fmt.Sprintf("%sinterval", prefix), "Interval between sync runs").Default("5m").DurationVar(&opt.Interval)

	return opt
}

// Runner runs a sync, implemented by the Driver.
type Runner interface {
	Run(ctx context.Context) *Report
}

func NewWorker(logger kitlog.Logger, runner Runner, opts WorkerOptions) *Worker {
	return &Worker{
		logger:   logger,
		runner:   runner,
		shutdown: make(chan struct{}),
		done:     make(chan error, 1), // buffered by 1, to ensure progress when reporting an error
		opts:     opts,
	}
}

// Worker runs syncs on an interval, and on demand. Only one run happens at a time in this
// process: concurrent requests for a run share the result of the one in progress.
type Worker struct {
	logger   kitlog.Logger
	runner   Runner
	group    singleflight.Group
	shutdown chan struct{}
	done     chan error
	opts     WorkerOptions
}

func (w *Worker) Start(ctx context.Context) error {
	defer func() {
		close(w.done)
	}()

	w.logger.Log("event", "start", "msg", "starting worker loop", "interval", w.opts.Interval)
	for {
		report, shared := w.Sync(ctx)
		w.logger.Log("event", "sync.complete", "run_id", report.ID, "shared", shared, "ok", report.OK())

		select {
		case <-ctx.Done():
			w.logger.Log("event", "finish", "msg", "context expired, finishing sync")
			return ctx.Err()
		case <-w.shutdown:
			w.logger.Log("event", "shutdown", "msg", "shutdown requested, exiting")
			return nil
		case <-time.After(w.opts.Interval):
			// continue
		}
	}
}

// Sync triggers a run, or joins the run already in progress. Returns whether the report
// was shared with another caller.
func (w *Worker) Sync(ctx context.Context) (*Report, bool) {
	result, _, shared := w.group.Do("sync", func() (interface{}, error) {
		return w.runner.Run(ctx), nil
	})

	return result.(*Report), shared
}

func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-w.done:
		return err
	}
}
