package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/lawrencejones/pglake/internal/middleware"
	"github.com/lawrencejones/pglake/pkg/imports"

	kitlog "github.com/go-kit/kit/log"
	"github.com/oklog/run"
)

func runServe(ctx context.Context, shutdown <-chan struct{}, flags *commandFlags) error {
	ws, err := buildWorkspace(ctx, flags, false)
	if err != nil {
		return err
	}
	defer ws.Close()

	var g run.Group

	{
		logger := kitlog.With(logger, "component", "shutdown_handler")

		ctx, cancel := context.WithCancel(ctx)

		// If we're asked to shutdown, we use the rungroup to trigger interrupts for every
		// component
		g.Add(
			func() error {
				select {
				case <-shutdown:
					logger.Log("event", "requesting_shutdown", "msg", "received signal, requesting shutdown")
				case <-ctx.Done():
				}

				return nil
			},
			func(error) {
				cancel() // end the shutdown select
			},
		)
	}

	worker := imports.NewWorker(kitlog.With(logger, "component", "worker"), ws.driver, *serveWorkerOptions)

	{
		g.Add(
			func() error {
				return worker.Start(ctx)
			},
			func(error) {
				ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()

				worker.Shutdown(ctx)
			},
		)
	}

	{
		logger := kitlog.With(logger, "component", "http")

		srv := &http.Server{
			Addr:    *serveAddress,
			Handler: middleware.ObserveHTTP(logger)(buildHandler(worker, ws.runs)),
		}

		g.Add(
			func() error {
				logger.Log("event", "listen", "address", *serveAddress)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}

				return nil
			},
			func(error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			},
		)
	}

	return g.Run()
}
