// Package middleware provides the HTTP observability stack for the serve command.
package middleware

import (
	"net/http"
	"strings"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	kitlog "github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/lawrencejones/pglake/internal/telem"
	"go.opencensus.io/plugin/ochttp"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client supplied request IDs
const maxRequestIDLength = 128

// ObserveHTTP configures a standard HTTP o11y stack. The handler wrappers are run in
// reverse order that they are applied, which means we have to 'wrap' our custom behaviour
// before any of the vendor middleware that it depends on.
func ObserveHTTP(logger kitlog.Logger) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		// Run the custom o11y handler, but only after we've applied the vendored middleware
		// below
		h = observeHTTP(logger)(h)

		// Initialises a Sentry client for the purpose of this request, if Sentry is
		// configured. This permits us to tag or scope any exceptions as appropriate.
		h = sentryhttp.New(sentryhttp.Options{
			Repanic: true, // net/http recovers the panic and closes the connection
		}).Handle(h)

		// Have OpenCensus create new traces for each request
		h = &ochttp.Handler{
			Handler: h,
			// Filter traces for metrics scrapes and health checks, or we start sending a lot
			// of traces!
			IsHealthEndpoint: func(r *http.Request) bool {
				return r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/health")
			},
		}

		return h
	}
}

// observeHTTP should only be called from ObserveHTTP, as that configures the required
// dependencies that need to run before we hit this handler.
func observeHTTP(logger kitlog.Logger) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := RequestID(r)
			w.Header().Set(requestIDHeader, requestID)

			// Stash the logger into the context, so any downstream code can access it. This is
			// the initialisation of a request logger, and first time it's associated with a
			// request ID.
			logger := kitlog.With(logger, "request_id", requestID)
			r = r.WithContext(telem.WithLogger(r.Context(), logger))

			started := time.Now()
			rw := &captureResponse{ResponseWriter: w, StatusCode: http.StatusOK}
			h.ServeHTTP(rw, r)

			logger.Log(
				"event", "http_request",
				"http_method", r.Method,
				"http_path", r.URL.Path,
				"http_status", rw.StatusCode,
				"http_bytes", rw.ContentLength,
				"http_duration", time.Since(started).Seconds(),
			)
		})
	}
}

// RequestID returns the request ID supplied by the client, or generates a new one.
func RequestID(r *http.Request) string {
	if id := r.Header.Get(requestIDHeader); id != "" && len(id) <= maxRequestIDLength {
		return id
	}

	return uuid.New().String()
}

// captureResponse records the status and size of a response.
type captureResponse struct {
	http.ResponseWriter
	StatusCode    int
	ContentLength int
}

func (w *captureResponse) WriteHeader(code int) {
	w.StatusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureResponse) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.ContentLength += n
	return n, err
}
