package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"

	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/internal/telem"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ObserveHTTP", func() {
	var (
		buffer  bytes.Buffer
		handler http.Handler
	)

	BeforeEach(func() {
		buffer.Reset()
		handler = ObserveHTTP(kitlog.NewLogfmtLogger(&buffer))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				telem.LoggerFrom(r.Context()).Log("event", "handler.called")
				w.WriteHeader(http.StatusAccepted)
				w.Write([]byte("ok"))
			}),
		)
	})

	It("logs each request with its outcome", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/sync", nil))

		Expect(rec.Code).To(Equal(http.StatusAccepted))
		Expect(buffer.String()).To(ContainSubstring("event=http_request http_method=POST http_path=/sync http_status=202 http_bytes=2"))
	})

	It("shares the request ID with the handler logger", func() {
		req := httptest.NewRequest("GET", "/runs", nil)
		req.Header.Set("X-Request-ID", "abc123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Header().Get("X-Request-ID")).To(Equal("abc123"))
		Expect(buffer.String()).To(ContainSubstring("request_id=abc123 event=handler.called"))
	})

	It("generates request IDs when the client supplies an invalid one", func() {
		req := httptest.NewRequest("GET", "/runs", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("a", 129))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Header().Get("X-Request-ID")).To(HaveLen(36))
	})
})
