package imports_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/pkg/imports"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type blockingRunner struct {
	runs    int32
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) *imports.Report {
	atomic.AddInt32(&r.runs, 1)
	<-r.release

	return imports.NewReport()
}

var _ = Describe("Worker", func() {
	var (
		ctx    context.Context
		cancel func()
		runner *blockingRunner
		worker *imports.Worker
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		runner = &blockingRunner{release: make(chan struct{})}
		worker = imports.NewWorker(kitlog.NewLogfmtLogger(GinkgoWriter), runner, imports.WorkerOptions{Interval: time.Hour})
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Sync", func() {
		It("shares a single run between concurrent callers", func() {
			var (
				wg      sync.WaitGroup
				reports = make(chan *imports.Report, 2)
			)

			for idx := 0; idx < 2; idx++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					report, _ := worker.Sync(ctx)
					reports <- report
				}()
			}

			Eventually(func() int32 { return atomic.LoadInt32(&runner.runs) }).Should(BeEquivalentTo(1))
			// Give the second caller a chance to join the in-flight run
			time.Sleep(50 * time.Millisecond)
			close(runner.release)
			wg.Wait()
			close(reports)

			first, second := <-reports, <-reports
			Expect(first).To(BeIdenticalTo(second))
			Expect(atomic.LoadInt32(&runner.runs)).To(BeEquivalentTo(1))
		})
	})

	Describe("Start", func() {
		It("runs immediately and stops on shutdown", func() {
			close(runner.release)

			done := make(chan error)
			go func() {
				done <- worker.Start(ctx)
			}()

			Eventually(func() int32 { return atomic.LoadInt32(&runner.runs) }).Should(BeEquivalentTo(1))
			Expect(worker.Shutdown(ctx)).To(Succeed())
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
