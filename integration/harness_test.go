package integration

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/lake"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gexec"
)

// Harness runs the pglake binary against a warehouse in a temporary directory, syncing
// one source schema into one lake namespace.
type Harness struct {
	Warehouse       string
	SourceNamespace string
	LakeNamespace   string
}

func NewHarness(sourceNamespace, lakeNamespace string) *Harness {
	dir, err := os.MkdirTemp("", "pglake-warehouse-")
	Expect(err).NotTo(HaveOccurred())

	return &Harness{
		Warehouse:       fmt.Sprintf("file://%s", dir),
		SourceNamespace: sourceNamespace,
		LakeNamespace:   lakeNamespace,
	}
}

func (h *Harness) Cleanup() {
	Expect(os.RemoveAll(h.Warehouse[len("file://"):])).To(Succeed())
}

func (h *Harness) args(command string, extra ...string) []string {
	return append([]string{
		command,
		"--source.namespace", h.SourceNamespace,
		"--destination", "lake",
		"--lake.warehouse", h.Warehouse,
		"--lake.namespace", h.LakeNamespace,
		"--lake.compression", "gzip",
	}, extra...)
}

// Sync runs a sync to completion, returning the finished session
func (h *Harness) Sync(extra ...string) *gexec.Session {
	By(fmt.Sprintf("running pglake sync %v", extra))
	session, err := gexec.Start(exec.Command(binary, h.args("sync", extra...)...), GinkgoWriter, GinkgoWriter)
	Expect(err).NotTo(HaveOccurred())

	Eventually(session, 30*time.Second).Should(gexec.Exit())
	return session
}

// Serve starts pglake serve, and waits for it to answer health checks
func (h *Harness) Serve(extra ...string) (*gexec.Session, string) {
	var serveAddress string
	{
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		serveAddress = listener.Addr().String()
		listener.Close()
	}

	args := h.args("serve", append([]string{"--listen-address", serveAddress}, extra...)...)

	By("starting pglake serve")
	session, err := gexec.Start(exec.Command(binary, args...), GinkgoWriter, GinkgoWriter)
	Expect(err).NotTo(HaveOccurred())

	baseURL := fmt.Sprintf("http://%s", serveAddress)
	Eventually(func() error {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return nil
	}, 15*time.Second, 250*time.Millisecond).Should(Succeed())

	return session, baseURL
}

// Lake opens the lake the binary writes to, so tests can inspect what was committed
func (h *Harness) Lake(ctx context.Context, catalog lake.Catalog) *lake.Lake {
	lk, err := lake.Open(ctx, logger, catalog, lake.Options{
		Warehouse:   h.Warehouse,
		Branch:      "main",
		Namespace:   h.LakeNamespace,
		Compression: "gzip",
	})
	Expect(err).NotTo(HaveOccurred())

	return lk
}

func (h *Harness) Table(name string) changelog.Table {
	return changelog.Table{Schema: h.LakeNamespace, TableName: name}
}
