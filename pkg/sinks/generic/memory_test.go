package generic_test

import (
	"context"
	"fmt"

	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"
	"github.com/lawrencejones/pglake/pkg/sinks/generic/generictest"

	. "github.com/onsi/ginkgo"
)

var _ = Describe("Memory", func() {
	tableCount := 0
	nextTable := func() changelog.Table {
		tableCount++
		return changelog.Table{Schema: "bronze", TableName: fmt.Sprintf("example_%d", tableCount)}
	}

	generictest.VerifyDestination(generictest.Suite{
		New: func(context.Context) generic.Destination {
			return generic.NewMemory()
		},
		Table: nextTable,
	})

	Describe("when instrumented", func() {
		generictest.VerifyDestination(generictest.Suite{
			New: func(context.Context) generic.Destination {
				return generic.NewInstrumentedDestination(kitlog.NewNopLogger(), "memory", generic.NewMemory())
			},
			Table: nextTable,
		})
	})
})
