package generic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/pkg/errors"
)

var _ Destination = &Memory{}

// Memory is a Destination that keeps everything in process. It is used for tests and dry
// runs, and counts calls so callers can verify which operations were performed.
type Memory struct {
	namespaces map[string]struct{}
	tables     map[changelog.Table]*memoryTable

	// Errors returned by the next call to each operation, if set
	WatermarkErr error
	CreateErr    error
	AppendErr    error

	creates, appends, exists int
	sync.Mutex
}

type memoryTable struct {
	schema  changelog.Schema
	batches []changelog.Batch
}

func NewMemory() *Memory {
	return &Memory{
		namespaces: map[string]struct{}{},
		tables:     map[changelog.Table]*memoryTable{},
	}
}

func (m *Memory) TableExists(ctx context.Context, table changelog.Table) (bool, error) {
	m.Lock()
	defer m.Unlock()

	m.exists++
	_, ok := m.tables[table]
	return ok, nil
}

func (m *Memory) EnsureNamespace(ctx context.Context, namespace string) error {
	m.Lock()
	defer m.Unlock()

	m.namespaces[namespace] = struct{}{}
	return nil
}

func (m *Memory) CreateTableIfNotExists(ctx context.Context, table changelog.Table, schema changelog.Schema) (bool, error) {
	m.Lock()
	defer m.Unlock()

	if err := m.CreateErr; err != nil {
		return false, err
	}

	if _, ok := m.namespaces[table.Schema]; !ok {
		return false, fmt.Errorf("namespace %s does not exist", table.Schema)
	}

	if _, ok := m.tables[table]; ok {
		return false, nil
	}

	m.creates++
	m.tables[table] = &memoryTable{schema: schema}
	return true, nil
}

func (m *Memory) Watermark(ctx context.Context, table changelog.Table, ingestionColumn string) (*time.Time, error) {
	m.Lock()
	defer m.Unlock()

	if err := m.WatermarkErr; err != nil {
		return nil, err
	}

	existing, ok := m.tables[table]
	if !ok {
		return nil, ErrTableNotFound
	}

	var watermark *time.Time
	for _, batch := range existing.batches {
		if ingestedAt := batch.IngestedAt; watermark == nil || ingestedAt.After(*watermark) {
			watermark = &ingestedAt
		}
	}

	return watermark, nil
}

func (m *Memory) Append(ctx context.Context, table changelog.Table, batch changelog.Batch) (Commit, error) {
	m.Lock()
	defer m.Unlock()

	if err := m.AppendErr; err != nil {
		return Commit{}, err
	}

	if err := ValidateBatch(batch); err != nil {
		return Commit{}, err
	}

	existing, ok := m.tables[table]
	if !ok {
		return Commit{}, ErrTableNotFound
	}

	if existing.schema.GetFingerprint() != batch.Schema.GetFingerprint() {
		return Commit{}, errors.Wrapf(ErrSchemaMismatch, "table %s", table)
	}

	m.appends++
	existing.batches = append(existing.batches, batch)

	return Commit{
		Table:     table,
		Snapshot:  fmt.Sprintf("%d", len(existing.batches)),
		Rows:      batch.Len(),
		Watermark: batch.IngestedAt,
	}, nil
}

func (m *Memory) Close() error {
	return nil
}

// Rows returns every row appended to the table, in commit order.
func (m *Memory) Rows(table changelog.Table) []changelog.Row {
	m.Lock()
	defer m.Unlock()

	rows := []changelog.Row{}
	if existing, ok := m.tables[table]; ok {
		for _, batch := range existing.batches {
			rows = append(rows, batch.Rows...)
		}
	}

	return rows
}

// Schema returns the frozen schema of the table, if it exists.
func (m *Memory) Schema(table changelog.Table) (changelog.Schema, bool) {
	m.Lock()
	defer m.Unlock()

	existing, ok := m.tables[table]
	if !ok {
		return changelog.Schema{}, false
	}

	return existing.schema, true
}

// Creates is the number of tables created.
func (m *Memory) Creates() int {
	m.Lock()
	defer m.Unlock()

	return m.creates
}

// Appends is the number of successful appends across all tables.
func (m *Memory) Appends() int {
	m.Lock()
	defer m.Unlock()

	return m.appends
}

// ExistenceChecks is the number of TableExists calls.
func (m *Memory) ExistenceChecks() int {
	m.Lock()
	defer m.Unlock()

	return m.exists
}
