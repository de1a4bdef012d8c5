package lake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"
)

var _ Catalog = &MemoryCatalog{}

// MemoryCatalog keeps the catalog in process, for tests and dry runs against a mem://
// warehouse.
type MemoryCatalog struct {
	namespaces map[string]struct{}
	tables     map[changelog.Table]TableEntry
	snapshots  map[uuid.UUID]Snapshot
	refs       map[memoryRef]uuid.UUID
	sequence   int64
	sync.Mutex
}

type memoryRef struct {
	tableID int64
	branch  string
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		namespaces: map[string]struct{}{},
		tables:     map[changelog.Table]TableEntry{},
		snapshots:  map[uuid.UUID]Snapshot{},
		refs:       map[memoryRef]uuid.UUID{},
	}
}

func (c *MemoryCatalog) EnsureNamespace(_ context.Context, namespace string) error {
	c.Lock()
	defer c.Unlock()

	c.namespaces[namespace] = struct{}{}
	return nil
}

func (c *MemoryCatalog) GetTable(_ context.Context, table changelog.Table) (*TableEntry, error) {
	c.Lock()
	defer c.Unlock()

	entry, ok := c.tables[table]
	if !ok {
		return nil, generic.ErrTableNotFound
	}

	return &entry, nil
}

func (c *MemoryCatalog) CreateTable(_ context.Context, entry TableEntry) (*TableEntry, bool, error) {
	c.Lock()
	defer c.Unlock()

	if _, ok := c.namespaces[entry.Namespace]; !ok {
		return nil, false, fmt.Errorf("namespace %s does not exist", entry.Namespace)
	}

	if existing, ok := c.tables[entry.Table()]; ok {
		return &existing, false, nil
	}

	c.sequence++
	entry.ID = c.sequence
	entry.CreatedAt = time.Now()
	c.tables[entry.Table()] = entry

	return &entry, true, nil
}

func (c *MemoryCatalog) ListTables(_ context.Context, namespace string) ([]TableEntry, error) {
	c.Lock()
	defer c.Unlock()

	entries := []TableEntry{}
	for _, entry := range c.tables {
		if entry.Namespace == namespace {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

func (c *MemoryCatalog) Head(_ context.Context, tableID int64, branch string) (*Snapshot, error) {
	c.Lock()
	defer c.Unlock()

	head, ok := c.refs[memoryRef{tableID, branch}]
	if !ok {
		return nil, nil
	}

	snapshot := c.snapshots[head]
	return &snapshot, nil
}

func (c *MemoryCatalog) Commit(_ context.Context, snapshot Snapshot) error {
	c.Lock()
	defer c.Unlock()

	var current *uuid.UUID
	if head, ok := c.refs[memoryRef{snapshot.TableID, snapshot.Branch}]; ok {
		current = &head
	}

	if !sameSnapshot(current, snapshot.ParentID) {
		return ErrConcurrentCommit
	}

	snapshot.CommittedAt = time.Now()
	c.snapshots[snapshot.ID] = snapshot
	c.refs[memoryRef{snapshot.TableID, snapshot.Branch}] = snapshot.ID

	return nil
}

func (c *MemoryCatalog) History(_ context.Context, tableID int64, branch string) ([]Snapshot, error) {
	c.Lock()
	defer c.Unlock()

	head, ok := c.refs[memoryRef{tableID, branch}]
	if !ok {
		return []Snapshot{}, nil
	}

	snapshots := []Snapshot{}
	for _, snapshot := range c.snapshots {
		if snapshot.TableID == tableID && snapshot.Branch == branch {
			snapshots = append(snapshots, snapshot)
		}
	}

	return walkHistory(&head, snapshots), nil
}

func (c *MemoryCatalog) Close() error {
	return nil
}

