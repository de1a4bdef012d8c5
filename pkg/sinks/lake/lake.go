// Package lake implements a versioned, append-only table store. Each table is a chain of
// snapshots on a branch, where every snapshot adds one immutable data file to the
// warehouse. The catalog records the chain and the head of each branch, and commits by
// advancing the head with a compare-and-swap.
package lake

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/alecthomas/kingpin"
	kitlog "github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/lawrencejones/pglake/internal/telem"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"
	"github.com/lawrencejones/pglake/pkg/sinks/lake/codecs"
	"github.com/lawrencejones/pglake/pkg/sinks/lake/store"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// ErrSchemaMismatch is returned when appending a batch whose columns differ from the
// table's frozen schema.
var ErrSchemaMismatch = generic.ErrSchemaMismatch

type Options struct {
	Warehouse    string
	Branch       string
	Namespace    string
	Compression  string
	PathTemplate string

	// IngestionColumn is recorded against each table on creation, and must match the
	// column requested when reading watermarks. Defaults to ingestion_timestamp.
	IngestionColumn string
}

func (opt *Options) Bind(cmd *kingpin.CmdClause, prefix string) *Options {
	cmd.Flag(fmt.Sprintf("%swarehouse", prefix), "Warehouse URL for data files (file:///path, s3://bucket/prefix, gs://bucket/prefix, mem://name)").
		Default("file:///var/lib/pglake/warehouse").StringVar(&opt.Warehouse)
	cmd.Flag(fmt.Sprintf("%sbranch", prefix), "Branch to commit snapshots to").
		Default("main").StringVar(&opt.Branch)
	cmd.Flag(fmt.Sprintf("%snamespace", prefix), "Lake namespace tables are synced into").
		Default("bronze").StringVar(&opt.Namespace)
	cmd.Flag(fmt.Sprintf("%scompression", prefix), "Compression codec for data files").
		Default(string(codecs.Zstd)).EnumVar(&opt.Compression, codecs.All...)
	cmd.Flag(fmt.Sprintf("%spath-template", prefix), "Template for data file paths, with sprig functions").
		Default(DefaultPathTemplate).StringVar(&opt.PathTemplate)

	return opt
}

var _ generic.Destination = &Lake{}

type Lake struct {
	logger     kitlog.Logger
	catalog    Catalog
	store      store.Store
	codec      codecs.Codec
	paths      *pathTemplate
	serializer changelog.Serializer
	opts       Options
}

// Open connects to the warehouse and returns a lake backed by the catalog.
func Open(ctx context.Context, logger kitlog.Logger, catalog Catalog, opts Options) (*Lake, error) {
	st, err := store.Open(ctx, opts.Warehouse)
	if err != nil {
		return nil, err
	}

	return New(logger, catalog, st, opts)
}

func New(logger kitlog.Logger, catalog Catalog, st store.Store, opts Options) (*Lake, error) {
	codec, err := codecs.Parse(opts.Compression)
	if err != nil {
		return nil, err
	}

	if opts.PathTemplate == "" {
		opts.PathTemplate = DefaultPathTemplate
	}

	paths, err := parsePathTemplate(opts.PathTemplate)
	if err != nil {
		return nil, err
	}

	if opts.Branch == "" {
		return nil, fmt.Errorf("lake branch is required")
	}

	if opts.IngestionColumn == "" {
		opts.IngestionColumn = "ingestion_timestamp"
	}

	logger = kitlog.With(logger, "component", "lake", "provider", st.Provider(), "branch", opts.Branch)

	return &Lake{
		logger:     logger,
		catalog:    catalog,
		store:      st,
		codec:      codec,
		paths:      paths,
		serializer: changelog.DefaultSerializer,
		opts:       opts,
	}, nil
}

func (l *Lake) TableExists(ctx context.Context, table changelog.Table) (bool, error) {
	_, err := l.catalog.GetTable(ctx, table)
	if errors.Is(err, generic.ErrTableNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (l *Lake) EnsureNamespace(ctx context.Context, namespace string) error {
	return l.catalog.EnsureNamespace(ctx, namespace)
}

func (l *Lake) CreateTableIfNotExists(ctx context.Context, table changelog.Table, schema changelog.Schema) (bool, error) {
	if _, ok := schema.Column(l.opts.IngestionColumn); !ok {
		return false, fmt.Errorf("schema for %s is missing ingestion column %s", table, l.opts.IngestionColumn)
	}

	entry, created, err := l.catalog.CreateTable(ctx, TableEntry{
		Namespace:       table.Schema,
		Name:            table.TableName,
		Schema:          schema,
		IngestionColumn: l.opts.IngestionColumn,
		Location:        l.store.URL(path.Join(table.Schema, table.TableName)),
	})
	if err != nil {
		return false, err
	}

	if created {
		l.logger.Log("event", "table.created", "table", table, "id", entry.ID,
			"location", entry.Location, "fingerprint", schema.GetFingerprint())
	}

	return created, nil
}

// Watermark is the watermark of the head snapshot, which is the latest ingestion time on
// the branch as ingestion times only increase.
func (l *Lake) Watermark(ctx context.Context, table changelog.Table, ingestionColumn string) (*time.Time, error) {
	entry, err := l.catalog.GetTable(ctx, table)
	if err != nil {
		return nil, err
	}

	if entry.IngestionColumn != ingestionColumn {
		return nil, fmt.Errorf("table %s records ingestion in %s, not %s", table, entry.IngestionColumn, ingestionColumn)
	}

	head, err := l.catalog.Head(ctx, entry.ID, l.opts.Branch)
	if err != nil || head == nil {
		return nil, err
	}

	watermark := head.Watermark.UTC()
	return &watermark, nil
}

// Append writes the data file before committing, so a snapshot never references a
// missing file. If the commit fails the file is unreferenced and removed.
func (l *Lake) Append(ctx context.Context, table changelog.Table, batch changelog.Batch) (generic.Commit, error) {
	ctx, span, logger := telem.StartSpan(ctx, "pkg/sinks/lake.Lake.Append")
	defer span.End()

	logger = kitlog.With(logger, "table", table)

	if err := generic.ValidateBatch(batch); err != nil {
		return generic.Commit{}, err
	}

	entry, err := l.catalog.GetTable(ctx, table)
	if err != nil {
		return generic.Commit{}, err
	}

	if entry.Schema.GetFingerprint() != batch.Schema.GetFingerprint() {
		return generic.Commit{}, errors.Wrapf(ErrSchemaMismatch, "table %s", table)
	}

	head, err := l.catalog.Head(ctx, entry.ID, l.opts.Branch)
	if err != nil {
		return generic.Commit{}, err
	}

	snapshot := Snapshot{
		ID:          uuid.New(),
		TableID:     entry.ID,
		Branch:      l.opts.Branch,
		Watermark:   batch.IngestedAt.UTC(),
		Rows:        int64(batch.Len()),
		Compression: l.codec,
	}
	if head != nil {
		snapshot.ParentID = &head.ID
	}

	snapshot.DataFile, err = l.paths.Render(PathData{
		Namespace:  table.Schema,
		Table:      table.TableName,
		Branch:     l.opts.Branch,
		Snapshot:   snapshot.ID.String(),
		Extension:  l.codec.Extension(),
		IngestedAt: snapshot.Watermark,
	})
	if err != nil {
		return generic.Commit{}, err
	}

	content, err := encodeDataFile(l.serializer, l.codec, entry.Schema, batch.Rows)
	if err != nil {
		return generic.Commit{}, err
	}

	snapshot.DataFileBytes = int64(len(content))
	span.AddAttributes(
		trace.StringAttribute("snapshot", snapshot.ID.String()),
		trace.Int64Attribute("bytes", snapshot.DataFileBytes),
	)

	// Committed data files are immutable, whatever the path template renders
	exists, err := l.store.Exists(ctx, snapshot.DataFile)
	if err != nil {
		return generic.Commit{}, errors.Wrap(err, "failed to check data file")
	}
	if exists {
		return generic.Commit{}, errors.Errorf("data file %s already exists", l.store.URL(snapshot.DataFile))
	}

	if err := l.store.Put(ctx, snapshot.DataFile, content); err != nil {
		return generic.Commit{}, errors.Wrap(err, "failed to write data file")
	}

	if err := l.catalog.Commit(ctx, snapshot); err != nil {
		logger.Log("event", "snapshot.abort", "snapshot", snapshot.ID, "error", err)
		if removeErr := l.store.Remove(ctx, snapshot.DataFile); removeErr != nil {
			logger.Log("event", "data_file.orphaned", "path", l.store.URL(snapshot.DataFile), "error", removeErr)
		}

		return generic.Commit{}, err
	}

	logger.Log("event", "snapshot.committed", "snapshot", snapshot.ID, "rows", snapshot.Rows,
		"bytes", snapshot.DataFileBytes, "path", l.store.URL(snapshot.DataFile))

	return generic.Commit{
		Table:     table,
		Snapshot:  snapshot.ID.String(),
		Rows:      batch.Len(),
		Watermark: snapshot.Watermark,
	}, nil
}

// Tables lists every table in the namespace.
func (l *Lake) Tables(ctx context.Context, namespace string) ([]TableEntry, error) {
	return l.catalog.ListTables(ctx, namespace)
}

// History returns the snapshots on the configured branch, newest first.
func (l *Lake) History(ctx context.Context, table changelog.Table) ([]Snapshot, error) {
	entry, err := l.catalog.GetTable(ctx, table)
	if err != nil {
		return nil, err
	}

	return l.catalog.History(ctx, entry.ID, l.opts.Branch)
}

// Scan reads every row visible at the head of the configured branch, in commit order.
func (l *Lake) Scan(ctx context.Context, table changelog.Table) ([]changelog.Row, error) {
	ctx, span, _ := telem.StartSpan(ctx, "pkg/sinks/lake.Lake.Scan")
	defer span.End()

	entry, err := l.catalog.GetTable(ctx, table)
	if err != nil {
		return nil, err
	}

	history, err := l.catalog.History(ctx, entry.ID, l.opts.Branch)
	if err != nil {
		return nil, err
	}

	rows := []changelog.Row{}
	for idx := len(history) - 1; idx >= 0; idx-- {
		snapshotRows, err := readDataFile(ctx, l.store, l.serializer, entry.Schema, history[idx])
		if err != nil {
			return nil, err
		}

		rows = append(rows, snapshotRows...)
	}

	return rows, nil
}

// Store exposes the warehouse, for callers that display data file locations.
func (l *Lake) Store() store.Store {
	return l.store
}

func (l *Lake) Close() error {
	return l.catalog.Close()
}
