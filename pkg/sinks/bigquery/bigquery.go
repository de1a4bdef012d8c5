// Package bigquery syncs tables into BigQuery, where each destination namespace is a
// dataset. Batches are appended with load jobs, which are atomic: either every row of the
// batch is loaded or none are.
package bigquery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/generic"

	bq "cloud.google.com/go/bigquery"
	"github.com/alecthomas/kingpin"
	kitlog "github.com/go-kit/kit/log"
	"google.golang.org/api/googleapi"
)

type Options struct {
	ProjectID                     string
	Dataset                       string
	DatasetDefaultTableExpiration time.Duration
	Location                      string

	// IngestionColumn partitions each table, and must be present in every schema
	IngestionColumn string
}

func (opt *Options) Bind(cmd *kingpin.CmdClause, prefix string) *Options {
	cmd.Flag(fmt.Sprintf("%sproject", prefix), "Google Project ID").StringVar(&opt.ProjectID)
	cmd.Flag(fmt.Sprintf("%sdataset", prefix), "BigQuery dataset tables are synced into").StringVar(&opt.Dataset)
	cmd.Flag(fmt.Sprintf("%sdataset-default-table-expiration", prefix), "BigQuery dataset default table expiration, applied only if creating the dataset").
		DurationVar(&opt.DatasetDefaultTableExpiration)
	cmd.Flag(fmt.Sprintf("%slocation", prefix), "BigQuery dataset location").Default("EU").StringVar(&opt.Location)

	return opt
}

var _ generic.Destination = &BigQuery{}

type BigQuery struct {
	logger kitlog.Logger
	client *bq.Client
	opts   Options
}

func New(ctx context.Context, logger kitlog.Logger, opts Options) (*BigQuery, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("BigQuery project is required")
	}

	client, err := bq.NewClient(ctx, opts.ProjectID)
	if err != nil {
		return nil, err
	}

	if opts.IngestionColumn == "" {
		opts.IngestionColumn = "ingestion_timestamp"
	}

	logger = kitlog.With(logger, "component", "bigquery", "project", opts.ProjectID, "location", opts.Location)
	return &BigQuery{logger: logger, client: client, opts: opts}, nil
}

func (b *BigQuery) table(table changelog.Table) *bq.Table {
	return b.client.Dataset(table.Schema).Table(table.TableName)
}

func (b *BigQuery) TableExists(ctx context.Context, table changelog.Table) (bool, error) {
	md, err := b.table(table).Metadata(ctx)
	if allowNotFound(err) != nil {
		return false, err
	}

	return md != nil, nil
}

// EnsureNamespace creates the dataset if it doesn't exist.
func (b *BigQuery) EnsureNamespace(ctx context.Context, namespace string) error {
	dataset := b.client.Dataset(namespace)
	md, err := dataset.Metadata(ctx)
	if allowNotFound(err) != nil {
		return err
	}

	if md != nil {
		return nil
	}

	b.logger.Log("event", "dataset.create", "dataset", namespace, "msg", "dataset does not exist, creating")
	md = &bq.DatasetMetadata{
		Name:                   namespace,
		Location:               b.opts.Location,
		Description:            "Dataset created by pglake",
		DefaultTableExpiration: b.opts.DatasetDefaultTableExpiration,
	}

	return allowAlreadyExists(dataset.Create(ctx, md))
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}

func allowNotFound(err error) error {
	if isStatus(err, http.StatusNotFound) {
		return nil
	}

	return err
}

func allowAlreadyExists(err error) error {
	if isStatus(err, http.StatusConflict) {
		return nil
	}

	return err
}

func isStatus(err error, code int) bool {
	if err, ok := err.(*googleapi.Error); ok && err.Code == code {
		return true
	}

	return false
}
