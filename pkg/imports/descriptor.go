package imports

import (
	"fmt"

	"github.com/alecthomas/kingpin"
	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/util"
)

type Options struct {
	SourceNamespace      string   // Postgres schema to sync
	DestinationNamespace string   // namespace (or dataset) tables are synced into
	ChangeColumn         string   // filters and orders deltas
	IngestionColumn      string   // stamped with the time of ingestion
	Include              []string // glob patterns of tables to sync, all if empty
	Exclude              []string // glob patterns of tables to skip
}

func (opt *Options) Bind(cmd *kingpin.CmdClause, prefix string) *Options {
	cmd.Flag(fmt.Sprintf("%schange-column", prefix), "Column that records when each row last changed").
		Default("updated_at").StringVar(&opt.ChangeColumn)
	cmd.Flag(fmt.Sprintf("%singestion-column", prefix), "Column added to destination tables with the ingestion time").
		Default("ingestion_timestamp").StringVar(&opt.IngestionColumn)
	cmd.Flag(fmt.Sprintf("%sinclude", prefix), "Sync only tables matching these glob patterns").
		StringsVar(&opt.Include)
	cmd.Flag(fmt.Sprintf("%sexclude", prefix), "Skip tables matching these glob patterns").
		StringsVar(&opt.Exclude)

	return opt
}

func (opt Options) Filter() util.Filter {
	return util.Filter{Include: opt.Include, Exclude: opt.Exclude}
}

func (opt Options) Validate() error {
	if opt.SourceNamespace == "" {
		return fmt.Errorf("source namespace is required")
	}
	if opt.DestinationNamespace == "" {
		return fmt.Errorf("destination namespace is required")
	}
	if opt.ChangeColumn == "" || opt.IngestionColumn == "" {
		return fmt.Errorf("change and ingestion columns are required")
	}
	if opt.ChangeColumn == opt.IngestionColumn {
		return fmt.Errorf("change column and ingestion column must differ, both are %q", opt.ChangeColumn)
	}

	return opt.Filter().Validate()
}

// Describe builds the descriptor for a source table.
func (opt Options) Describe(table changelog.Table) TableDescriptor {
	return TableDescriptor{
		Name:                 table.TableName,
		SourceNamespace:      table.Schema,
		DestinationNamespace: opt.DestinationNamespace,
		ChangeColumn:         opt.ChangeColumn,
		IngestionColumn:      opt.IngestionColumn,
	}
}

// TableDescriptor identifies a table on both sides of the sync, along with the columns
// that drive incremental extraction. The change column is assumed to never decrease for
// any row, which we don't verify.
type TableDescriptor struct {
	Name                 string `json:"name"`
	SourceNamespace      string `json:"source_namespace"`
	DestinationNamespace string `json:"destination_namespace"`
	ChangeColumn         string `json:"change_column"`
	IngestionColumn      string `json:"ingestion_column"`
}

func (d TableDescriptor) Source() changelog.Table {
	return changelog.Table{Schema: d.SourceNamespace, TableName: d.Name}
}

func (d TableDescriptor) Destination() changelog.Table {
	return changelog.Table{Schema: d.DestinationNamespace, TableName: d.Name}
}

func (d TableDescriptor) String() string {
	return d.Source().String()
}
