package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lawrencejones/pglake/pkg/imports"
	"github.com/olekukonko/tablewriter"
)

func printReport(out io.Writer, report *imports.Report) {
	var table = tablewriter.NewWriter(out)
	table.SetHeader([]string{"Table", "State", "Rows", "Watermark", "Snapshot", "Duration", "Error"})

	for _, result := range report.Results {
		var errString string
		if result.Err != nil {
			errString = fmt.Sprintf("%s: %v", result.Step, result.Err)
		}

		table.Append([]string{
			result.Table.Destination().String(),
			string(result.State),
			humanize.Comma(int64(result.Rows)),
			formatWatermark(result.Watermark),
			result.Snapshot,
			result.Duration.Round(time.Millisecond).String(),
			errString,
		})
	}
	table.Render()

	status := "ok"
	if !report.OK() {
		status = "failed"
	}

	fmt.Fprintf(out, "run %s %s: %d tables, %d committed, %d failed, %s rows in %s\n",
		report.ID, status, len(report.Results), len(report.Committed()), len(report.Failed()),
		humanize.Comma(int64(report.Rows())), report.Duration().Round(time.Millisecond))

	if report.Err != nil {
		fmt.Fprintf(out, "error: %v\n", report.Err)
	}
}

func printPlans(out io.Writer, plans []imports.Plan) {
	var table = tablewriter.NewWriter(out)
	table.SetHeader([]string{"Source", "Destination", "Exists", "Watermark", "Pending", "Error"})

	for _, plan := range plans {
		var errString string
		if plan.Err != nil {
			errString = plan.Err.Error()
		}

		table.Append([]string{
			plan.Table.Source().String(),
			plan.Table.Destination().String(),
			strconv.FormatBool(plan.Exists),
			formatWatermark(plan.Watermark),
			humanize.Comma(plan.Pending),
			errString,
		})
	}
	table.Render()
}

func printTables(out io.Writer, listings []tableListing, history bool) {
	var table = tablewriter.NewWriter(out)

	var headers = []string{"Table", "Columns", "Snapshots", "Watermark", "Size", "Created"}
	for _, listing := range listings {
		if listing.Rows != nil {
			headers = append(headers, "Rows")
			break
		}
	}
	table.SetHeader(headers)

	for _, listing := range listings {
		var (
			watermark *time.Time
			size      int64
		)

		if len(listing.History) > 0 {
			watermark = &listing.History[0].Watermark
		}
		for _, snapshot := range listing.History {
			size += snapshot.DataFileBytes
		}

		var row = []string{
			listing.Entry.Table().String(),
			strconv.Itoa(len(listing.Entry.Schema.Columns)),
			strconv.Itoa(len(listing.History)),
			formatWatermark(watermark),
			humanize.IBytes(uint64(size)),
			humanize.Time(listing.Entry.CreatedAt),
		}
		if listing.Rows != nil {
			row = append(row, humanize.Comma(int64(*listing.Rows)))
		}

		table.Append(row)
	}
	table.Render()

	if !history {
		return
	}

	for _, listing := range listings {
		fmt.Fprintf(out, "\n%s\n", listing.Entry.Table())

		var snapshots = tablewriter.NewWriter(out)
		snapshots.SetHeader([]string{"Snapshot", "Parent", "Watermark", "Rows", "Size", "Codec", "Data file"})

		for _, snapshot := range listing.History {
			var parent = "<none>"
			if snapshot.ParentID != nil {
				parent = snapshot.ParentID.String()
			}

			snapshots.Append([]string{
				snapshot.ID.String(),
				parent,
				formatWatermark(&snapshot.Watermark),
				humanize.Comma(snapshot.Rows),
				humanize.IBytes(uint64(snapshot.DataFileBytes)),
				snapshot.Compression.String(),
				snapshot.DataFile,
			})
		}
		snapshots.Render()
	}
}

func formatWatermark(watermark *time.Time) string {
	if watermark == nil {
		return "<none>"
	}

	return watermark.UTC().Format(time.RFC3339Nano)
}
