// Implements the incremental sync engine. For each table in the source namespace, we read
// the destination watermark, extract rows that changed after it, bootstrap the
// destination table on first sight and append the batch as a new snapshot.
//
// Tables are synced one at a time, and any failure is isolated to the table that caused
// it. The outcome of a run is a Report listing the result of every table.
package imports

import "errors"

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another sync run is in progress")
