// Defines the Batch, an ordered set of rows extracted from a single Postgres table in one
// sync cycle, along with the Schema that describes the shape of those rows. A batch is
// the unit of work that destinations commit, and is discarded once committed.
//
// Use pkg/source to extract batches from Postgres, and pkg/sinks to commit them.
package changelog
