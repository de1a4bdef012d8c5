// Package runs guards against overlapping sync runs, and keeps a history of each run and
// the outcome of every table within it. Both live in the catalog database.
package runs
