// Package partition splits a range of work item indices across a fixed
// number of workers.
//
// Items are dealt round-robin: item i belongs to worker i%T at position i/T.
// Every worker's list differs in length from any other by at most one, and
// the union of all lists is exactly {0, ..., N-1}.
//
// # Sentinel view
//
// Table.Cells exposes the historical fixed-width layout in which every row
// has N/T+2 columns and unused cells hold NonIndex. New code should range
// over Table.Rows instead.
package partition
