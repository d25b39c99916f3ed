// Package finder maps rows of the research projects table to indexable items
// and drives them into a search index.
//
// Adapter is the source adapter. It builds the eligibility query, pages
// through eligible rows, maps each row to an IndexableItem and forwards items
// to an IndexSink when the content extension is enabled. It never opens a
// connection, caches items or retries a failed call.
//
// Driver is the host loop around an adapter: Setup, GetEligibleCount, then
// GetItems pages with IndexItem for every item, stopping at the first error.
// Removal of rows that are no longer eligible is the driver's concern, done
// through an optional Reconciler on the sink.
package finder
