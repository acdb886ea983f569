// Package storage defines the record-storage collaborator contract: a
// partition/sort-key addressed table with range scans, predicate filters and
// continuation-token pagination. Implementations live in subpackages.
package storage

import "context"

// Item is a single stored record. Attributes hold the small set of
// filterable fields; Document holds the full payload and is opaque to the
// table.
type Item struct {
	PartitionKey string
	SortKey      string
	Attributes   map[string]string
	Document     []byte
}

// Query describes a bounded read. Filter is a predicate string produced by
// the filter package; an empty Filter matches everything. StartToken resumes
// a previous page and must be a token returned by the same table.
type Query struct {
	Filter     string
	Limit      int
	StartToken string
}

// Page is one page of results. NextToken is empty when the scan is
// exhausted.
type Page struct {
	Items     []Item
	NextToken string
}

// Table is the storage collaborator. Put is an atomic create-or-replace on
// (partition key, sort key); Delete of a missing item is not an error.
// Query scans a single partition in sort-key order; Scan walks the whole
// table in an implementation-defined but stable order.
type Table interface {
	Put(ctx context.Context, item Item) error
	Get(ctx context.Context, partitionKey, sortKey string) (Item, error)
	Delete(ctx context.Context, partitionKey, sortKey string) error
	Query(ctx context.Context, partitionKey string, q Query) (Page, error)
	Scan(ctx context.Context, q Query) (Page, error)
}
