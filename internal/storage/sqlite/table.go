// Package sqlite implements the storage.Table collaborator on SQLite.
// One generic items table keyed by (partition_key, sort_key) stands in for
// the managed key-value table the production deployment uses.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/ganot/coursetrace/internal/storage"
)

// Table is a SQLite-backed storage.Table.
type Table struct {
	db *sql.DB
}

// Open creates a new SQLite-backed table at the given path. Use ":memory:"
// for an ephemeral table.
func Open(dataSourceName string) (*Table, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return &Table{db: db}, nil
}

// Migrate creates the items table.
func (t *Table) Migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS items (
    partition_key TEXT NOT NULL,
    sort_key TEXT NOT NULL,
    attributes TEXT NOT NULL DEFAULT '{}',
    document BLOB,
    PRIMARY KEY (partition_key, sort_key)
);
CREATE INDEX IF NOT EXISTS idx_items_sort_key ON items(sort_key);
`
	if _, err := t.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (t *Table) Close() error {
	return t.db.Close()
}

// Put atomically creates or replaces the item at its (partition key, sort
// key) address.
func (t *Table) Put(ctx context.Context, item storage.Item) error {
	attrs, err := json.Marshal(item.Attributes)
	if err != nil {
		return storage.WithStatus(400, fmt.Errorf("encoding attributes: %w", err))
	}

	query := `
		INSERT INTO items (partition_key, sort_key, attributes, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (partition_key, sort_key)
		DO UPDATE SET attributes = excluded.attributes, document = excluded.document
	`
	if _, err := t.db.ExecContext(ctx, query, item.PartitionKey, item.SortKey, string(attrs), item.Document); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// Get retrieves one item, or storage.ErrNotFound.
func (t *Table) Get(ctx context.Context, partitionKey, sortKey string) (storage.Item, error) {
	query := `SELECT attributes, document FROM items WHERE partition_key = ? AND sort_key = ?`

	var attrs string
	var doc []byte
	err := t.db.QueryRowContext(ctx, query, partitionKey, sortKey).Scan(&attrs, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Item{}, storage.WithStatus(404, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Item{}, fmt.Errorf("failed to get item: %w", err)
	}

	item := storage.Item{PartitionKey: partitionKey, SortKey: sortKey, Document: doc}
	if err := json.Unmarshal([]byte(attrs), &item.Attributes); err != nil {
		return storage.Item{}, fmt.Errorf("decoding attributes: %w", err)
	}
	return item, nil
}

// Delete removes an item. Deleting a missing item is not an error.
func (t *Table) Delete(ctx context.Context, partitionKey, sortKey string) error {
	query := `DELETE FROM items WHERE partition_key = ? AND sort_key = ?`
	if _, err := t.db.ExecContext(ctx, query, partitionKey, sortKey); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// Query scans one partition in sort-key order, applying the predicate
// filter. The continuation token is the last returned sort key.
func (t *Table) Query(ctx context.Context, partitionKey string, q storage.Query) (storage.Page, error) {
	pred, err := compile(q.Filter)
	if err != nil {
		return storage.Page{}, storage.WithStatus(400, err)
	}

	query := `
		SELECT sort_key, attributes, document
		FROM items
		WHERE partition_key = ? AND sort_key > ?
		ORDER BY sort_key ASC
	`
	rows, err := t.db.QueryContext(ctx, query, partitionKey, q.StartToken)
	if err != nil {
		return storage.Page{}, fmt.Errorf("failed to query partition: %w", err)
	}
	defer rows.Close()

	var page storage.Page
	for rows.Next() {
		var sortKey, attrs string
		var doc []byte
		if err := rows.Scan(&sortKey, &attrs, &doc); err != nil {
			return storage.Page{}, fmt.Errorf("failed to scan item: %w", err)
		}

		item := storage.Item{PartitionKey: partitionKey, SortKey: sortKey, Document: doc}
		if err := json.Unmarshal([]byte(attrs), &item.Attributes); err != nil {
			return storage.Page{}, fmt.Errorf("decoding attributes: %w", err)
		}
		if !pred(item) {
			continue
		}

		if q.Limit > 0 && len(page.Items) >= q.Limit {
			// One more match exists beyond the page boundary.
			page.NextToken = page.Items[len(page.Items)-1].SortKey
			return page, nil
		}
		page.Items = append(page.Items, item)
	}
	if err := rows.Err(); err != nil {
		return storage.Page{}, fmt.Errorf("error iterating items: %w", err)
	}
	return page, nil
}

// Scan walks the whole table in insertion (rowid) order, applying the
// predicate filter. The continuation token is the last examined rowid.
func (t *Table) Scan(ctx context.Context, q storage.Query) (storage.Page, error) {
	pred, err := compile(q.Filter)
	if err != nil {
		return storage.Page{}, storage.WithStatus(400, err)
	}

	startRow := int64(0)
	if q.StartToken != "" {
		startRow, err = strconv.ParseInt(q.StartToken, 10, 64)
		if err != nil {
			return storage.Page{}, storage.WithStatus(400, storage.ErrBadToken)
		}
	}

	query := `
		SELECT rowid, partition_key, sort_key, attributes, document
		FROM items
		WHERE rowid > ?
		ORDER BY rowid ASC
	`
	rows, err := t.db.QueryContext(ctx, query, startRow)
	if err != nil {
		return storage.Page{}, fmt.Errorf("failed to scan table: %w", err)
	}
	defer rows.Close()

	var page storage.Page
	var lastMatchRow int64
	for rows.Next() {
		var rowid int64
		var item storage.Item
		var attrs string
		if err := rows.Scan(&rowid, &item.PartitionKey, &item.SortKey, &attrs, &item.Document); err != nil {
			return storage.Page{}, fmt.Errorf("failed to scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &item.Attributes); err != nil {
			return storage.Page{}, fmt.Errorf("decoding attributes: %w", err)
		}
		if !pred(item) {
			continue
		}

		if q.Limit > 0 && len(page.Items) >= q.Limit {
			page.NextToken = strconv.FormatInt(lastMatchRow, 10)
			return page, nil
		}
		page.Items = append(page.Items, item)
		lastMatchRow = rowid
	}
	if err := rows.Err(); err != nil {
		return storage.Page{}, fmt.Errorf("error iterating items: %w", err)
	}
	return page, nil
}
