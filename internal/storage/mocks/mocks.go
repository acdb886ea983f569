// Package mocks provides testify mocks for the storage collaborator.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ganot/coursetrace/internal/storage"
)

// Table is a mock for storage.Table.
type Table struct {
	mock.Mock
}

func (m *Table) Put(ctx context.Context, item storage.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *Table) Get(ctx context.Context, partitionKey, sortKey string) (storage.Item, error) {
	args := m.Called(ctx, partitionKey, sortKey)
	if item, ok := args.Get(0).(storage.Item); ok {
		return item, args.Error(1)
	}
	return storage.Item{}, args.Error(1)
}

func (m *Table) Delete(ctx context.Context, partitionKey, sortKey string) error {
	args := m.Called(ctx, partitionKey, sortKey)
	return args.Error(0)
}

func (m *Table) Query(ctx context.Context, partitionKey string, q storage.Query) (storage.Page, error) {
	args := m.Called(ctx, partitionKey, q)
	if page, ok := args.Get(0).(storage.Page); ok {
		return page, args.Error(1)
	}
	return storage.Page{}, args.Error(1)
}

func (m *Table) Scan(ctx context.Context, q storage.Query) (storage.Page, error) {
	args := m.Called(ctx, q)
	if page, ok := args.Get(0).(storage.Page); ok {
		return page, args.Error(1)
	}
	return storage.Page{}, args.Error(1)
}
