package repository

import (
	"context"
	"errors"

	"podocs/internal/model"
)

// ErrNotFound is returned when a lookup by primary key matches no row.
var ErrNotFound = errors.New("record not found")

// DocumentRepository defines data access for document records using SQL queries only.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record and returns it with the
	// generated ID and CreatedAt.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// ListByPOID returns every document of a purchase order, oldest first.
	ListByPOID(ctx context.Context, poID int64) ([]model.Document, error)

	// List returns a paginated list of documents and total rows count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// ListFilePaths returns the artifact path of every record.
	ListFilePaths(ctx context.Context) ([]string, error)
}

// PurchaseOrderRepository reads purchase orders owned by the surrounding system.
type PurchaseOrderRepository interface {
	FindByID(ctx context.Context, poID int64) (*model.PurchaseOrder, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
