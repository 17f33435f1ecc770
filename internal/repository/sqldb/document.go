package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"podocs/internal/database"
	"podocs/internal/model"
	"podocs/internal/repository"
)

const documentColumns = `document_id, po_id, file_path, file_name, document_type, created_by, notes, created_at`

// DocumentStore is a database/sql implementation of repository.DocumentRepository.
// Queries use $n placeholders in ascending order so the same text runs on
// PostgreSQL and SQLite. Every call goes through the retry executor.
type DocumentStore struct {
	q database.Querier
}

// NewDocumentStore creates a new DocumentStore repository.
func NewDocumentStore(q database.Querier) *DocumentStore {
	return &DocumentStore{q: q}
}

var _ repository.DocumentRepository = (*DocumentStore)(nil)

// Create inserts a new document row and returns the stored record.
func (r *DocumentStore) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO purchase_order_documents (po_id, file_path, file_name, document_type, created_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + documentColumns

	var out *model.Document
	err := r.q.Run(ctx, database.Query(q, func(rows *sql.Rows) error {
		out = nil
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return sql.ErrNoRows
		}
		d, err := scanDocument(rows)
		if err != nil {
			return err
		}
		out = d
		return nil
	},
		doc.POID,
		doc.FilePath,
		doc.FileName,
		doc.DocumentType,
		doc.CreatedBy,
		nullString(doc.Notes),
	))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentStore) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM purchase_order_documents
		WHERE document_id = $1
	`
	var out *model.Document
	err := r.q.Run(ctx, database.Query(q, func(rows *sql.Rows) error {
		out = nil
		if !rows.Next() {
			return nil
		}
		d, err := scanDocument(rows)
		if err != nil {
			return err
		}
		out = d
		return nil
	}, id))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: document %d", repository.ErrNotFound, id)
	}
	return out, nil
}

// ListByPOID returns a purchase order's documents in insertion order.
func (r *DocumentStore) ListByPOID(ctx context.Context, poID int64) ([]model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM purchase_order_documents
		WHERE po_id = $1
		ORDER BY created_at ASC, document_id ASC
	`
	var items []model.Document
	err := r.q.Run(ctx, database.Query(q, func(rows *sql.Rows) error {
		var err error
		items, err = scanDocuments(rows)
		return err
	}, poID))
	if err != nil {
		return nil, err
	}
	return items, nil
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentStore) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	// Count total rows
	const qCount = `SELECT COUNT(*) FROM purchase_order_documents`
	var total int
	err := r.q.Run(ctx, database.Query(qCount, func(rows *sql.Rows) error {
		total = 0
		if rows.Next() {
			return rows.Scan(&total)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}

	// Fetch page
	const qList = `
		SELECT ` + documentColumns + `
		FROM purchase_order_documents
		ORDER BY document_id ASC
		LIMIT $1 OFFSET $2
	`
	var items []model.Document
	err = r.q.Run(ctx, database.Query(qList, func(rows *sql.Rows) error {
		var err error
		items, err = scanDocuments(rows)
		return err
	}, pq.Limit, pq.Offset))
	if err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// ListFilePaths returns the file_path column of every record.
func (r *DocumentStore) ListFilePaths(ctx context.Context) ([]string, error) {
	const q = `SELECT file_path FROM purchase_order_documents`
	var paths []string
	err := r.q.Run(ctx, database.Query(q, func(rows *sql.Rows) error {
		paths = make([]string, 0)
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			paths = append(paths, p)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func scanDocuments(rows *sql.Rows) ([]model.Document, error) {
	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	return items, nil
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var (
		d     model.Document
		notes sql.NullString
	)
	if err := rows.Scan(
		&d.ID,
		&d.POID,
		&d.FilePath,
		&d.FileName,
		&d.DocumentType,
		&d.CreatedBy,
		&notes,
		timestamp{&d.CreatedAt},
	); err != nil {
		return nil, err
	}
	d.Notes = notes.String
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
