package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"podocs/internal/database"
	"podocs/internal/model"
	"podocs/internal/repository"
)

// PurchaseOrderStore reads the purchase_orders table.
type PurchaseOrderStore struct {
	q database.Querier
}

// NewPurchaseOrderStore creates a new PurchaseOrderStore repository.
func NewPurchaseOrderStore(q database.Querier) *PurchaseOrderStore {
	return &PurchaseOrderStore{q: q}
}

var _ repository.PurchaseOrderRepository = (*PurchaseOrderStore)(nil)

// FindByID fetches a purchase order by its ID.
func (r *PurchaseOrderStore) FindByID(ctx context.Context, poID int64) (*model.PurchaseOrder, error) {
	const q = `SELECT po_id, po_number, status FROM purchase_orders WHERE po_id = $1`
	var out *model.PurchaseOrder
	err := r.q.Run(ctx, database.Query(q, func(rows *sql.Rows) error {
		out = nil
		if !rows.Next() {
			return nil
		}
		var po model.PurchaseOrder
		if err := rows.Scan(&po.ID, &po.Number, &po.Status); err != nil {
			return err
		}
		out = &po
		return nil
	}, poID))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: purchase order %d", repository.ErrNotFound, poID)
	}
	return out, nil
}
