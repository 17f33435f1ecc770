package sqldb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podocs/internal/model"
	"podocs/internal/repository"
	"podocs/internal/testutil"
)

func TestPurchaseOrderStore_FindByID(t *testing.T) {
	exec := testutil.SQLite(t)
	testutil.SeedPurchaseOrder(t, exec, 123, "PO-2023-001", "approved")
	repo := NewPurchaseOrderStore(exec)

	po, err := repo.FindByID(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, &model.PurchaseOrder{ID: 123, Number: "PO-2023-001", Status: "approved"}, po)

	po, err = repo.FindByID(context.Background(), 99999)
	assert.Nil(t, po)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
