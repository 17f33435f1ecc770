package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"podocs/internal/model"
	"podocs/internal/repository"
)

type MockPurchaseOrderRepository struct {
	mock.Mock
}

func (m *MockPurchaseOrderRepository) FindByID(ctx context.Context, poID int64) (*model.PurchaseOrder, error) {
	args := m.Called(ctx, poID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseOrder), args.Error(1)
}

var _ repository.PurchaseOrderRepository = (*MockPurchaseOrderRepository)(nil)
