package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"podocs/internal/model"
	"podocs/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) GenerateDocument(ctx context.Context, po model.PurchaseOrder, documentType, actor string) (*model.Document, error) {
	args := m.Called(ctx, po, documentType, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) GenerateForPurchaseOrder(ctx context.Context, poID int64, documentType, actor string) (*model.Document, error) {
	args := m.Called(ctx, poID, documentType, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) AttachDocument(ctx context.Context, poID int64, fileName, documentType, actor string, r io.Reader) (*model.Document, error) {
	args := m.Called(ctx, poID, fileName, documentType, actor, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) GetDocumentsByPOID(ctx context.Context, poID int64) ([]model.Document, error) {
	args := m.Called(ctx, poID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) GetDocumentByID(ctx context.Context, id int64) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) GetDocumentContent(ctx context.Context, id int64) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentService) OpenDocument(ctx context.Context, id int64) (*model.Document, []byte, error) {
	args := m.Called(ctx, id)
	var doc *model.Document
	if args.Get(0) != nil {
		doc = args.Get(0).(*model.Document)
	}
	var content []byte
	if args.Get(1) != nil {
		content = args.Get(1).([]byte)
	}
	return doc, content, args.Error(2)
}

func (m *MockDocumentService) List(ctx context.Context, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

var _ service.DocumentService = (*MockDocumentService)(nil)
