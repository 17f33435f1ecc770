package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"podocs/internal/storage"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) EnsureDirectory(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Write(ctx context.Context, name string, r io.Reader) (string, error) {
	args := m.Called(ctx, name, r)
	if f, ok := args.Get(0).(func(context.Context, string, io.Reader) string); ok {
		return f(ctx, name, r), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

func (m *MockStore) Read(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ObjectInfo), args.Error(1)
}

func (m *MockStore) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

var _ storage.Store = (*MockStore)(nil)
