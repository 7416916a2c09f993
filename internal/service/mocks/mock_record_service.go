package mocks

import (
	"context"

	"imagevariants/internal/model"
	"imagevariants/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockRecordService struct {
	mock.Mock
}

func (m *MockRecordService) Create(ctx context.Context, entity string, in service.RecordInput) (*service.RecordView, error) {
	args := m.Called(ctx, entity, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecordView), args.Error(1)
}

func (m *MockRecordService) Update(ctx context.Context, entity, id string, in service.RecordInput) (*service.RecordView, error) {
	args := m.Called(ctx, entity, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecordView), args.Error(1)
}

func (m *MockRecordService) Get(ctx context.Context, entity, id string) (*service.RecordView, error) {
	args := m.Called(ctx, entity, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecordView), args.Error(1)
}

func (m *MockRecordService) List(ctx context.Context, entity string, limit, offset int) (*service.RecordListResult, error) {
	args := m.Called(ctx, entity, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecordListResult), args.Error(1)
}

func (m *MockRecordService) Delete(ctx context.Context, entity, id string) error {
	args := m.Called(ctx, entity, id)
	return args.Error(0)
}

func (m *MockRecordService) Paths(ctx context.Context, entity string) (*model.PathTree, error) {
	args := m.Called(ctx, entity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PathTree), args.Error(1)
}
