// Package mocks provides test doubles for the feed source.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/damsync/internal/model"
)

// MockSource is a mock type for the Source interface.
type MockSource struct {
	mock.Mock
}

// Fetch provides a mock function with given fields: ctx, date
func (_m *MockSource) Fetch(ctx context.Context, date string) ([]model.FeedRecord, error) {
	ret := _m.Called(ctx, date)

	if len(ret) == 0 {
		panic("no return value specified for Fetch")
	}

	var r0 []model.FeedRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.FeedRecord, error)); ok {
		return rf(ctx, date)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []model.FeedRecord); ok {
		r0 = rf(ctx, date)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.FeedRecord)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, date)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockSource creates a new instance of MockSource.
func NewMockSource(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSource {
	mock := &MockSource{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
