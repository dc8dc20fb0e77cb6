package notification

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockNotifier 基于 testify/mock 的通知器
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, msg *Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
