// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

// -- Session Mocks --

// MockSession mocks schemas.Session.
type MockSession struct {
	mock.Mock
}

var _ schemas.Session = (*MockSession)(nil)

func (m *MockSession) OpenConversation(ctx context.Context, number, prefill string) error {
	return m.Called(ctx, number, prefill).Error(0)
}

func (m *MockSession) Query(ctx context.Context, q schemas.ElementQuery) (schemas.ElementHandle, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.ElementHandle), args.Error(1)
}

func (m *MockSession) DismissInterstitial(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSession) CloseConversation(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockElementHandle mocks schemas.ElementHandle.
type MockElementHandle struct {
	mock.Mock
}

var _ schemas.ElementHandle = (*MockElementHandle)(nil)

func (m *MockElementHandle) Click(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElementHandle) SendKeys(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockElementHandle) SetFiles(ctx context.Context, paths ...string) error {
	return m.Called(ctx, paths).Error(0)
}

func (m *MockElementHandle) Describe() string {
	return m.Called().String(0)
}

// -- Collaborator Mocks --

// MockResultSink mocks schemas.ResultSink.
type MockResultSink struct {
	mock.Mock
}

func (m *MockResultSink) Persist(ctx context.Context, result *schemas.BatchResult) error {
	return m.Called(ctx, result).Error(0)
}

// MockComposer mocks schemas.Composer.
type MockComposer struct {
	mock.Mock
}

var _ schemas.Composer = (*MockComposer)(nil)

func (m *MockComposer) Compose(c schemas.Contact) (schemas.MessageIntent, error) {
	args := m.Called(c)
	return args.Get(0).(schemas.MessageIntent), args.Error(1)
}
