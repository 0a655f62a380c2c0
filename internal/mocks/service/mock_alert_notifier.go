package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
)

type MockAlertNotifier struct {
	mock.Mock
}

func NewMockAlertNotifier(t *testing.T) *MockAlertNotifier {
	m := &MockAlertNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAlertNotifier) SendTopicAlert(ctx context.Context, topic, title, body string, data map[string]string) error {
	return m.Called(ctx, topic, title, body, data).Error(0)
}
