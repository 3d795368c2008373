// engine/test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/aegis/engine/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogEvent(ctx context.Context, event audit.ProtectionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditService) QueryEvents(ctx context.Context, from, to time.Time, kind, principalID string) ([]audit.ProtectionEvent, error) {
	args := m.Called(ctx, from, to, kind, principalID)
	return args.Get(0).([]audit.ProtectionEvent), args.Error(1)
}
