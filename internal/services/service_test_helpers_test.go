package services

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/inkpost/inkpost/internal/database/testutil"
	"github.com/inkpost/inkpost/pkg/mail"
)

func testutilDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t)
}

// recordingMailer captures outbound messages for assertions.
type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	fail     error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]mail.Message, len(m.messages))
	copy(out, m.messages)
	return out
}
