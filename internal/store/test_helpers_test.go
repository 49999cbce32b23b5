package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/remindsync/internal/reminder"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReminder creates an unsaved reminder firing offset after testNow.
func createTestReminder(notificationID, title string, offset time.Duration) *reminder.Reminder {
	return &reminder.Reminder{
		Title:          title,
		FireAt:         testNow.Add(offset),
		NotificationID: notificationID,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
}
