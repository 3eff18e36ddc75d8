package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/barberfinder/internal/model"
)

func TestBadgeCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{-1, ""},
		{0, ""},
		{1, "1"},
		{9, "9"},
		{10, "9+"},
		{250, "9+"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BadgeCount(tt.in), "unread=%d", tt.in)
	}
}

func TestUnreadLabel(t *testing.T) {
	assert.Equal(t, "", UnreadLabel(0))
	assert.Equal(t, "1 new", UnreadLabel(1))
	assert.Equal(t, "4 new", UnreadLabel(4))
}

func TestAgo(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"now", 10 * time.Second, "just now"},
		{"one minute", time.Minute, "1 minute ago"},
		{"minutes", 42 * time.Minute, "42 minutes ago"},
		{"hours", 5 * time.Hour, "5 hours ago"},
		{"one day", 30 * time.Hour, "1 day ago"},
		{"old", 45 * 24 * time.Hour, "24/01/2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ago(testNow.Add(-tt.d), testNow))
		})
	}
}

func TestAppointmentMessages(t *testing.T) {
	at := time.Date(2026, 3, 12, 15, 30, 0, 0, time.UTC)

	n := AppointmentConfirmed("client-1", "Alpha Cuts", at, testNow)
	assert.Equal(t, model.KindAppointmentConfirmed, n.Kind)
	assert.Equal(t, model.PriorityMedium, n.Priority)
	assert.Equal(t, "Your appointment at Alpha Cuts is confirmed for 12/03/2026 at 15:30.", n.Message)
	assert.NotEmpty(t, n.ID)

	n = AppointmentCancelled("client-1", "Alpha Cuts", testNow)
	assert.Equal(t, model.PriorityHigh, n.Priority)
	assert.Contains(t, n.Message, "cancelled")

	n = AppointmentReminder("client-1", "Alpha Cuts", at, testNow)
	assert.Equal(t, model.KindAppointmentReminder, n.Kind)
	assert.Contains(t, n.Message, "(15:30)")
}
