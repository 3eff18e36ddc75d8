package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/store"
)

var errStoreDown = errors.New("store down")

// failingStore rejects every write and counts the attempts.
type failingStore struct {
	inserts, reads int
}

func (f *failingStore) InsertNotification(context.Context, model.Notification) error {
	f.inserts++
	return errStoreDown
}

func (f *failingStore) ListNotifications(context.Context, store.NotificationFilter) ([]model.Notification, error) {
	return nil, errStoreDown
}

func (f *failingStore) MarkNotificationRead(context.Context, string, time.Time) error {
	f.reads++
	return errStoreDown
}

func (f *failingStore) MarkAllNotificationsRead(context.Context, time.Time) (int, error) {
	return 0, errStoreDown
}
