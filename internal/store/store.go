// Package store persists providers and notifications in SQLite or Postgres.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/barberfinder/internal/model"
)

// ErrNotFound is returned when a lookup or update matches no row.
var ErrNotFound = eris.New("store: not found")

// NotificationFilter narrows ListNotifications.
type NotificationFilter struct {
	SubjectID  string
	UnreadOnly bool
	Limit      int
}

// NotificationStore is the persistence capability behind notify.Center.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n model.Notification) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, at time.Time) (int, error)
}

// ProviderStore persists directory records.
type ProviderStore interface {
	UpsertProviders(ctx context.Context, providers []model.Provider) (int, error)
	ListProviders(ctx context.Context) ([]model.Provider, error)
	GetProvider(ctx context.Context, id string) (*model.Provider, error)
}

// Store combines both capabilities with lifecycle management.
type Store interface {
	NotificationStore
	ProviderStore

	Migrate(ctx context.Context) error
	Close() error
}

// providerColumns is shared by both backends so the scans line up.
var providerColumns = []string{
	"id", "name", "address", "description", "phone", "latitude", "longitude",
	"vip", "vip_expires_at", "vip_plan", "rating", "review_count", "is_open", "is_blocked",
}

const notificationColumns = `id, subject_id, kind, priority, title, message, is_read, created_at, read_at, action_url, metadata`
