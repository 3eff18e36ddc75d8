package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/barberfinder/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS providers (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	latitude       REAL NOT NULL,
	longitude      REAL NOT NULL,
	vip            INTEGER NOT NULL DEFAULT 0,
	vip_expires_at INTEGER,
	vip_plan       TEXT NOT NULL DEFAULT '',
	rating         REAL NOT NULL DEFAULT 0,
	review_count   INTEGER NOT NULL DEFAULT 0,
	is_open        INTEGER NOT NULL DEFAULT 0,
	is_blocked     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	priority   TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	is_read    INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	read_at    INTEGER,
	action_url TEXT NOT NULL DEFAULT '',
	metadata   TEXT
);

CREATE INDEX IF NOT EXISTS idx_notifications_subject ON notifications(subject_id);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(is_read);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Providers ---

func (s *SQLiteStore) UpsertProviders(ctx context.Context, providers []model.Provider) (int, error) {
	if len(providers) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert providers")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(providerColumns)), ", ")
	var updates []string
	for _, c := range providerColumns[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO providers (`+strings.Join(providerColumns, ", ")+`) VALUES (`+placeholders+`)
		 ON CONFLICT(id) DO UPDATE SET `+strings.Join(updates, ", "))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert providers")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range providers {
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Name, p.Address, p.Description, p.Phone,
			p.Coordinates.Latitude, p.Coordinates.Longitude,
			p.VIP, nullMillis(p.VIPExpiresAt), string(p.VIPPlan),
			p.Rating, p.ReviewCount, p.IsOpen, p.IsBlocked,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert provider %s", p.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert providers")
	}
	return len(providers), nil
}

func (s *SQLiteStore) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+strings.Join(providerColumns, ", ")+` FROM providers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list providers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Provider
	for rows.Next() {
		p, err := scanSQLiteProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate providers")
}

func (s *SQLiteStore) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+strings.Join(providerColumns, ", ")+` FROM providers WHERE id = ?`, id)
	p, err := scanSQLiteProvider(row)
	if errors.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(err, "sqlite: get provider %s", id)
	}
	return p, err
}

// --- Notifications ---

func (s *SQLiteStore) InsertNotification(ctx context.Context, n model.Notification) error {
	meta, err := marshalMetadata(n.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		n.ID, n.SubjectID, string(n.Kind), string(n.Priority), n.Title, n.Message,
		n.IsRead, n.CreatedAt.UnixMilli(), nullMillis(n.ReadAt), n.ActionURL, meta,
	)
	return eris.Wrapf(err, "sqlite: insert notification %s", n.ID)
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE 1=1`
	var args []any
	if filter.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, filter.SubjectID)
	}
	if filter.UnreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY rowid`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notifications")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Notification
	for rows.Next() {
		n, err := scanSQLiteNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate notifications")
}

// MarkNotificationRead sets is_read and read_at. Marking an already read
// notification keeps its original read_at.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = COALESCE(read_at, ?) WHERE id = ?`,
		at.UnixMilli(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark notification read %s", id)
	}
	return checkRowsAffected(res, "notification", id)
}

func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE is_read = 0`,
		at.UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: mark all notifications read")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteProvider(row scannable) (*model.Provider, error) {
	var (
		p       model.Provider
		plan    string
		expires sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.Description, &p.Phone,
		&p.Coordinates.Latitude, &p.Coordinates.Longitude,
		&p.VIP, &expires, &plan, &p.Rating, &p.ReviewCount, &p.IsOpen, &p.IsBlocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan provider")
	}
	p.VIPPlan = model.VIPPlan(plan)
	p.VIPExpiresAt = fromMillis(expires)
	return &p, nil
}

func scanSQLiteNotification(row scannable) (*model.Notification, error) {
	var (
		n         model.Notification
		kind, pri string
		created   int64
		readAt    sql.NullInt64
		meta      sql.NullString
	)
	err := row.Scan(&n.ID, &n.SubjectID, &kind, &pri, &n.Title, &n.Message,
		&n.IsRead, &created, &readAt, &n.ActionURL, &meta)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan notification")
	}
	n.Kind = model.NotificationKind(kind)
	n.Priority = model.Priority(pri)
	n.CreatedAt = time.UnixMilli(created).UTC()
	n.ReadAt = fromMillis(readAt)
	if meta.Valid {
		if n.Metadata, err = unmarshalMetadata([]byte(meta.String)); err != nil {
			return nil, err
		}
	}
	return &n, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func marshalMetadata(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, eris.Wrap(err, "store: marshal metadata")
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal metadata")
	}
	return m, nil
}

var _ Store = (*SQLiteStore)(nil)
