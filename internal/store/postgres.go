package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/barberfinder/internal/db"
	"github.com/sells-group/barberfinder/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns its lifecycle.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS providers (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	latitude       DOUBLE PRECISION NOT NULL,
	longitude      DOUBLE PRECISION NOT NULL,
	vip            BOOLEAN NOT NULL DEFAULT false,
	vip_expires_at TIMESTAMPTZ,
	vip_plan       TEXT NOT NULL DEFAULT '',
	rating         DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count   INTEGER NOT NULL DEFAULT 0,
	is_open        BOOLEAN NOT NULL DEFAULT false,
	is_blocked     BOOLEAN NOT NULL DEFAULT false,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notifications (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	priority   TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	is_read    BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL,
	read_at    TIMESTAMPTZ,
	action_url TEXT NOT NULL DEFAULT '',
	metadata   JSONB
);

CREATE INDEX IF NOT EXISTS idx_providers_vip ON providers(vip);
CREATE INDEX IF NOT EXISTS idx_notifications_seq ON notifications(seq);
CREATE INDEX IF NOT EXISTS idx_notifications_subject ON notifications(subject_id);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(is_read) WHERE NOT is_read;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Providers ---

// UpsertProviders bulk-loads providers through a temp table.
func (s *PostgresStore) UpsertProviders(ctx context.Context, providers []model.Provider) (int, error) {
	rows := make([][]any, 0, len(providers))
	for _, p := range providers {
		rows = append(rows, []any{
			p.ID, p.Name, p.Address, p.Description, p.Phone,
			p.Coordinates.Latitude, p.Coordinates.Longitude,
			p.VIP, p.VIPExpiresAt, string(p.VIPPlan),
			p.Rating, p.ReviewCount, p.IsOpen, p.IsBlocked,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "providers",
		Columns:      providerColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert providers")
	}
	return int(n), nil
}

func (s *PostgresStore) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+strings.Join(providerColumns, ", ")+` FROM providers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list providers")
	}
	defer rows.Close()

	var out []model.Provider
	for rows.Next() {
		p, err := scanPgProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate providers")
}

func (s *PostgresStore) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+strings.Join(providerColumns, ", ")+` FROM providers WHERE id = $1`, id)
	p, err := scanPgProvider(row)
	if errors.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(err, "postgres: get provider %s", id)
	}
	return p, err
}

// --- Notifications ---

func (s *PostgresStore) InsertNotification(ctx context.Context, n model.Notification) error {
	meta, err := marshalMetadata(n.Metadata)
	if err != nil {
		return err
	}
	var metaJSON []byte
	if meta.Valid {
		metaJSON = []byte(meta.String)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, n.SubjectID, string(n.Kind), string(n.Priority), n.Title, n.Message,
		n.IsRead, n.CreatedAt, n.ReadAt, n.ActionURL, metaJSON,
	)
	return eris.Wrapf(err, "postgres: insert notification %s", n.ID)
}

func (s *PostgresStore) ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error) {
	var (
		where []string
		args  []any
	)
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		where = append(where, "subject_id = $1")
	}
	if filter.UnreadOnly {
		where = append(where, "NOT is_read")
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		if len(args) == 1 {
			query += ` LIMIT $1`
		} else {
			query += ` LIMIT $2`
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notifications")
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanPgNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate notifications")
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true, read_at = COALESCE(read_at, $1) WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark notification read %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "notification %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = true, read_at = $1 WHERE NOT is_read`, at)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: mark all notifications read")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgProvider(row scannable) (*model.Provider, error) {
	var (
		p       model.Provider
		plan    string
		expires *time.Time
	)
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.Description, &p.Phone,
		&p.Coordinates.Latitude, &p.Coordinates.Longitude,
		&p.VIP, &expires, &plan, &p.Rating, &p.ReviewCount, &p.IsOpen, &p.IsBlocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan provider")
	}
	p.VIPPlan = model.VIPPlan(plan)
	if expires != nil {
		t := expires.UTC()
		p.VIPExpiresAt = &t
	}
	return &p, nil
}

func scanPgNotification(row scannable) (*model.Notification, error) {
	var (
		n         model.Notification
		kind, pri string
		readAt    *time.Time
		meta      []byte
	)
	err := row.Scan(&n.ID, &n.SubjectID, &kind, &pri, &n.Title, &n.Message,
		&n.IsRead, &n.CreatedAt, &readAt, &n.ActionURL, &meta)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan notification")
	}
	n.Kind = model.NotificationKind(kind)
	n.Priority = model.Priority(pri)
	n.ReadAt = readAt
	if n.Metadata, err = unmarshalMetadata(meta); err != nil {
		return nil, err
	}
	return &n, nil
}

var _ Store = (*PostgresStore)(nil)
