package session

import (
	"context"
	"embed"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const sessionsTable = "portal_sessions"

//go:embed migrations/*.sql
var migrations embed.FS

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// Migrate applies the embedded goose migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.Pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	query, args, err := psql.Select("data").
		From(sessionsTable).
		Where(sq.Eq{"id_hash": HashID(id)}).
		Where(sq.Gt{"expires_at": time.Now().UTC()}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := s.Pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeRecord(id, raw)
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert(sessionsTable).
		Columns("id_hash", "data", "expires_at").
		Values(HashID(rec.ID), string(data), rec.ExpiresAt.UTC()).
		Suffix("ON CONFLICT (id_hash) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, query, args...)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete(sessionsTable).Where(sq.Eq{"id_hash": HashID(id)}).ToSql()
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, query, args...)
	return err
}

func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	query, args, err := psql.Delete(sessionsTable).Where(sq.LtOrEq{"expires_at": now.UTC()}).ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
