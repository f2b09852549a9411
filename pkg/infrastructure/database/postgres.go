package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	shared "github.com/pulseloop/server/pkg"
	"github.com/pulseloop/server/pkg/types"
)

const (
	credentialsTableName  = "user_credentials"
	dailyRecordsTableName = "daily_records"

	operationTimeout = 5 * time.Second
)

// PostgresAdapter implements shared.Database on top of Postgres. The
// daily-record key carries a declared unique constraint so the upsert is a
// single conflict-aware statement rather than a racy lookup-then-insert.
type PostgresAdapter struct {
	db *sql.DB
}

func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	return sql.Open("postgres", dsn)
}

func NewPostgresAdapter(db *sql.DB) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

// EnsureSchema creates the pipeline's tables if they do not exist yet.
func (a *PostgresAdapter) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + credentialsTableName + ` (
			user_id TEXT PRIMARY KEY,
			access_token TEXT NOT NULL DEFAULT '',
			access_token_secret TEXT NOT NULL DEFAULT '',
			oauth_token TEXT NOT NULL DEFAULT '',
			oauth_token_secret TEXT NOT NULL DEFAULT '',
			cooldown_until TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS ` + dailyRecordsTableName + ` (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			device_type INT NOT NULL,
			event_type TEXT NOT NULL,
			day DATE NOT NULL,
			payload JSONB NOT NULL,
			sequence_id TEXT NOT NULL,
			event_class TEXT NOT NULL DEFAULT 'raw',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT daily_records_key UNIQUE (user_id, device_type, event_type, day)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (a *PostgresAdapter) Close() error {
	return a.db.Close()
}

func (a *PostgresAdapter) GetCredential(ctx context.Context, userID string) (*types.UserCredential, error) {
	query := `SELECT user_id, access_token, access_token_secret, oauth_token, oauth_token_secret, cooldown_until
		FROM ` + credentialsTableName + ` WHERE user_id = $1`

	cred := &types.UserCredential{}
	var cooldown sql.NullTime
	err := a.db.QueryRowContext(ctx, query, userID).Scan(
		&cred.UserID, &cred.AccessToken, &cred.AccessTokenSecret,
		&cred.OAuthToken, &cred.OAuthTokenSecret, &cooldown,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential for user %q: %w", userID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if cooldown.Valid {
		t := cooldown.Time.UTC()
		cred.CooldownUntil = &t
	}
	return cred, nil
}

// SetCooldown moves cooldown_until forward. The row lock plus greatest-wins
// write keeps the field monotonic under concurrent workers.
func (a *PostgresAdapter) SetCooldown(ctx context.Context, userID string, until time.Time) error {
	return withTx(ctx, a.db, func(tx *sql.Tx) error {
		var current sql.NullTime
		query := `SELECT cooldown_until FROM ` + credentialsTableName + ` WHERE user_id = $1 FOR UPDATE`
		err := tx.QueryRowContext(ctx, query, userID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("credential for user %q: %w", userID, shared.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if current.Valid && current.Time.After(until) {
			return nil
		}
		update := `UPDATE ` + credentialsTableName + ` SET cooldown_until = $2 WHERE user_id = $1`
		_, err = tx.ExecContext(ctx, update, userID, until.UTC())
		return err
	})
}

func (a *PostgresAdapter) GetDailyRecord(ctx context.Context, userID string, device types.Device, eventType string, day time.Time) (*types.DailyRecord, error) {
	query := `SELECT id, user_id, device_type, event_type, day, payload, sequence_id, event_class, created_at, updated_at
		FROM ` + dailyRecordsTableName + `
		WHERE user_id = $1 AND device_type = $2 AND event_type = $3 AND day = $4`

	rec := &types.DailyRecord{}
	var deviceType int
	err := a.db.QueryRowContext(ctx, query, userID, int(device), eventType, types.DayOf(day)).Scan(
		&rec.ID, &rec.UserID, &deviceType, &rec.EventType, &rec.Day,
		&rec.Payload, &rec.SequenceID, &rec.EventClass, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("daily record: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec.DeviceType = types.Device(deviceType)
	return rec, nil
}

// UpsertDailyRecord inserts the record or, when one already exists for the
// same (user, device, event type, day), overwrites only its payload. The
// original sequence_id, event_class and created_at survive overwrites.
func (a *PostgresAdapter) UpsertDailyRecord(ctx context.Context, rec *types.DailyRecord) error {
	query := `INSERT INTO ` + dailyRecordsTableName + `
			(user_id, device_type, event_type, day, payload, sequence_id, event_class)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT daily_records_key
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`

	eventClass := rec.EventClass
	if eventClass == "" {
		eventClass = "raw"
	}
	_, err := a.db.ExecContext(ctx, query,
		rec.UserID, int(rec.DeviceType), rec.EventType, types.DayOf(rec.Day),
		[]byte(rec.Payload), rec.SequenceID, eventClass,
	)
	return err
}

// withTx runs fn inside a transaction and guarantees commit-or-rollback on
// every exit path, panics included.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}
