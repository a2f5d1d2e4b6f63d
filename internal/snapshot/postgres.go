package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	day          INTEGER PRIMARY KEY CHECK (day >= 0),
	record_count INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS snapshot_records (
	day         INTEGER NOT NULL REFERENCES snapshots(day) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	address     TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	market      TEXT    NOT NULL DEFAULT '',
	source      TEXT    NOT NULL DEFAULT '',
	record      JSONB   NOT NULL,
	PRIMARY KEY (day, position)
);

CREATE INDEX IF NOT EXISTS idx_snapshot_records_address ON snapshot_records(address);
`

// PostgresStore keeps snapshots in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, verifies the connection and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// Save writes the day's records in one transaction using a batch insert.
func (s *PostgresStore) Save(ctx context.Context, day int, records []listing.Record) (err error) {
	if err := checkDay(day); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (also failed to roll back: %v)", err, rbErr)
			}
		}
	}()

	if _, err := tx.Exec(ctx, "INSERT INTO snapshots (day, record_count) VALUES ($1, $2)", day, len(records)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("day %d: %w", day, ErrExists)
		}
		return fmt.Errorf("inserting snapshot day %d: %w", day, err)
	}

	batch := &pgx.Batch{}
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling record %d: %w", i, err)
		}
		batch.Queue(
			`INSERT INTO snapshot_records (day, position, address, status, market, source, record)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			day, i, r.Address, string(r.Status), r.Market, string(r.Source), data,
		)
	}

	if batch.Len() > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("batch insert failed at record %d: %w", i, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("closing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing snapshot day %d: %w", day, err)
	}
	return nil
}

// Load returns the records of a day in the order they were saved.
func (s *PostgresStore) Load(ctx context.Context, day int) ([]listing.Record, error) {
	if err := checkDay(day); err != nil {
		return nil, err
	}

	var count int
	err := s.pool.QueryRow(ctx, "SELECT record_count FROM snapshots WHERE day = $1", day).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("day %d: %w", day, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot day %d: %w", day, err)
	}

	rows, err := s.pool.Query(ctx, "SELECT record FROM snapshot_records WHERE day = $1 ORDER BY position", day)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := make([]listing.Record, 0, count)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var r listing.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// Latest returns the snapshot with the highest day number.
func (s *PostgresStore) Latest(ctx context.Context) (int, []listing.Record, error) {
	var day *int
	if err := s.pool.QueryRow(ctx, "SELECT MAX(day) FROM snapshots").Scan(&day); err != nil {
		return 0, nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	if day == nil {
		return 0, nil, ErrNotFound
	}
	records, err := s.Load(ctx, *day)
	if err != nil {
		return 0, nil, err
	}
	return *day, records, nil
}
