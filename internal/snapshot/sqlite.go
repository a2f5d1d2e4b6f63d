package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

// SQLiteStore keeps snapshots in the tables created by internal/db.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an opened database (see db.Open).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const insertRecordSQL = `INSERT INTO snapshot_records
	(day, position, address, status, market, source, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// Save writes every record of the day inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, day int, records []listing.Record) (err error) {
	if err := checkDay(day); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (also failed to roll back: %v)", err, rbErr)
			}
		}
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM snapshots WHERE day = ?)", day).Scan(&exists); err != nil {
		return fmt.Errorf("checking snapshot day %d: %w", day, err)
	}
	if exists {
		return fmt.Errorf("day %d: %w", day, ErrExists)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO snapshots (day, record_count) VALUES (?, ?)", day, len(records)); err != nil {
		return fmt.Errorf("inserting snapshot day %d: %w", day, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing statement: %w", cerr)
		}
	}()

	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, day, i, r.Address, string(r.Status), r.Market, string(r.Source), string(data)); err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot day %d: %w", day, err)
	}
	return nil
}

// Load returns the records of a day in the order they were saved.
func (s *SQLiteStore) Load(ctx context.Context, day int) (records []listing.Record, err error) {
	if err := checkDay(day); err != nil {
		return nil, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, "SELECT record_count FROM snapshots WHERE day = ?", day).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("day %d: %w", day, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot day %d: %w", day, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT record_json FROM snapshot_records WHERE day = ? ORDER BY position", day)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	records = make([]listing.Record, 0, count)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var r listing.Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
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
func (s *SQLiteStore) Latest(ctx context.Context) (int, []listing.Record, error) {
	var day sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(day) FROM snapshots").Scan(&day); err != nil {
		return 0, nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	if !day.Valid {
		return 0, nil, ErrNotFound
	}
	records, err := s.Load(ctx, int(day.Int64))
	if err != nil {
		return 0, nil, err
	}
	return int(day.Int64), records, nil
}
