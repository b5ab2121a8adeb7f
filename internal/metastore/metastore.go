// Package metastore is the SQLite-backed companion store that holds each
// vector's JSON metadata payload, keyed by the same integer ID used in the
// vector file's leading ID slot.
package metastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB opened against one metadata database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the metadata database at path in WAL
// mode and ensures its schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	s := &Store{db: db}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS metadata (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL,
		payload_length INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_metadata_id ON metadata(id);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create metadata schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Insert assigns a new, strictly increasing ID to payload and returns it.
func (s *Store) Insert(ctx context.Context, payload []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (payload, payload_length) VALUES (?, ?)`,
		string(payload), len(payload))
	if err != nil {
		return 0, fmt.Errorf("insert metadata: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert metadata: last insert id: %w", err)
	}
	return id, nil
}

// InsertBatch assigns a new ID to each payload in a single transaction,
// returning the assigned IDs in the same order (0 at positions whose row
// failed). An individual row failure is recorded in the returned slice of
// errors but does not abort the rest of the batch; the transaction
// commits iff at least one row was staged, else it rolls back.
func (s *Store) InsertBatch(ctx context.Context, payloads [][]byte) ([]int64, []error, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("insert batch: begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO metadata (payload, payload_length) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, fmt.Errorf("insert batch: prepare: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(payloads))
	errs := make([]error, len(payloads))
	staged := 0
	for i, payload := range payloads {
		res, err := stmt.ExecContext(ctx, string(payload), len(payload))
		if err != nil {
			errs[i] = fmt.Errorf("insert metadata row %d: %w", i, err)
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			errs[i] = fmt.Errorf("insert metadata row %d: last insert id: %w", i, err)
			continue
		}
		ids[i] = id
		staged++
	}

	if staged == 0 {
		_ = tx.Rollback()
		return ids, errs, nil
	}
	if err := tx.Commit(); err != nil {
		return ids, errs, fmt.Errorf("insert batch: commit: %w", err)
	}
	return ids, errs, nil
}

// Update overwrites the payload for an existing id.
func (s *Store) Update(ctx context.Context, id int64, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE metadata SET payload = ?, payload_length = ? WHERE id = ?`,
		string(payload), len(payload), id)
	if err != nil {
		return fmt.Errorf("update metadata %d: %w", id, err)
	}
	return nil
}

// BulkFetch returns the payload for each requested id, in the same order.
// IDs with no row get a "{}" placeholder rather than an error or a gap, so
// callers can zip the result back up against their vector results
// positionally. Requests are chunked to respect inCap bound parameters per
// statement.
func (s *Store) BulkFetch(ctx context.Context, ids []int64, inCap int) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if inCap <= 0 {
		inCap = 999
	}

	found := make(map[int64][]byte, len(ids))
	for start := 0; start < len(ids); start += inCap {
		end := start + inCap
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf("SELECT id, payload FROM metadata WHERE id IN (%s)", placeholders), args...)
		if err != nil {
			return nil, fmt.Errorf("bulk fetch: %w", err)
		}
		for rows.Next() {
			var id int64
			var payload string
			if err := rows.Scan(&id, &payload); err != nil {
				rows.Close()
				return nil, fmt.Errorf("bulk fetch scan: %w", err)
			}
			found[id] = []byte(payload)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("bulk fetch: %w", err)
		}
		rows.Close()
	}

	out := make([][]byte, len(ids))
	for i, id := range ids {
		if p, ok := found[id]; ok {
			out[i] = p
		} else {
			out[i] = []byte("{}")
		}
	}
	return out, nil
}

// Filter returns the ids whose payload matches the given WHERE fragment
// (built by internal/predicate), in ascending id order.
func (s *Store) Filter(ctx context.Context, whereSQL string, args []any) ([]int64, error) {
	query := fmt.Sprintf("SELECT id FROM metadata WHERE %s ORDER BY id", whereSQL)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("filter scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteBatch removes rows for ids, chunking the IN-clause at batchSize
// per statement but running every chunk inside a single transaction so a
// failure partway through leaves no rows deleted rather than a partial
// commit.
func (s *Store) DeleteBatch(ctx context.Context, ids []int64, batchSize int) error {
	if len(ids) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete batch: begin tx: %w", err)
	}

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM metadata WHERE id IN (%s)", placeholders), args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete batch: commit: %w", err)
	}
	return nil
}

// Count returns the number of rows currently stored.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM metadata").Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// FileSize reports the on-disk byte size of the metadata database, used by
// stats reporting.
func (s *Store) FileSize() (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("page_count: %w", err)
	}
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("page_size: %w", err)
	}
	return pageCount * pageSize, nil
}
