package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/replayq/replayq/internal/httpreq"
)

// AddLast appends e to the end of its queue: a plain autoincrement-style
// insert with no explicit id, so SQLite assigns max(rowid)+1.
func (s *Store) AddLast(ctx context.Context, name string, e Entry) (Entry, error) {
	reqJSON, metaJSON, err := marshalEntry(e)
	if err != nil {
		return Entry{}, newStoreError(name, err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (queue_name, request_json, timestamp_ms, metadata_json)
		VALUES (?, ?, ?, ?)
	`, name, reqJSON, e.Timestamp.UnixMilli(), metaJSON)
	if err != nil {
		return Entry{}, newStoreError(name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Entry{}, newStoreError(name, err)
	}
	e.ID = id
	e.QueueName = name
	return e, nil
}

// AddFirst inserts e ahead of every existing entry in name's queue, using
// the current minimum id in the whole store minus one (-1 for an empty
// store). This mirrors the inherited "subtract one from the current minimum
// id" strategy; ids may go to zero and below. The MIN lookup and the insert
// run in one transaction, so the new id is always below every stored id.
func (s *Store) AddFirst(ctx context.Context, name string, e Entry) (Entry, error) {
	reqJSON, metaJSON, err := marshalEntry(e)
	if err != nil {
		return Entry{}, newStoreError(name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, newStoreError(name, err)
	}
	defer tx.Rollback()

	var min sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MIN(id) FROM entries`).Scan(&min); err != nil {
		return Entry{}, newStoreError(name, err)
	}

	nextID := int64(-1)
	if min.Valid {
		nextID = min.Int64 - 1
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entries (id, queue_name, request_json, timestamp_ms, metadata_json)
		VALUES (?, ?, ?, ?, ?)
	`, nextID, name, reqJSON, e.Timestamp.UnixMilli(), metaJSON); err != nil {
		return Entry{}, newStoreError(name, err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, newStoreError(name, err)
	}

	e.ID = nextID
	e.QueueName = name
	return e, nil
}

// GetFirst returns the lowest-id entry for name without removing it.
func (s *Store) GetFirst(ctx context.Context, name string) (Entry, bool, error) {
	return s.getOne(ctx, name, "ASC")
}

// GetLast returns the highest-id entry for name without removing it.
func (s *Store) GetLast(ctx context.Context, name string) (Entry, bool, error) {
	return s.getOne(ctx, name, "DESC")
}

func (s *Store) getOne(ctx context.Context, name, order string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, queue_name, request_json, timestamp_ms, metadata_json
		FROM entries WHERE queue_name = ? ORDER BY id %s LIMIT 1
	`, order), name)

	e, err := scanEntryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, newStoreError(name, err)
	}
	return e, true, nil
}

// PopFirst atomically reads and deletes the lowest-id entry for name.
func (s *Store) PopFirst(ctx context.Context, name string) (Entry, bool, error) {
	return s.popOne(ctx, name, "ASC")
}

// PopLast atomically reads and deletes the highest-id entry for name.
func (s *Store) PopLast(ctx context.Context, name string) (Entry, bool, error) {
	return s.popOne(ctx, name, "DESC")
}

func (s *Store) popOne(ctx context.Context, name, order string) (Entry, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, false, newStoreError(name, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, queue_name, request_json, timestamp_ms, metadata_json
		FROM entries WHERE queue_name = ? ORDER BY id %s LIMIT 1
	`, order), name)

	e, err := scanEntryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, newStoreError(name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, e.ID); err != nil {
		return Entry{}, false, newStoreError(name, err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, false, newStoreError(name, err)
	}

	return e, true, nil
}

// GetAll returns every entry for name in FIFO (ascending id) order. It
// returns an empty, non-nil slice when the queue has no entries.
func (s *Store) GetAll(ctx context.Context, name string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, queue_name, request_json, timestamp_ms, metadata_json
		FROM entries WHERE queue_name = ? ORDER BY id ASC
	`, name)
	if err != nil {
		return nil, newStoreError(name, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntryRows(rows)
		if err != nil {
			return nil, newStoreError(name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError(name, err)
	}
	return entries, nil
}

// DeleteByID removes a single entry by id, regardless of its position.
// Retention enforcement does not use it: ReplayRequests drops expired
// entries by popping them.
func (s *Store) DeleteByID(ctx context.Context, name string, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ? AND queue_name = ?`, id, name); err != nil {
		return newStoreError(name, err)
	}
	return nil
}

// QueueNames returns the distinct set of queue names with at least one
// stored entry, ordered alphabetically. Used by the CLI's "queues" command.
func (s *Store) QueueNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT queue_name FROM entries ORDER BY queue_name ASC`)
	if err != nil {
		return nil, newStoreError("", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, newStoreError("", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func marshalEntry(e Entry) (reqJSON []byte, metaJSON []byte, err error) {
	reqJSON, err = httpreq.Marshal(e.Request)
	if err != nil {
		return nil, nil, err
	}
	if e.Metadata != nil {
		metaJSON, err = json.Marshal(e.Metadata)
		if err != nil {
			return nil, nil, err
		}
	}
	return reqJSON, metaJSON, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntryRow(row *sql.Row) (Entry, error)    { return scanEntry(row) }
func scanEntryRows(rows *sql.Rows) (Entry, error) { return scanEntry(rows) }

func scanEntry(s scanner) (Entry, error) {
	var (
		id          int64
		queueName   string
		reqJSON     string
		timestampMs int64
		metaJSON    sql.NullString
	)

	if err := s.Scan(&id, &queueName, &reqJSON, &timestampMs, &metaJSON); err != nil {
		return Entry{}, err
	}

	req, err := httpreq.Unmarshal([]byte(reqJSON))
	if err != nil {
		return Entry{}, fmt.Errorf("unmarshal request: %w", err)
	}

	var metadata map[string]string
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &metadata); err != nil {
			return Entry{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return Entry{
		ID:        id,
		QueueName: queueName,
		Request:   req,
		Timestamp: time.UnixMilli(timestampMs).UTC(),
		Metadata:  metadata,
	}, nil
}
