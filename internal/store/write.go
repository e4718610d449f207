package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pipejournal/internal/journal"
)

// Save writes a journal and all of its entries in one transaction.
//
// Save is idempotent on the journal id: saving a journal whose id is
// already stored with the same digest is a no-op, and saving one with a
// different digest returns ErrConflict. A stored journal is never rewritten.
func Save[C any, I journal.Identified, O any](ctx context.Context, s *Store, j *journal.Journal[C, I, O]) error {
	id := string(j.ID())
	digest, err := journal.Digest(j)
	if err != nil {
		return fmt.Errorf("save journal %s: %w", id, err)
	}

	meta := j.Metadata()
	metaJSON, err := storedJSON(meta)
	if err != nil {
		return fmt.Errorf("save journal %s: marshal metadata: %w", id, err)
	}
	configJSON, err := storedJSON(j.Config())
	if err != nil {
		return fmt.Errorf("save journal %s: marshal config: %w", id, err)
	}
	_, failed := j.Counts()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save journal %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT digest FROM journals WHERE id = ?`, id).Scan(&existing)
	switch {
	case err == nil:
		if existing != digest {
			return fmt.Errorf("save journal %s: %w", id, ErrConflict)
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("save journal %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journals
		(id, pipeline, started_at, finished_at, metadata, config, digest, entry_count, failure_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		meta.Pipeline,
		formatTime(meta.Timestamp),
		formatTime(meta.Finished),
		metaJSON,
		configJSON,
		digest,
		j.Len(),
		failed,
	)
	if err != nil {
		return fmt.Errorf("save journal %s: %w", id, err)
	}

	for _, e := range j.All() {
		if err := writeEntry(ctx, tx, id, e); err != nil {
			return fmt.Errorf("save journal %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save journal %s: commit: %w", id, err)
	}
	return nil
}

func writeEntry[I journal.Identified, O any](ctx context.Context, tx *sql.Tx, journalID string, e journal.Entry[I, O]) error {
	meta := e.Metadata()
	input, err := storedJSON(e.Input())
	if err != nil {
		return fmt.Errorf("entry %d: marshal input: %w", meta.Seq, err)
	}

	var output, errJSON sql.NullString
	if out, ok := e.Output(); ok {
		s, err := storedJSON(out)
		if err != nil {
			return fmt.Errorf("entry %d: marshal output: %w", meta.Seq, err)
		}
		output = sql.NullString{String: s, Valid: true}
	} else {
		s, err := storedJSON(e.Err())
		if err != nil {
			return fmt.Errorf("entry %d: marshal error: %w", meta.Seq, err)
		}
		errJSON = sql.NullString{String: s, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries
		(journal_id, seq, attempt_id, input_id, status, started_at, duration_ns, input, output, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		journalID,
		meta.Seq,
		string(meta.AttemptID),
		string(e.Input().Identifier()),
		string(e.Status()),
		formatTime(meta.Timestamp),
		int64(meta.Duration),
		input,
		output,
		errJSON,
	)
	if err != nil {
		return fmt.Errorf("entry %d: %w", meta.Seq, err)
	}
	return nil
}

// Delete removes a journal and its entries.
// Returns ErrNotFound if the journal is not stored.
func (s *Store) Delete(ctx context.Context, id journal.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journals WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete journal %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete journal %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete journal %s: %w", id, ErrNotFound)
	}
	return nil
}
