package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/pipejournal/internal/journal"
)

// Summary describes a stored journal without its entries.
type Summary struct {
	ID         journal.ID `json:"id"`
	Pipeline   string     `json:"pipeline,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
	Digest     string     `json:"digest"`
	Entries    int        `json:"entries"`
	Failures   int        `json:"failures"`
}

// Successes returns the number of success entries.
func (s Summary) Successes() int {
	return s.Entries - s.Failures
}

// Filter narrows ListJournals.
type Filter struct {
	// Pipeline keeps only journals of this pipeline when non-empty.
	Pipeline string

	// Limit caps the number of summaries when positive.
	Limit int
}

// RawEntry is a stored entry with its payloads left as canonical JSON, for
// consumers that do not know the journal's concrete types.
type RawEntry struct {
	Seq       int64           `json:"seq"`
	AttemptID journal.ID      `json:"attempt_id"`
	InputID   journal.ID      `json:"input_id"`
	Status    journal.Status  `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration_ns"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}

// ErrorMessage returns the message of a failure entry, "" for a success.
func (e RawEntry) ErrorMessage() string {
	if len(e.Error) == 0 {
		return ""
	}
	var je journal.Error
	if err := json.Unmarshal(e.Error, &je); err != nil {
		return string(e.Error)
	}
	return je.Message
}

const summaryColumns = `id, pipeline, started_at, finished_at, digest, entry_count, failure_count`

// GetSummary returns the summary of one journal.
// Returns ErrNotFound if the journal is not stored.
func (s *Store) GetSummary(ctx context.Context, id journal.ID) (Summary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM journals WHERE id = ?`, string(id))
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("journal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("journal %s: %w", id, err)
	}
	return sum, nil
}

// ListJournals returns journal summaries ordered by start time, then id.
//
// Returns an empty slice (not nil) if no journals match.
func (s *Store) ListJournals(ctx context.Context, f Filter) ([]Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM journals`
	var args []any
	if f.Pipeline != "" {
		query += ` WHERE pipeline = ?`
		args = append(args, f.Pipeline)
	}
	query += ` ORDER BY started_at ASC, id COLLATE BINARY ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journals: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journals: %w", err)
	}
	return summaries, nil
}

// ResolveID expands a journal id prefix, as printed by short-id displays,
// to the full id. An exact match always wins.
// Returns ErrNotFound for no match and ErrAmbiguous for several.
func (s *Store) ResolveID(ctx context.Context, prefix string) (journal.ID, error) {
	if prefix == "" {
		return "", fmt.Errorf("resolve journal id: %w", ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM journals
		WHERE substr(id, 1, length(?)) = ?
		ORDER BY id COLLATE BINARY ASC
	`, prefix, prefix)
	if err != nil {
		return "", fmt.Errorf("resolve journal id %q: %w", prefix, err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve journal id %q: %w", prefix, err)
		}
		if id == prefix {
			return journal.ID(id), nil
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve journal id %q: %w", prefix, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("resolve journal id %q: %w", prefix, ErrNotFound)
	case 1:
		return journal.ID(matches[0]), nil
	default:
		return "", fmt.Errorf("resolve journal id %q matches %s: %w", prefix, strings.Join(matches, ", "), ErrAmbiguous)
	}
}

// ReadEntries returns the stored entries of a journal ordered by seq.
// Returns ErrNotFound if the journal is not stored; an empty journal yields
// an empty slice.
func (s *Store) ReadEntries(ctx context.Context, id journal.ID) ([]RawEntry, error) {
	if _, err := s.GetSummary(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, attempt_id, input_id, status, started_at, duration_ns, input, output, error
		FROM entries
		WHERE journal_id = ?
		ORDER BY seq ASC
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []RawEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Load reads a journal back with its concrete types.
//
// The decoded journal must reproduce the digest stored at save time;
// otherwise Load returns ErrCorrupt.
func Load[C any, I journal.Identified, O any](ctx context.Context, s *Store, id journal.ID) (*journal.Journal[C, I, O], error) {
	var metaJSON, configJSON, digest string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata, config, digest FROM journals WHERE id = ?`, string(id),
	).Scan(&metaJSON, &configJSON, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load journal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load journal %s: %w", id, err)
	}

	raw, err := s.ReadEntries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load journal %s: %w", id, err)
	}

	doc := storedJournal{
		ID:       id,
		Metadata: json.RawMessage(metaJSON),
		Config:   json.RawMessage(configJSON),
		Entries:  make([]storedEntry, len(raw)),
	}
	for i, e := range raw {
		doc.Entries[i] = storedEntry{
			Status: e.Status,
			Metadata: journal.EntryMetadata{
				Seq:       e.Seq,
				AttemptID: e.AttemptID,
				Timestamp: e.StartedAt,
				Duration:  e.Duration,
			},
			Input:  e.Input,
			Output: e.Output,
			Error:  e.Error,
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("load journal %s: %w", id, err)
	}
	var j journal.Journal[C, I, O]
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("load journal %s: %w", id, err)
	}

	got, err := journal.Digest(&j)
	if err != nil {
		return nil, fmt.Errorf("load journal %s: %w", id, err)
	}
	if got != digest {
		return nil, fmt.Errorf("load journal %s: %w", id, ErrCorrupt)
	}
	return &j, nil
}

// storedJournal mirrors the JSON encoding of journal.Journal.
type storedJournal struct {
	ID       journal.ID      `json:"id"`
	Metadata json.RawMessage `json:"metadata"`
	Config   json.RawMessage `json:"config"`
	Entries  []storedEntry   `json:"entries"`
}

type storedEntry struct {
	Status   journal.Status        `json:"status"`
	Metadata journal.EntryMetadata `json:"metadata"`
	Input    json.RawMessage       `json:"input"`
	Output   json.RawMessage       `json:"output,omitempty"`
	Error    json.RawMessage       `json:"error,omitempty"`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (Summary, error) {
	var (
		sum               Summary
		id                string
		started, finished string
		entries, failures int
	)
	if err := row.Scan(&id, &sum.Pipeline, &started, &finished, &sum.Digest, &entries, &failures); err != nil {
		return Summary{}, err
	}
	sum.ID = journal.ID(id)
	sum.Entries = entries
	sum.Failures = failures

	var err error
	if sum.StartedAt, err = parseTime(started); err != nil {
		return Summary{}, err
	}
	if sum.FinishedAt, err = parseTime(finished); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func scanEntry(row scanner) (RawEntry, error) {
	var (
		e                RawEntry
		attemptID, input string
		inputID, status  string
		started          string
		durationNS       int64
		output, errJSON  sql.NullString
	)
	if err := row.Scan(&e.Seq, &attemptID, &inputID, &status, &started, &durationNS, &input, &output, &errJSON); err != nil {
		return RawEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.AttemptID = journal.ID(attemptID)
	e.InputID = journal.ID(inputID)
	e.Status = journal.Status(status)
	e.Duration = time.Duration(durationNS)
	e.Input = json.RawMessage(input)
	if output.Valid {
		e.Output = json.RawMessage(output.String)
	}
	if errJSON.Valid {
		e.Error = json.RawMessage(errJSON.String)
	}

	var err error
	if e.StartedAt, err = parseTime(started); err != nil {
		return RawEntry{}, err
	}
	return e, nil
}
