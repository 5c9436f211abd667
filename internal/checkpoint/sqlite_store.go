package checkpoint

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"normcode/internal/blackboard"
	"normcode/internal/refalgebra"
)

// SQLiteStore persists Snapshots to a single-file sqlite database via the
// pure-Go modernc.org/sqlite driver, following the query-kb tool's
// sql.Open("sqlite", path) pattern rather than the cgo mattn driver the
// rest of the pack uses for its vector store, since a checkpoint store
// has to be embeddable in a plain `go build` CLI binary with no C
// toolchain assumed.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) the checkpoint database at
// path and ensures its schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	run_id      TEXT PRIMARY KEY,
	fork_of     TEXT,
	cycle       INTEGER NOT NULL,
	entries     TEXT NOT NULL,
	references_ TEXT NOT NULL,
	shapes      TEXT NOT NULL DEFAULT '{}'
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: migrate schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Save(snap Snapshot) error {
	entriesJSON, err := json.Marshal(snap.Entries)
	if err != nil {
		return err
	}
	refsJSON, err := json.Marshal(snap.References)
	if err != nil {
		return err
	}
	shapesJSON, err := json.Marshal(snap.Shapes)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots (run_id, fork_of, cycle, entries, references_, shapes) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET fork_of=excluded.fork_of, cycle=excluded.cycle, entries=excluded.entries, references_=excluded.references_, shapes=excluded.shapes`,
		snap.RunID, snap.ForkOf, snap.Cycle, string(entriesJSON), string(refsJSON), string(shapesJSON),
	)
	return err
}

func (s *SQLiteStore) Load(runID string) (Snapshot, error) {
	row := s.db.QueryRow(`SELECT run_id, fork_of, cycle, entries, references_, shapes FROM snapshots WHERE run_id = ?`, runID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return Snapshot{}, &NotFoundError{RunID: runID}
	}
	return snap, err
}

func (s *SQLiteStore) Fork(fromRunID, toRunID string) (Snapshot, error) {
	from, err := s.Load(fromRunID)
	if err != nil {
		return Snapshot{}, err
	}
	forked := Snapshot{
		RunID:      toRunID,
		ForkOf:     fromRunID,
		Cycle:      from.Cycle,
		Entries:    from.Entries,
		References: from.References,
		Shapes:     from.Shapes,
	}
	if err := s.Save(forked); err != nil {
		return Snapshot{}, err
	}
	return forked, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var (
		runID, forkOf                     string
		cycle                              int
		entriesJSON, refsJSON, shapesJSON string
	)
	if err := row.Scan(&runID, &forkOf, &cycle, &entriesJSON, &refsJSON, &shapesJSON); err != nil {
		return Snapshot{}, err
	}
	var entries map[string]blackboard.Entry
	if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
		return Snapshot{}, err
	}
	var refs map[string]*refalgebra.Reference
	if err := json.Unmarshal([]byte(refsJSON), &refs); err != nil {
		return Snapshot{}, err
	}
	var shapes map[string]InferenceShape
	if shapesJSON != "" {
		if err := json.Unmarshal([]byte(shapesJSON), &shapes); err != nil {
			return Snapshot{}, err
		}
	}
	return Snapshot{RunID: runID, ForkOf: forkOf, Cycle: cycle, Entries: entries, References: refs, Shapes: shapes}, nil
}
