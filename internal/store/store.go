// Package store provides SQLite-backed storage for mining results.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunFinished = errors.New("run already finished")
)

// DB wraps a SQLite connection for result storage.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Pragmas are per connection.
	conn.SetMaxOpenConns(1)

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file.
func (db *DB) Path() string { return db.path }

// ----- Runs -----

// Run is one mining pass over a repository.
type Run struct {
	ID         string
	Repo       string
	Config     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Finished reports whether FinishRun was called.
func (r *Run) Finished() bool { return !r.FinishedAt.IsZero() }

// BeginRun records a new run. config is a digest of the settings the run
// uses.
func (db *DB) BeginRun(repo, config string) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Repo: repo, Config: config, StartedAt: now()}
	_, err := db.conn.Exec(
		`INSERT INTO runs (id, repo, config, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Repo, run.Config, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the end time of a run.
func (db *DB) FinishRun(id string) error {
	res, err := db.conn.Exec(
		`UPDATE runs SET finished_at = ? WHERE id = ? AND finished_at IS NULL`,
		now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.GetRun(id); err != nil {
			return err
		}
		return ErrRunFinished
	}
	return nil
}

// GetRun loads a run.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow(`SELECT id, repo, config, started_at, finished_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns returns the runs of repo, oldest first. An empty repo lists all
// runs.
func (db *DB) ListRuns(repo string) ([]*Run, error) {
	rows, err := db.conn.Query(
		`SELECT id, repo, config, started_at, finished_at FROM runs
		 WHERE ? = '' OR repo = ? ORDER BY started_at, rowid`, repo, repo,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run      Run
		started  int64
		finished sql.NullInt64
	)
	if err := s.Scan(&run.ID, &run.Repo, &run.Config, &started, &finished); err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		run.FinishedAt = time.UnixMilli(finished.Int64).UTC()
	}
	return &run, nil
}

// ----- Patches -----

// Patch is the outcome of mining one file of one commit.
type Patch struct {
	Repo   string
	Commit string
	Path   string
	Digest string
	Nodes  int
	// ErrorKind is the parse error kind, empty for parsed patches.
	ErrorKind string
	// Patterns maps pattern names to the number of artifacts classified
	// with them. They are added to the run's counts.
	Patterns map[string]int
}

// Record stores the patches of one commit for runID in one transaction.
// Patches whose digest the repository already knows are skipped, and so are
// their pattern counts. It returns the number of stored patches.
func (db *DB) Record(runID string, patches []Patch) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stored := 0
	total := make(map[string]int)
	for _, p := range patches {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO patches (run_id, repo, commit_hash, path, digest, nodes, error_kind, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, p.Repo, p.Commit, p.Path, p.Digest, p.Nodes, p.ErrorKind, now().UnixMilli(),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting patch %s: %w", p.Path, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		stored++
		for pattern, c := range p.Patterns {
			total[pattern] += c
		}
	}

	for pattern, c := range total {
		if c == 0 {
			continue
		}
		_, err := tx.Exec(
			`INSERT INTO pattern_counts (run_id, pattern, count) VALUES (?, ?, ?)
			 ON CONFLICT (run_id, pattern) DO UPDATE SET count = count + excluded.count`,
			runID, pattern, c,
		)
		if err != nil {
			return 0, fmt.Errorf("updating pattern count %s: %w", pattern, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing patches: %w", err)
	}
	return stored, nil
}

// PatchDigests returns the digests of all patches stored for repo.
func (db *DB) PatchDigests(repo string) (map[string]bool, error) {
	rows, err := db.conn.Query(`SELECT digest FROM patches WHERE repo = ?`, repo)
	if err != nil {
		return nil, fmt.Errorf("querying patch digests: %w", err)
	}
	defer rows.Close()

	digests := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning patch digest: %w", err)
		}
		digests[d] = true
	}
	return digests, rows.Err()
}

// PatchStats summarizes the patches of a run.
type PatchStats struct {
	Patches int
	Nodes   int
	// Errors maps parse error kinds to the number of failed patches.
	Errors map[string]int
}

// RunStats returns the patch statistics of runID.
func (db *DB) RunStats(runID string) (*PatchStats, error) {
	rows, err := db.conn.Query(
		`SELECT error_kind, COUNT(*), COALESCE(SUM(nodes), 0) FROM patches WHERE run_id = ? GROUP BY error_kind`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying patch stats: %w", err)
	}
	defer rows.Close()

	stats := &PatchStats{Errors: make(map[string]int)}
	for rows.Next() {
		var (
			kind         string
			count, nodes int
		)
		if err := rows.Scan(&kind, &count, &nodes); err != nil {
			return nil, fmt.Errorf("scanning patch stats: %w", err)
		}
		stats.Patches += count
		stats.Nodes += nodes
		if kind != "" {
			stats.Errors[kind] = count
		}
	}
	return stats, rows.Err()
}

// PatternCounts returns the pattern counts of runID.
func (db *DB) PatternCounts(runID string) (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT pattern, count FROM pattern_counts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying pattern counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			pattern string
			count   int
		)
		if err := rows.Scan(&pattern, &count); err != nil {
			return nil, fmt.Errorf("scanning pattern count: %w", err)
		}
		counts[pattern] = count
	}
	return counts, rows.Err()
}

func now() time.Time {
	return time.Now().UTC()
}
