package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Keys holding the parameters of the last requested offline sync.
const (
	KeyClientRepo = "client_repo"
	KeyBranch     = "branch"
)

// Run statuses recorded in the sync history.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Store is the persistent key/value store plus sync history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SyncParams are the persisted repository and branch of the offline site.
type SyncParams struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
}

// Run is one entry of the sync history.
type Run struct {
	ID         string    `json:"id"`
	Repo       string    `json:"repo"`
	Branch     string    `json:"branch"`
	Commit     string    `json:"commit,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get pref %s: %w", key, err)
	}
	return value, true, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// set stores value under key, replacing any previous value.
func (s *Store) set(ctx context.Context, ex execer, key, value string, now time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("set pref %s: %w", key, err)
	}
	return nil
}

// SyncParams returns the persisted sync parameters. ok is false unless both
// keys are present and non-empty.
func (s *Store) SyncParams(ctx context.Context) (SyncParams, bool, error) {
	repo, repoOK, err := s.Get(ctx, KeyClientRepo)
	if err != nil {
		return SyncParams{}, false, err
	}
	branch, branchOK, err := s.Get(ctx, KeyBranch)
	if err != nil {
		return SyncParams{}, false, err
	}
	repo, branch = strings.TrimSpace(repo), strings.TrimSpace(branch)
	if !repoOK || !branchOK || repo == "" || branch == "" {
		return SyncParams{}, false, nil
	}
	return SyncParams{Repo: repo, Branch: branch}, true, nil
}

// SaveSyncParams persists both keys in one transaction.
func (s *Store) SaveSyncParams(ctx context.Context, p SyncParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now().UTC()
	for _, kv := range [][2]string{{KeyClientRepo, p.Repo}, {KeyBranch, p.Branch}} {
		if err := s.set(ctx, tx, kv[0], kv[1], now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync params: %w", err)
	}
	return nil
}

// StartRun records a sync attempt in the running state.
func (s *Store) StartRun(ctx context.Context, id, repo, branch string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, repo, branch, status, started_at) VALUES (?, ?, ?, ?, ?)
	`, id, repo, branch, StatusRunning, s.now().UTC())
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

// FinishRun marks a sync attempt as finished. A nil runErr means success.
func (s *Store) FinishRun(ctx context.Context, id, commit string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET status = ?, commit_hash = ?, error = ?, finished_at = ? WHERE id = ?
	`, status, commit, msg, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update sync run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sync run %s not found", id)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo, branch, commit_hash, status, error, started_at, finished_at
		FROM sync_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Repo, &r.Branch, &r.Commit, &r.Status, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return runs, nil
}
