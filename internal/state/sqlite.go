package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quiz_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			quiz_id TEXT NOT NULL,
			question_count INTEGER NOT NULL DEFAULT 0,
			start_ts TEXT NOT NULL,
			checked_ts TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			correct INTEGER NOT NULL DEFAULT 0,
			incorrect INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			resets INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS high_scores (
			quiz_id TEXT PRIMARY KEY,
			best_percent INTEGER NOT NULL DEFAULT 0,
			updated_ts TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	// Backfill older schemas that predate quiz_runs.resets.
	if _, err := s.db.ExecContext(ctx, `ALTER TABLE quiz_runs ADD COLUMN resets INTEGER NOT NULL DEFAULT 0`); err != nil {
		msg := strings.ToLower(err.Error())
		if !strings.Contains(msg, "duplicate column name") {
			return fmt.Errorf("ensure schema alter quiz_runs.resets: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) StartQuizRun(ctx context.Context, run QuizRun) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_runs(session_id, quiz_id, question_count, start_ts) VALUES(?,?,?,?)`,
		run.SessionID,
		strings.TrimSpace(run.QuizID),
		run.QuestionCount,
		run.StartTS.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) RecordQuizResult(ctx context.Context, runID int64, result QuizResult) error {
	checked := result.CheckedTS
	if checked.IsZero() {
		checked = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE quiz_runs
		SET checked_ts = ?, score = ?, correct = ?, incorrect = ?, skipped = ?
		WHERE id = ?
	`,
		checked.UTC().Format(timeLayout),
		result.Score,
		result.Correct,
		result.Incorrect,
		result.Skipped,
		runID,
	)
	return err
}

func (s *SQLiteStore) IncrementReset(ctx context.Context, runID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE quiz_runs SET resets = resets + 1 WHERE id = ?`, runID)
	return err
}

// UpsertHighScore keeps best_percent monotonic: a lower or equal score
// leaves the stored row untouched, including its timestamp.
func (s *SQLiteStore) UpsertHighScore(ctx context.Context, quizID string, percent int, at time.Time) error {
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO high_scores(quiz_id, best_percent, updated_ts)
		VALUES(?, ?, ?)
		ON CONFLICT(quiz_id) DO UPDATE SET
			best_percent = CASE
				WHEN excluded.best_percent > high_scores.best_percent THEN excluded.best_percent
				ELSE high_scores.best_percent
			END,
			updated_ts = CASE
				WHEN excluded.best_percent > high_scores.best_percent THEN excluded.updated_ts
				ELSE high_scores.updated_ts
			END
	`, quizID, max(0, percent), at.UTC().Format(timeLayout))
	return err
}

func (s *SQLiteStore) GetHighScore(ctx context.Context, quizID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT best_percent FROM high_scores WHERE quiz_id = ?`, strings.TrimSpace(quizID))
	var best int
	if err := row.Scan(&best); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return best, nil
}

func (s *SQLiteStore) GetHighScoreMap(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT quiz_id, best_percent FROM high_scores`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			quizID string
			best   int
		)
		if err := rows.Scan(&quizID, &best); err != nil {
			return nil, err
		}
		out[quizID] = best
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for key, value := range values {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO app_settings(key, value) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, value); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetSummary(ctx context.Context) (Summary, error) {
	var out Summary
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) as quiz_runs,
			COALESCE(SUM(CASE WHEN checked_ts <> '' THEN 1 ELSE 0 END),0) as checked,
			COALESCE(SUM(resets),0) as resets,
			COALESCE(MAX(CASE WHEN checked_ts <> '' THEN score END),0) as best_score,
			COALESCE(AVG(CASE WHEN checked_ts <> '' THEN score END),0) as avg_score
		FROM quiz_runs
	`)
	if err := row.Scan(&out.QuizRuns, &out.Checked, &out.Resets, &out.BestScore, &out.AvgScore); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *SQLiteStore) GetLastRun(ctx context.Context) (*LastRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT quiz_id, question_count, start_ts, checked_ts, score, resets
		FROM quiz_runs
		ORDER BY id DESC
		LIMIT 1
	`)
	var (
		quizID       string
		count        int
		startTSRaw   string
		checkedTSRaw string
		score        int
		resets       int
	)
	if err := row.Scan(&quizID, &count, &startTSRaw, &checkedTSRaw, &score, &resets); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	startTS, err := time.Parse(timeLayout, startTSRaw)
	if err != nil {
		startTS = time.Time{}
	}
	return &LastRun{
		QuizID:        quizID,
		QuestionCount: count,
		StartTS:       startTS,
		Checked:       checkedTSRaw != "",
		Score:         score,
		Resets:        resets,
	}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
