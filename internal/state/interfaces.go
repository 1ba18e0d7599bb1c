package state

import (
	"context"
	"time"
)

type Store interface {
	EnsureSchema(ctx context.Context) error
	StartQuizRun(ctx context.Context, run QuizRun) (int64, error)
	RecordQuizResult(ctx context.Context, runID int64, result QuizResult) error
	IncrementReset(ctx context.Context, runID int64) error
	UpsertHighScore(ctx context.Context, quizID string, percent int, at time.Time) error
	GetHighScore(ctx context.Context, quizID string) (int, error)
	GetHighScoreMap(ctx context.Context) (map[string]int, error)
	SaveSettings(ctx context.Context, values map[string]string) error
	LoadSettings(ctx context.Context) (map[string]string, error)
	GetSummary(ctx context.Context) (Summary, error)
	GetLastRun(ctx context.Context) (*LastRun, error)
	Close() error
}

type QuizRun struct {
	SessionID     string
	QuizID        string
	QuestionCount int
	StartTS       time.Time
}

type QuizResult struct {
	Score     int
	Correct   int
	Incorrect int
	Skipped   int
	CheckedTS time.Time
}

type Summary struct {
	QuizRuns  int
	Checked   int
	Resets    int
	BestScore int
	AvgScore  float64
}

type LastRun struct {
	QuizID        string
	QuestionCount int
	StartTS       time.Time
	Checked       bool
	Score         int
	Resets        int
}
