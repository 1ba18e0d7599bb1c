// Package export writes checked quiz runs to CSV: one summary table
// followed by one row per question.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"qcm/internal/session"
)

// Filename names an export file after the quiz and the day it was
// checked.
func Filename(quizID string, now time.Time) string {
	return fmt.Sprintf("quiz-results-%s-%s.csv", quizID, now.Format("2006-01-02"))
}

func WriteCSV(w io.Writer, res session.Result) error {
	cw := csv.NewWriter(w)

	records := [][]string{
		{"Quiz", "Date", "Score", "Correct", "Incorrect", "Skipped", "Total"},
		{
			res.QuizTitle,
			res.CheckedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(res.ScorePercent) + "%",
			strconv.Itoa(res.Correct),
			strconv.Itoa(res.Incorrect),
			strconv.Itoa(res.Skipped),
			strconv.Itoa(res.Total),
		},
		{},
		{"Question", "Your answer", "Correct answer", "Result"},
	}
	for _, q := range res.Questions {
		verdict := "Incorrect"
		if q.Correct {
			verdict = "Correct"
		}
		records = append(records, []string{q.Prompt, q.ChosenOption, q.CorrectOption, verdict})
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
