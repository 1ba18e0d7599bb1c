package export

import (
	"strings"
	"testing"
	"time"

	"qcm/internal/session"
)

func TestFilename(t *testing.T) {
	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	got := Filename("cardio", now)
	if got != "quiz-results-cardio-2026-03-14.csv" {
		t.Fatalf("unexpected filename: %q", got)
	}
}

func TestWriteCSV(t *testing.T) {
	res := session.Result{
		QuizID:       "cardio",
		QuizTitle:    "Cardiology basics",
		CheckedAt:    time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC),
		ScorePercent: 67,
		Correct:      2,
		Incorrect:    1,
		Skipped:      0,
		Total:        3,
		Questions: []session.QuestionOutcome{
			{Prompt: "Normal resting heart rate?", ChosenOption: "60-100", CorrectOption: "60-100", Correct: true},
			{Prompt: "Which chamber pumps into the aorta?", ChosenOption: "Right atrium", CorrectOption: "Left ventricle"},
			{Prompt: "Systole is, say, \"contraction\"?", ChosenOption: session.UnansweredLabel, CorrectOption: "Yes"},
		},
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, res); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	out := sb.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "Quiz,Date,Score,Correct,Incorrect,Skipped,Total" {
		t.Fatalf("summary header wrong: %q", lines[0])
	}
	if lines[1] != "Cardiology basics,2026-03-14 09:30,67%,2,1,0,3" {
		t.Fatalf("summary row wrong: %q", lines[1])
	}
	if lines[2] != "" {
		t.Fatalf("expected blank separator, got %q", lines[2])
	}
	if lines[3] != "Question,Your answer,Correct answer,Result" {
		t.Fatalf("detail header wrong: %q", lines[3])
	}
	if !strings.HasSuffix(lines[4], "Correct") || !strings.HasSuffix(lines[5], "Incorrect") {
		t.Fatalf("verdicts wrong:\n%s", out)
	}
	if !strings.Contains(lines[6], "unanswered") {
		t.Fatalf("skipped row must carry the unanswered sentinel: %q", lines[6])
	}
	// Prompts with quotes must stay one CSV record.
	if !strings.Contains(lines[6], `"Systole is, say, ""contraction""?"`) {
		t.Fatalf("quoting wrong: %q", lines[6])
	}
}
