package session

import "time"

// UnansweredLabel is the sentinel written in place of a chosen option
// for questions the user skipped.
const UnansweredLabel = "unanswered"

type Result struct {
	QuizID       string
	QuizTitle    string
	CheckedAt    time.Time
	ScorePercent int
	Correct      int
	Incorrect    int
	Skipped      int
	Total        int
	Questions    []QuestionOutcome
}

type QuestionOutcome struct {
	Prompt        string
	ChosenOption  string
	CorrectOption string
	Correct       bool
}

// Result summarizes a checked run for export and persistence. It fails
// with ErrNotChecked while the run is still in progress.
func (s *Session) Result(now time.Time) (Result, error) {
	if s.phase != PhaseChecked {
		return Result{}, ErrNotChecked
	}
	res := Result{
		QuizID:       s.quizID,
		QuizTitle:    s.current.Title,
		CheckedAt:    now,
		ScorePercent: s.ScorePercent(),
		Correct:      s.CorrectCount(),
		Incorrect:    s.IncorrectCount(),
		Skipped:      s.SkippedCount(),
		Total:        len(s.working),
		Questions:    make([]QuestionOutcome, 0, len(s.working)),
	}
	for i, q := range s.working {
		out := QuestionOutcome{
			Prompt:        q.Prompt,
			ChosenOption:  UnansweredLabel,
			CorrectOption: q.Options[q.CorrectAnswer],
		}
		if a := s.answers[i]; a != Unanswered {
			out.ChosenOption = q.Options[a]
			out.Correct = a == q.CorrectAnswer
		}
		res.Questions = append(res.Questions, out)
	}
	return res, nil
}
