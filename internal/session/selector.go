package session

import (
	"strconv"

	"qcm/internal/quiz"
)

type CountKind int

const (
	CountAll CountKind = iota
	CountFixed
	CountCustom
)

// CountMode controls how many questions a session draws from a quiz.
// Fixed and Custom behave identically for selection; the split only
// matters for presentation and settings persistence.
type CountMode struct {
	Kind CountKind
	N    int
}

func (m CountMode) Label() string {
	switch m.Kind {
	case CountAll:
		return "all"
	case CountCustom:
		return strconv.Itoa(m.N) + " (custom)"
	default:
		return strconv.Itoa(m.N)
	}
}

// WorkingSet derives the ordered question subset for a session: the full
// list for CountAll, otherwise the first min(n, total) questions. A
// requested count below 1 clamps to 1 when the quiz has any questions.
func WorkingSet(q quiz.Quiz, mode CountMode) []quiz.Question {
	if mode.Kind == CountAll {
		return append([]quiz.Question(nil), q.Questions...)
	}
	if len(q.Questions) == 0 {
		return nil
	}
	n := mode.N
	if n < 1 {
		n = 1
	}
	if n > len(q.Questions) {
		n = len(q.Questions)
	}
	return append([]quiz.Question(nil), q.Questions[:n]...)
}
