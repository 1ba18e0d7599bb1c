// Package session implements the quiz run state machine: working-set
// selection, answer slots, navigation, the check transition, scoring,
// the countdown timer, and high-score signalling. The package is pure
// state; callers own concurrency and wall-clock scheduling.
package session

import (
	"errors"
	"fmt"
	"math"

	"qcm/internal/quiz"
)

type Phase int

const (
	PhaseInProgress Phase = iota
	PhaseChecked
)

func (p Phase) String() string {
	if p == PhaseChecked {
		return "checked"
	}
	return "in_progress"
}

// Signal is a read-once outcome raised by the check transition.
type Signal int

const (
	SignalNone Signal = iota
	SignalCelebration
	SignalNewHighScore
)

// CelebrationThreshold is the minimum score percentage that earns a
// celebration when no new high score was set.
const CelebrationThreshold = 70

// Unanswered marks an answer slot with no recorded selection.
const Unanswered = -1

var (
	ErrInvalidIndex    = errors.New("invalid index")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrUnknownQuiz     = errors.New("unknown quiz")
	ErrNotChecked      = errors.New("session not checked")
)

// ScoreStore is the durable high-score side channel. Implementations
// keep the stored value monotonically non-decreasing per quiz; Session
// only writes through it when the new score is strictly greater.
type ScoreStore interface {
	HighScore(quizID string) int
	SetHighScore(quizID string, percent int)
}

type Session struct {
	catalog *quiz.Catalog
	scores  ScoreStore

	quizID  string
	current quiz.Quiz
	mode    CountMode
	working []quiz.Question
	answers []int
	pos     int
	phase   Phase

	timerActive bool
	remaining   int

	instantFeedback bool
	advanceSeq      uint64
	advanceTo       int

	signal Signal
}

func New(catalog *quiz.Catalog, scores ScoreStore) *Session {
	return &Session{
		catalog:   catalog,
		scores:    scores,
		mode:      CountMode{Kind: CountAll},
		advanceTo: -1,
	}
}

// SelectQuiz switches the session to the given quiz and rebuilds the
// working set, which discards all answers, the timer, and any pending
// advance.
func (s *Session) SelectQuiz(quizID string) error {
	q, ok := s.catalog.Get(quizID)
	if !ok {
		return fmt.Errorf("select quiz %q: %w", quizID, ErrUnknownQuiz)
	}
	s.quizID = quizID
	s.current = q
	s.rebuild()
	return nil
}

// SetCountMode changes the question count and, if a quiz is active,
// restarts the run from the new working set.
func (s *Session) SetCountMode(mode CountMode) {
	s.mode = mode
	if s.quizID == "" {
		return
	}
	s.rebuild()
}

func (s *Session) rebuild() {
	s.working = WorkingSet(s.current, s.mode)
	s.answers = make([]int, len(s.working))
	for i := range s.answers {
		s.answers[i] = Unanswered
	}
	s.pos = 0
	s.phase = PhaseInProgress
	s.timerActive = false
	s.remaining = 0
	s.signal = SignalNone
	s.cancelAdvance()
}

// Advance is a deferred move to the next question, produced when an
// instant-feedback answer is correct. The caller schedules it and later
// calls ApplyAdvance; a stale token is ignored.
type Advance struct {
	Token  uint64
	Target int
}

// Answer records the selected option for a question. In the checked
// phase the call is a no-op. The returned Advance is non-nil only when
// instant feedback is on, the answer is correct, and a later question
// exists.
func (s *Session) Answer(questionIndex, optionIndex int) (*Advance, error) {
	if questionIndex < 0 || questionIndex >= len(s.working) {
		return nil, fmt.Errorf("answer question %d of %d: %w", questionIndex, len(s.working), ErrInvalidIndex)
	}
	q := s.working[questionIndex]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return nil, fmt.Errorf("answer option %d of %d: %w", optionIndex, len(q.Options), ErrInvalidIndex)
	}
	if s.phase == PhaseChecked {
		return nil, nil
	}
	s.answers[questionIndex] = optionIndex
	if s.instantFeedback && optionIndex == q.CorrectAnswer && questionIndex < len(s.working)-1 {
		s.advanceSeq++
		s.advanceTo = questionIndex + 1
		return &Advance{Token: s.advanceSeq, Target: s.advanceTo}, nil
	}
	return nil, nil
}

// ApplyAdvance moves to the pending target if the token is still
// current and the session has not been checked since it was issued.
func (s *Session) ApplyAdvance(token uint64) bool {
	if s.advanceTo < 0 || token != s.advanceSeq || s.phase == PhaseChecked {
		return false
	}
	target := s.advanceTo
	s.advanceTo = -1
	if target >= len(s.working) {
		return false
	}
	s.pos = target
	return true
}

func (s *Session) cancelAdvance() {
	s.advanceSeq++
	s.advanceTo = -1
}

// GoTo moves the cursor by delta questions, clamped to the working set.
func (s *Session) GoTo(delta int) {
	if len(s.working) == 0 {
		return
	}
	p := s.pos + delta
	if p < 0 {
		p = 0
	}
	if p > len(s.working)-1 {
		p = len(s.working) - 1
	}
	s.pos = p
}

// Check grades the run and enters the checked phase. It refuses when
// the run is already checked, the working set is empty, or nothing has
// been answered yet; timer expiry bypasses those guards via Tick.
func (s *Session) Check() bool {
	if s.phase == PhaseChecked || len(s.working) == 0 || s.AnsweredCount() == 0 {
		return false
	}
	s.finishCheck()
	return true
}

func (s *Session) finishCheck() {
	s.phase = PhaseChecked
	s.timerActive = false
	s.remaining = 0
	s.cancelAdvance()

	score := s.ScorePercent()
	if s.scores != nil && s.quizID != "" && score > s.scores.HighScore(s.quizID) {
		s.scores.SetHighScore(s.quizID, score)
		s.signal = SignalNewHighScore
		return
	}
	if score >= CelebrationThreshold {
		s.signal = SignalCelebration
	}
}

// Reset returns a checked or partially answered run to a blank
// in-progress state over the same working set.
func (s *Session) Reset() {
	for i := range s.answers {
		s.answers[i] = Unanswered
	}
	s.pos = 0
	s.phase = PhaseInProgress
	s.timerActive = false
	s.remaining = 0
	s.signal = SignalNone
	s.cancelAdvance()
}

// StartTimer arms the countdown with the given duration. Starting while
// checked or while a timer is already running is a no-op.
func (s *Session) StartTimer(durationMinutes int) error {
	if durationMinutes <= 0 {
		return fmt.Errorf("start timer %d minutes: %w", durationMinutes, ErrInvalidDuration)
	}
	if s.phase == PhaseChecked || s.timerActive {
		return nil
	}
	s.remaining = durationMinutes * 60
	s.timerActive = true
	return nil
}

// Tick advances the countdown by one second. Reaching zero disarms the
// timer and forces the check transition even with zero answers.
func (s *Session) Tick() {
	if !s.timerActive {
		return
	}
	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		s.timerActive = false
		if s.phase != PhaseChecked {
			s.finishCheck()
		}
	}
}

func (s *Session) SetInstantFeedback(on bool) {
	s.instantFeedback = on
	if !on {
		s.cancelAdvance()
	}
}

// ConsumeSignal returns the outcome of the most recent check and clears
// it, so each check raises at most one observable signal.
func (s *Session) ConsumeSignal() Signal {
	sig := s.signal
	s.signal = SignalNone
	return sig
}

func (s *Session) Phase() Phase          { return s.phase }
func (s *Session) QuizID() string        { return s.quizID }
func (s *Session) Quiz() quiz.Quiz       { return s.current }
func (s *Session) Mode() CountMode       { return s.mode }
func (s *Session) Position() int         { return s.pos }
func (s *Session) Total() int            { return len(s.working) }
func (s *Session) TimerActive() bool     { return s.timerActive }
func (s *Session) Remaining() int        { return s.remaining }
func (s *Session) InstantFeedback() bool { return s.instantFeedback }

// Questions returns the working set. Callers must not mutate it.
func (s *Session) Questions() []quiz.Question { return s.working }

func (s *Session) AnswerAt(questionIndex int) int {
	if questionIndex < 0 || questionIndex >= len(s.answers) {
		return Unanswered
	}
	return s.answers[questionIndex]
}

func (s *Session) AnsweredCount() int {
	n := 0
	for _, a := range s.answers {
		if a != Unanswered {
			n++
		}
	}
	return n
}

func (s *Session) CorrectCount() int {
	n := 0
	for i, a := range s.answers {
		if a != Unanswered && a == s.working[i].CorrectAnswer {
			n++
		}
	}
	return n
}

func (s *Session) IncorrectCount() int {
	n := 0
	for i, a := range s.answers {
		if a != Unanswered && a != s.working[i].CorrectAnswer {
			n++
		}
	}
	return n
}

func (s *Session) SkippedCount() int {
	return len(s.working) - s.AnsweredCount()
}

// ScorePercent is the half-up rounded percentage of correct answers
// over the whole working set, skipped questions included.
func (s *Session) ScorePercent() int {
	if len(s.working) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.CorrectCount()) / float64(len(s.working))))
}

// ProgressPercent is the share of questions answered, for the progress
// bar during the in-progress phase.
func (s *Session) ProgressPercent() float64 {
	if len(s.working) == 0 {
		return 0
	}
	return 100 * float64(s.AnsweredCount()) / float64(len(s.working))
}
