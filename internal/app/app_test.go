package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"qcm/internal/quiz"
	"qcm/internal/session"
	"qcm/internal/state"
	"qcm/internal/telemetry"
	"qcm/internal/ui"
)

type fakeStore struct {
	runs        []state.QuizRun
	results     map[int64]state.QuizResult
	resets      map[int64]int
	high        map[string]int
	highUpserts int
	settings    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		results:  map[int64]state.QuizResult{},
		resets:   map[int64]int{},
		high:     map[string]int{},
		settings: map[string]string{},
	}
}

func (f *fakeStore) EnsureSchema(context.Context) error { return nil }
func (f *fakeStore) StartQuizRun(_ context.Context, run state.QuizRun) (int64, error) {
	f.runs = append(f.runs, run)
	return int64(len(f.runs)), nil
}
func (f *fakeStore) RecordQuizResult(_ context.Context, runID int64, result state.QuizResult) error {
	f.results[runID] = result
	return nil
}
func (f *fakeStore) IncrementReset(_ context.Context, runID int64) error {
	f.resets[runID]++
	return nil
}
func (f *fakeStore) UpsertHighScore(_ context.Context, quizID string, percent int, _ time.Time) error {
	f.highUpserts++
	if percent > f.high[quizID] {
		f.high[quizID] = percent
	}
	return nil
}
func (f *fakeStore) GetHighScore(_ context.Context, quizID string) (int, error) {
	return f.high[quizID], nil
}
func (f *fakeStore) GetHighScoreMap(context.Context) (map[string]int, error) {
	out := map[string]int{}
	for k, v := range f.high {
		out[k] = v
	}
	return out, nil
}
func (f *fakeStore) SaveSettings(_ context.Context, values map[string]string) error {
	for k, v := range values {
		f.settings[k] = v
	}
	return nil
}
func (f *fakeStore) LoadSettings(context.Context) (map[string]string, error) {
	return f.settings, nil
}
func (f *fakeStore) GetSummary(context.Context) (state.Summary, error) {
	return state.Summary{QuizRuns: len(f.runs), Checked: len(f.results)}, nil
}
func (f *fakeStore) GetLastRun(context.Context) (*state.LastRun, error) { return nil, nil }
func (f *fakeStore) Close() error                                      { return nil }

type fakeView struct {
	screen  ui.Screen
	quiz    ui.QuizState
	result  ui.ResultState
	home    ui.HomeState
	catalog []ui.QuizSummary
	flashes []string
	burst   bool
	stopped bool
}

func (v *fakeView) Run() error                    { return nil }
func (v *fakeView) Stop()                         { v.stopped = true }
func (v *fakeView) SetController(ui.Controller)   {}
func (v *fakeView) SetScreen(s ui.Screen)         { v.screen = s }
func (v *fakeView) SetHomeState(s ui.HomeState)   { v.home = s }
func (v *fakeView) SetCatalog(q []ui.QuizSummary) { v.catalog = q }
func (v *fakeView) SetQuizState(s ui.QuizState)   { v.quiz = s }
func (v *fakeView) SetResult(s ui.ResultState)    { v.result = s }
func (v *fakeView) SetConfetti(active bool)       { v.burst = active }
func (v *fakeView) FlashStatus(msg string)        { v.flashes = append(v.flashes, msg) }
func (v *fakeView) RequestDraw()                  {}

func testCatalog() *quiz.Catalog {
	return &quiz.Catalog{
		Quizzes: []quiz.Quiz{
			{
				QuizID: "cardio",
				Title:  "Cardiology",
				Questions: []quiz.Question{
					{ID: 1, Prompt: "Systole?", Options: []string{"Contraction", "Relaxation"}, CorrectAnswer: 0},
					{ID: 2, Prompt: "Diastole?", Options: []string{"Contraction", "Relaxation"}, CorrectAnswer: 1},
					{ID: 3, Prompt: "Apex beat?", Options: []string{"2nd space", "5th space"}, CorrectAnswer: 1},
				},
			},
		},
	}
}

func testApp(t *testing.T) (*App, *fakeStore, *fakeView) {
	t.Helper()
	store := newFakeStore()
	view := &fakeView{}
	logger, err := telemetry.NewJSONLogger("", false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	catalog := testCatalog()
	scores, err := newScoreBoard(context.Background(), store, logger)
	if err != nil {
		t.Fatal(err)
	}
	a := &App{
		cfg:          Config{DataDir: t.TempDir(), AdvanceDelayMS: 10, TimerMinutes: 1, Questions: 10},
		logger:       logger,
		store:        store,
		view:         view,
		catalog:      catalog,
		sess:         session.New(catalog, scores),
		scores:       scores,
		sessionID:    "test-session",
		screen:       ui.ScreenHome,
		timerMinutes: 1,
	}
	return a, store, view
}

func TestStartQuizRecordsRunAndSwitchesScreen(t *testing.T) {
	a, store, view := testApp(t)

	a.OnStartQuiz("cardio")

	if len(store.runs) != 1 || store.runs[0].QuizID != "cardio" {
		t.Fatalf("expected one recorded run for cardio, got %#v", store.runs)
	}
	if store.runs[0].QuestionCount != 3 {
		t.Fatalf("expected 3 questions in run, got %d", store.runs[0].QuestionCount)
	}
	if view.screen != ui.ScreenQuiz {
		t.Fatalf("expected quiz screen, got %v", view.screen)
	}
	if view.quiz.Prompt != "Systole?" {
		t.Fatalf("expected first question synced, got %q", view.quiz.Prompt)
	}
}

func TestStartUnknownQuizFlashesError(t *testing.T) {
	a, store, view := testApp(t)

	a.OnStartQuiz("nope")

	if len(store.runs) != 0 {
		t.Fatalf("expected no run for unknown quiz")
	}
	if len(view.flashes) == 0 || !strings.Contains(view.flashes[0], "not found") {
		t.Fatalf("expected not-found flash, got %v", view.flashes)
	}
}

func TestCheckRecordsResultAndShowsModal(t *testing.T) {
	a, store, view := testApp(t)
	a.OnStartQuiz("cardio")

	a.OnSelectOption(0, 0)
	a.OnSelectOption(1, 1)
	a.OnSelectOption(2, 0)
	a.OnCheck()

	res, ok := store.results[1]
	if !ok {
		t.Fatalf("expected recorded result for run 1")
	}
	if res.Score != 67 || res.Correct != 2 || res.Incorrect != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %#v", res)
	}
	if !view.result.Visible || view.result.Score != 67 {
		t.Fatalf("expected result modal with 67%%, got %#v", view.result)
	}
}

func TestCheckWithNoAnswersIsRefused(t *testing.T) {
	a, store, view := testApp(t)
	a.OnStartQuiz("cardio")

	a.OnCheck()

	if len(store.results) != 0 {
		t.Fatalf("expected no recorded result")
	}
	if view.result.Visible {
		t.Fatalf("expected no result modal")
	}
	last := view.flashes[len(view.flashes)-1]
	if !strings.Contains(last, "at least one") {
		t.Fatalf("expected guard flash, got %q", last)
	}
}

func TestTimerExpiryForcesCheckWithNoAnswers(t *testing.T) {
	a, store, view := testApp(t)
	a.OnStartQuiz("cardio")
	a.OnStartTimer()

	for i := 0; i < 60; i++ {
		a.OnClockTick()
	}

	res, ok := store.results[1]
	if !ok {
		t.Fatalf("expected forced check to record a result")
	}
	if res.Score != 0 || res.Skipped != 3 {
		t.Fatalf("unexpected forced result: %#v", res)
	}
	if !view.result.Visible {
		t.Fatalf("expected result modal after expiry")
	}
	if view.quiz.TimerActive {
		t.Fatalf("expected timer disarmed after expiry")
	}
}

func TestPerfectRunSetsHighScoreAndConfetti(t *testing.T) {
	a, store, view := testApp(t)
	a.OnStartQuiz("cardio")

	a.OnSelectOption(0, 0)
	a.OnSelectOption(1, 1)
	a.OnSelectOption(2, 1)
	a.OnCheck()

	if !view.result.NewHighScore {
		t.Fatalf("expected new high score flag, got %#v", view.result)
	}
	if !view.burst {
		t.Fatalf("expected confetti after new high score")
	}
	if store.high["cardio"] != 100 {
		t.Fatalf("expected persisted high score 100, got %d", store.high["cardio"])
	}
}

func TestRepeatScoreDoesNotRewriteHighScore(t *testing.T) {
	a, store, view := testApp(t)
	store.high["cardio"] = 100
	a.scores.best["cardio"] = 100
	a.OnStartQuiz("cardio")

	a.OnSelectOption(0, 0)
	a.OnSelectOption(1, 1)
	a.OnSelectOption(2, 1)
	a.OnCheck()

	if store.highUpserts != 0 {
		t.Fatalf("expected no upsert for a tied score, got %d", store.highUpserts)
	}
	if view.result.NewHighScore {
		t.Fatalf("tied score must not raise the high-score flag")
	}
	if !view.result.Celebrate {
		t.Fatalf("expected celebration for a 100%% run")
	}
}

func TestResetClearsAnswersAndCountsReset(t *testing.T) {
	a, store, view := testApp(t)
	a.OnStartQuiz("cardio")
	a.OnSelectOption(0, 0)
	a.OnCheck()

	a.OnReset()

	if store.resets[1] != 1 {
		t.Fatalf("expected one recorded reset, got %d", store.resets[1])
	}
	if view.result.Visible {
		t.Fatalf("expected result modal cleared on reset")
	}
	if view.quiz.Checked || view.quiz.Answered != 0 {
		t.Fatalf("expected blank in-progress state, got %#v", view.quiz)
	}
}

func TestInstantFeedbackAdvancesAfterDelay(t *testing.T) {
	a, _, _ := testApp(t)
	a.sess.SetInstantFeedback(true)
	a.OnStartQuiz("cardio")

	a.OnSelectOption(0, 0)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		pos := a.sess.Position()
		a.mu.Unlock()
		if pos == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess.Position() != 1 {
		t.Fatalf("expected auto-advance to question 2, at %d", a.sess.Position())
	}
}

func TestManualNavigationCancelsPendingAdvance(t *testing.T) {
	a, _, _ := testApp(t)
	a.sess.SetInstantFeedback(true)
	a.OnStartQuiz("cardio")

	a.OnSelectOption(0, 0)
	a.OnPrevQuestion()

	time.Sleep(50 * time.Millisecond)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess.Position() != 0 {
		t.Fatalf("expected cancelled advance to leave position 0, at %d", a.sess.Position())
	}
}

func TestExportBeforeCheckIsRefused(t *testing.T) {
	a, _, view := testApp(t)
	a.OnStartQuiz("cardio")

	a.OnExport()

	last := view.flashes[len(view.flashes)-1]
	if !strings.Contains(last, "check") {
		t.Fatalf("expected export guard flash, got %q", last)
	}
}

func TestExportWritesCSVFile(t *testing.T) {
	a, _, view := testApp(t)
	a.OnStartQuiz("cardio")
	a.OnSelectOption(0, 0)
	a.OnCheck()

	a.OnExport()

	dir := filepath.Join(a.cfg.DataDir, "exports")
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one export file, err=%v entries=%v", err, entries)
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "quiz-results-cardio-") || !strings.HasSuffix(name, ".csv") {
		t.Fatalf("unexpected export name %q", name)
	}
	body, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "unanswered") {
		t.Fatalf("expected skipped questions marked unanswered:\n%s", body)
	}
	last := view.flashes[len(view.flashes)-1]
	if !strings.HasPrefix(last, "Exported ") {
		t.Fatalf("expected export flash, got %q", last)
	}
}

func TestToggleSettingsPersist(t *testing.T) {
	a, store, _ := testApp(t)

	a.OnToggleExplanations()
	a.OnToggleInstantFeedback()

	if store.settings[settingShowExplanations] != "true" {
		t.Fatalf("expected explanations persisted, got %v", store.settings)
	}
	if store.settings[settingInstantFeedback] != "true" {
		t.Fatalf("expected instant feedback persisted, got %v", store.settings)
	}
}

func TestLoadSettingsRestoresState(t *testing.T) {
	a, store, _ := testApp(t)
	store.settings[settingShowExplanations] = "true"
	store.settings[settingInstantFeedback] = "true"
	store.settings[settingTimerMinutes] = "5"
	store.settings[settingCountKind] = "fixed"
	store.settings[settingCountN] = "2"

	a.loadSettings()

	if !a.showExplanations || !a.sess.InstantFeedback() {
		t.Fatalf("expected toggles restored")
	}
	if a.timerMinutes != 5 {
		t.Fatalf("expected timer minutes restored, got %d", a.timerMinutes)
	}
	a.OnStartQuiz("cardio")
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess.Total() != 2 {
		t.Fatalf("expected restored fixed count to cap working set at 2, got %d", a.sess.Total())
	}
}

func TestNextCountModeCycle(t *testing.T) {
	m := nextCountMode(session.CountMode{Kind: session.CountAll}, 15)
	if m.Kind != session.CountFixed || m.N != 10 {
		t.Fatalf("expected fixed 10, got %#v", m)
	}
	m = nextCountMode(m, 15)
	if m.Kind != session.CountFixed || m.N != 20 {
		t.Fatalf("expected fixed 20, got %#v", m)
	}
	m = nextCountMode(m, 15)
	if m.Kind != session.CountCustom || m.N != 15 {
		t.Fatalf("expected custom 15, got %#v", m)
	}
	m = nextCountMode(m, 15)
	if m.Kind != session.CountAll {
		t.Fatalf("expected wrap to all, got %#v", m)
	}

	m = nextCountMode(session.CountMode{Kind: session.CountFixed, N: 20}, 20)
	if m.Kind != session.CountAll {
		t.Fatalf("expected duplicate custom step skipped, got %#v", m)
	}
}

func TestScoreBoardWritesThroughOnlyOnImprovement(t *testing.T) {
	store := newFakeStore()
	logger, err := telemetry.NewJSONLogger("", false)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	b, err := newScoreBoard(context.Background(), store, logger)
	if err != nil {
		t.Fatal(err)
	}

	b.SetHighScore("cardio", 60)
	b.SetHighScore("cardio", 60)
	b.SetHighScore("cardio", 40)
	if store.highUpserts != 1 {
		t.Fatalf("expected a single upsert, got %d", store.highUpserts)
	}
	b.SetHighScore("cardio", 80)
	if store.highUpserts != 2 || b.HighScore("cardio") != 80 {
		t.Fatalf("expected improvement persisted, got upserts=%d best=%d", store.highUpserts, b.HighScore("cardio"))
	}
}
