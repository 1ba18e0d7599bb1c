package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"qcm/internal/export"
	"qcm/internal/quiz"
	"qcm/internal/session"
	"qcm/internal/state"
	"qcm/internal/telemetry"
	"qcm/internal/ui"

	"github.com/google/uuid"
)

const (
	settingShowExplanations = "v1.show_explanations"
	settingInstantFeedback  = "v1.instant_feedback"
	settingTimerMinutes     = "v1.timer_minutes"
	settingCountKind        = "v1.count_kind"
	settingCountN           = "v1.count_n"
)

type App struct {
	cfg Config

	logger *telemetry.JSONLogger
	store  state.Store
	loader *quiz.FSLoader

	view ui.View

	mu      sync.Mutex
	catalog *quiz.Catalog
	sess    *session.Session
	scores  *scoreBoard

	sessionID string
	runID     int64
	screen    ui.Screen

	showExplanations bool
	timerMinutes     int

	advanceTimer *time.Timer
}

func New(cfg Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewJSONLogger(cfg.LogPath, cfg.DebugLayout)
	if err != nil {
		return nil, err
	}

	store, err := state.NewSQLite(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	loader := quiz.NewLoader()
	catalog, err := loader.LoadCatalog(context.Background(), cfg.BankDir)
	if err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}
	if len(catalog.Quizzes) == 0 {
		_ = store.Close()
		_ = logger.Close()
		return nil, fmt.Errorf("no loadable quizzes under %s", cfg.BankDir)
	}
	for _, f := range catalog.Failures {
		logger.Error("bank.load_failed", map[string]any{"quiz": f.QuizID, "path": f.Path, "error": f.Err.Error()})
	}

	scores, err := newScoreBoard(context.Background(), store, logger)
	if err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	view := ui.New(ui.Options{ASCIIOnly: cfg.ASCIIOnly, Debug: cfg.DebugLayout, StyleVariant: cfg.Theme})

	a := &App{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		loader:       loader,
		view:         view,
		catalog:      catalog,
		sess:         session.New(catalog, scores),
		scores:       scores,
		sessionID:    uuid.NewString(),
		screen:       ui.ScreenHome,
		timerMinutes: cfg.TimerMinutes,
	}
	a.loadSettings()
	view.SetController(a)
	view.SetCatalog(a.catalogSummaries())
	view.SetHomeState(a.homeState())
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app.start", map[string]any{
		"session": a.sessionID,
		"quizzes": len(a.catalog.Quizzes),
		"skipped": len(a.catalog.Failures),
	})
	a.view.SetScreen(ui.ScreenHome)
	return a.view.Run()
}

func (a *App) Close() {
	a.mu.Lock()
	a.stopAdvance()
	a.mu.Unlock()
	_ = a.store.Close()
	_ = a.logger.Close()
}

func (a *App) OnStartQuiz(quizID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.stopAdvance()
	if err := a.sess.SelectQuiz(quizID); err != nil {
		a.view.FlashStatus("quiz not found: " + err.Error())
		return
	}

	runID, err := a.store.StartQuizRun(ctx, state.QuizRun{
		SessionID:     a.sessionID,
		QuizID:        quizID,
		QuestionCount: a.sess.Total(),
		StartTS:       time.Now().UTC(),
	})
	if err != nil {
		a.logger.Error("run.start_failed", map[string]any{"quiz": quizID, "error": err.Error()})
	}
	a.runID = runID
	a.logger.Info("run.start", map[string]any{"quiz": quizID, "run": runID, "questions": a.sess.Total()})

	a.screen = ui.ScreenQuiz
	a.view.SetResult(ui.ResultState{})
	a.view.SetConfetti(false)
	a.syncQuizLocked()
	a.view.SetScreen(ui.ScreenQuiz)
	a.view.FlashStatus("Quiz ready")
}

func (a *App) OnSelectOption(questionIndex, optionIndex int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen != ui.ScreenQuiz {
		return
	}
	adv, err := a.sess.Answer(questionIndex, optionIndex)
	if err != nil {
		a.logger.Error("answer.rejected", map[string]any{"question": questionIndex, "option": optionIndex, "error": err.Error()})
		return
	}
	if adv != nil {
		a.scheduleAdvance(*adv)
	}
	a.syncQuizLocked()
	a.view.RequestDraw()
}

func (a *App) OnPrevQuestion() { a.navigate(-1) }
func (a *App) OnNextQuestion() { a.navigate(1) }

func (a *App) navigate(delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen != ui.ScreenQuiz {
		return
	}
	a.stopAdvance()
	a.sess.GoTo(delta)
	a.syncQuizLocked()
	a.view.RequestDraw()
}

func (a *App) OnCheck() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen != ui.ScreenQuiz {
		return
	}
	if a.sess.Phase() == session.PhaseChecked {
		a.view.FlashStatus("already checked")
		return
	}
	if !a.sess.Check() {
		a.view.FlashStatus("answer at least one question first")
		return
	}
	a.afterCheckLocked()
}

func (a *App) OnReset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen != ui.ScreenQuiz {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.stopAdvance()
	a.sess.Reset()
	if a.runID != 0 {
		_ = a.store.IncrementReset(ctx, a.runID)
	}
	a.view.SetResult(ui.ResultState{})
	a.view.SetConfetti(false)
	a.syncQuizLocked()
	a.view.FlashStatus("Quiz reset")
}

func (a *App) OnStartTimer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen != ui.ScreenQuiz {
		return
	}
	if a.sess.Phase() == session.PhaseChecked {
		a.view.FlashStatus("run already checked")
		return
	}
	if a.sess.TimerActive() {
		a.view.FlashStatus("timer already running")
		return
	}
	if err := a.sess.StartTimer(a.timerMinutes); err != nil {
		a.view.FlashStatus("timer: " + err.Error())
		return
	}
	a.syncQuizLocked()
	a.view.FlashStatus(fmt.Sprintf("Timer started: %d min", a.timerMinutes))
}

// OnClockTick drives the countdown. Expiry runs the same check path as
// a manual check, including the zero-answer case the manual path
// refuses.
func (a *App) OnClockTick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.screen != ui.ScreenQuiz || !a.sess.TimerActive() {
		return
	}
	before := a.sess.Phase()
	a.sess.Tick()
	if before != session.PhaseChecked && a.sess.Phase() == session.PhaseChecked {
		a.view.FlashStatus("Time is up")
		a.afterCheckLocked()
		return
	}
	a.syncQuizLocked()
	a.view.RequestDraw()
}

func (a *App) OnExport() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	res, err := a.sess.Result(now)
	if err != nil {
		a.view.FlashStatus("check the quiz before exporting")
		return
	}

	dir := filepath.Join(a.cfg.DataDir, "exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.view.FlashStatus("export failed: " + err.Error())
		return
	}
	path := filepath.Join(dir, export.Filename(res.QuizID, now))
	f, err := os.Create(path)
	if err != nil {
		a.view.FlashStatus("export failed: " + err.Error())
		return
	}
	if err := export.WriteCSV(f, res); err != nil {
		_ = f.Close()
		a.view.FlashStatus("export failed: " + err.Error())
		return
	}
	if err := f.Close(); err != nil {
		a.view.FlashStatus("export failed: " + err.Error())
		return
	}
	a.logger.Info("export.written", map[string]any{"quiz": res.QuizID, "path": path})
	a.view.FlashStatus("Exported " + path)
}

func (a *App) OnToggleExplanations() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.showExplanations = !a.showExplanations
	a.persistSettingsLocked()
	a.syncSettingsLocked()
	a.view.FlashStatus("Explanations " + onOff(a.showExplanations))
}

func (a *App) OnToggleInstantFeedback() {
	a.mu.Lock()
	defer a.mu.Unlock()
	on := !a.sess.InstantFeedback()
	a.sess.SetInstantFeedback(on)
	if !on {
		a.stopAdvance()
	}
	a.persistSettingsLocked()
	a.syncSettingsLocked()
	a.view.FlashStatus("Instant feedback " + onOff(on))
}

// OnCycleCountMode steps all -> 10 -> 20 -> custom -> all. The custom
// step is skipped when it duplicates a fixed step.
func (a *App) OnCycleCountMode() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopAdvance()
	next := nextCountMode(a.sess.Mode(), a.cfg.Questions)
	a.sess.SetCountMode(next)
	a.persistSettingsLocked()
	a.syncSettingsLocked()
	if a.screen == ui.ScreenQuiz {
		a.view.SetResult(ui.ResultState{})
		a.view.SetConfetti(false)
		a.syncQuizLocked()
	}
	a.view.FlashStatus("Questions: " + next.Label())
}

func nextCountMode(cur session.CountMode, custom int) session.CountMode {
	switch {
	case cur.Kind == session.CountAll:
		return session.CountMode{Kind: session.CountFixed, N: 10}
	case cur.Kind == session.CountFixed && cur.N == 10:
		return session.CountMode{Kind: session.CountFixed, N: 20}
	case cur.Kind == session.CountFixed && cur.N == 20:
		if custom > 0 && custom != 10 && custom != 20 {
			return session.CountMode{Kind: session.CountCustom, N: custom}
		}
		return session.CountMode{Kind: session.CountAll}
	default:
		return session.CountMode{Kind: session.CountAll}
	}
}

func (a *App) OnBackToHome() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopAdvance()
	a.screen = ui.ScreenHome
	a.view.SetResult(ui.ResultState{})
	a.view.SetConfetti(false)
	a.view.SetCatalog(a.catalogSummaries())
	a.view.SetHomeState(a.homeState())
	a.view.SetScreen(ui.ScreenHome)
}

func (a *App) OnQuit() {
	a.logger.Info("app.quit", map[string]any{"session": a.sessionID})
	a.view.Stop()
}

// afterCheckLocked runs the shared post-check side effects for both the
// manual check and timer expiry. Callers hold a.mu.
func (a *App) afterCheckLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.stopAdvance()
	score := a.sess.ScorePercent()
	if a.runID != 0 {
		err := a.store.RecordQuizResult(ctx, a.runID, state.QuizResult{
			Score:     score,
			Correct:   a.sess.CorrectCount(),
			Incorrect: a.sess.IncorrectCount(),
			Skipped:   a.sess.SkippedCount(),
			CheckedTS: time.Now().UTC(),
		})
		if err != nil {
			a.logger.Error("run.record_failed", map[string]any{"run": a.runID, "error": err.Error()})
		}
	}

	sig := a.sess.ConsumeSignal()
	a.logger.Info("run.checked", map[string]any{
		"quiz":   a.sess.QuizID(),
		"run":    a.runID,
		"score":  score,
		"signal": int(sig),
	})

	a.syncQuizLocked()
	a.view.SetResult(ui.ResultState{
		Visible:      true,
		Score:        score,
		Correct:      a.sess.CorrectCount(),
		Incorrect:    a.sess.IncorrectCount(),
		Skipped:      a.sess.SkippedCount(),
		Total:        a.sess.Total(),
		NewHighScore: sig == session.SignalNewHighScore,
		Celebrate:    sig != session.SignalNone,
	})
	a.view.SetConfetti(sig != session.SignalNone)
	a.view.SetCatalog(a.catalogSummaries())
	a.view.RequestDraw()
}

func (a *App) scheduleAdvance(adv session.Advance) {
	a.stopAdvance()
	delay := time.Duration(a.cfg.AdvanceDelayMS) * time.Millisecond
	a.advanceTimer = time.AfterFunc(delay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.sess.ApplyAdvance(adv.Token) {
			return
		}
		a.syncQuizLocked()
		a.view.RequestDraw()
	})
}

func (a *App) stopAdvance() {
	if a.advanceTimer != nil {
		a.advanceTimer.Stop()
		a.advanceTimer = nil
	}
}

func (a *App) syncQuizLocked() {
	pos := a.sess.Position()
	questions := a.sess.Questions()
	st := ui.QuizState{
		QuizID:           a.sess.QuizID(),
		Title:            a.sess.Quiz().Title,
		ModeLabel:        a.sess.Mode().Label(),
		Checked:          a.sess.Phase() == session.PhaseChecked,
		Position:         pos,
		Total:            a.sess.Total(),
		Answered:         a.sess.AnsweredCount(),
		ShowExplanation:  a.showExplanations,
		InstantFeedback:  a.sess.InstantFeedback(),
		ProgressPercent:  a.sess.ProgressPercent(),
		TimerActive:      a.sess.TimerActive(),
		RemainingSeconds: a.sess.Remaining(),
		HighScore:        a.scores.HighScore(a.sess.QuizID()),
	}
	if pos >= 0 && pos < len(questions) {
		q := questions[pos]
		st.Prompt = q.Prompt
		st.Image = q.Image
		st.Explanation = q.Explanation
		chosen := a.sess.AnswerAt(pos)
		st.Options = make([]ui.OptionRow, 0, len(q.Options))
		for i, opt := range q.Options {
			st.Options = append(st.Options, ui.OptionRow{
				Text:     opt,
				Selected: i == chosen,
				Correct:  i == q.CorrectAnswer,
			})
		}
	}
	a.view.SetQuizState(st)
}

func (a *App) syncSettingsLocked() {
	a.view.SetHomeState(a.homeState())
	if a.screen == ui.ScreenQuiz {
		a.syncQuizLocked()
	}
	a.view.RequestDraw()
}

func (a *App) catalogSummaries() []ui.QuizSummary {
	out := make([]ui.QuizSummary, 0, len(a.catalog.Quizzes))
	for _, q := range a.catalog.Quizzes {
		out = append(out, ui.QuizSummary{
			QuizID:      q.QuizID,
			Title:       q.Title,
			Description: q.Description,
			Category:    q.Category,
			Questions:   len(q.Questions),
			BestScore:   a.scores.HighScore(q.QuizID),
		})
	}
	return out
}

func (a *App) homeState() ui.HomeState {
	summary, _ := a.store.GetSummary(context.Background())
	last, _ := a.store.GetLastRun(context.Background())
	st := ui.HomeState{
		ShowExplanations: a.showExplanations,
		InstantFeedback:  a.sess.InstantFeedback(),
		TimerMinutes:     a.timerMinutes,
		CountModeLabel:   a.sess.Mode().Label(),
		Runs:             summary.QuizRuns,
		Checked:          summary.Checked,
		BestScore:        summary.BestScore,
		AvgScore:         summary.AvgScore,
		Tip:              "Answer with 1-9, then press c to check.",
	}
	if last != nil {
		st.LastQuizID = last.QuizID
	}
	for _, f := range a.catalog.Failures {
		st.LoadFailures = append(st.LoadFailures, fmt.Sprintf("%s: %v", f.QuizID, f.Err))
	}
	return st
}

func (a *App) loadSettings() {
	values, err := a.store.LoadSettings(context.Background())
	if err != nil {
		a.logger.Error("settings.load_failed", map[string]any{"error": err.Error()})
		return
	}
	if v, ok := values[settingShowExplanations]; ok {
		a.showExplanations = v == "true"
	}
	if v, ok := values[settingInstantFeedback]; ok {
		a.sess.SetInstantFeedback(v == "true")
	}
	if v, ok := values[settingTimerMinutes]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			a.timerMinutes = n
		}
	}
	kind, hasKind := values[settingCountKind]
	if hasKind {
		n, _ := strconv.Atoi(values[settingCountN])
		switch kind {
		case "all":
			a.sess.SetCountMode(session.CountMode{Kind: session.CountAll})
		case "fixed":
			if n > 0 {
				a.sess.SetCountMode(session.CountMode{Kind: session.CountFixed, N: n})
			}
		case "custom":
			if n > 0 {
				a.sess.SetCountMode(session.CountMode{Kind: session.CountCustom, N: n})
			}
		}
	}
}

func (a *App) persistSettingsLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mode := a.sess.Mode()
	values := map[string]string{
		settingShowExplanations: strconv.FormatBool(a.showExplanations),
		settingInstantFeedback:  strconv.FormatBool(a.sess.InstantFeedback()),
		settingTimerMinutes:     strconv.Itoa(a.timerMinutes),
		settingCountKind:        countKindLabel(mode.Kind),
		settingCountN:           strconv.Itoa(mode.N),
	}
	if err := a.store.SaveSettings(ctx, values); err != nil {
		a.logger.Error("settings.save_failed", map[string]any{"error": err.Error()})
	}
}

func countKindLabel(k session.CountKind) string {
	switch k {
	case session.CountFixed:
		return "fixed"
	case session.CountCustom:
		return "custom"
	default:
		return "all"
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// scoreBoard is the write-through high-score cache the session grades
// against. The cache keeps the monotonic invariant in memory; the store
// enforces it again on disk.
type scoreBoard struct {
	store  state.Store
	logger *telemetry.JSONLogger
	best   map[string]int
}

func newScoreBoard(ctx context.Context, store state.Store, logger *telemetry.JSONLogger) (*scoreBoard, error) {
	best, err := store.GetHighScoreMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("load high scores: %w", err)
	}
	if best == nil {
		best = map[string]int{}
	}
	return &scoreBoard{store: store, logger: logger, best: best}, nil
}

func (b *scoreBoard) HighScore(quizID string) int {
	return b.best[quizID]
}

func (b *scoreBoard) SetHighScore(quizID string, percent int) {
	if percent <= b.best[quizID] {
		return
	}
	b.best[quizID] = percent
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.store.UpsertHighScore(ctx, quizID, percent, time.Now().UTC()); err != nil {
		b.logger.Error("highscore.persist_failed", map[string]any{"quiz": quizID, "percent": percent, "error": err.Error()})
	}
}
