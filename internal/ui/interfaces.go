package ui

type Controller interface {
	OnStartQuiz(quizID string)
	OnSelectOption(questionIndex, optionIndex int)
	OnPrevQuestion()
	OnNextQuestion()
	OnCheck()
	OnReset()
	OnStartTimer()
	OnClockTick()
	OnExport()
	OnToggleExplanations()
	OnToggleInstantFeedback()
	OnCycleCountMode()
	OnBackToHome()
	OnQuit()
}

type View interface {
	Run() error
	Stop()
	SetController(Controller)
	SetScreen(screen Screen)
	SetHomeState(state HomeState)
	SetCatalog(quizzes []QuizSummary)
	SetQuizState(QuizState)
	SetResult(state ResultState)
	SetConfetti(active bool)
	FlashStatus(msg string)
	RequestDraw()
}

type Screen int

const (
	ScreenHome Screen = iota
	ScreenQuiz
)

type LayoutMode int

const (
	LayoutWide LayoutMode = iota
	LayoutCompact
	LayoutTooSmall
)

type QuizSummary struct {
	QuizID      string
	Title       string
	Description string
	Category    string
	Questions   int
	BestScore   int
}

type HomeState struct {
	ShowExplanations bool
	InstantFeedback  bool
	TimerMinutes     int
	CountModeLabel   string
	Runs             int
	Checked          int
	BestScore        int
	AvgScore         float64
	LastQuizID       string
	LoadFailures     []string
	Tip              string
}

type OptionRow struct {
	Text     string
	Selected bool
	// Correct is meaningful only once the run is checked.
	Correct bool
}

type QuizState struct {
	QuizID           string
	Title            string
	ModeLabel        string
	Checked          bool
	Position         int
	Total            int
	Answered         int
	Prompt           string
	Image            string
	Options          []OptionRow
	Explanation      string
	ShowExplanation  bool
	InstantFeedback  bool
	ProgressPercent  float64
	TimerActive      bool
	RemainingSeconds int
	HighScore        int
}

type ResultState struct {
	Visible      bool
	Score        int
	Correct      int
	Incorrect    int
	Skipped      int
	Total        int
	NewHighScore bool
	Celebrate    bool
}
