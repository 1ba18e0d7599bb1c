package ui

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	clog "github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
)

type applyMsg struct {
	fn func(*Root)
}

type drawMsg struct{}
type clockMsg time.Time
type frameMsg time.Time

type quizKeyMap struct {
	Prev         key.Binding
	Next         key.Binding
	Check        key.Binding
	Reset        key.Binding
	Timer        key.Binding
	Export       key.Binding
	Explanations key.Binding
	Instant      key.Binding
	Home         key.Binding
	Quit         key.Binding
}

func (k quizKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Check, k.Reset, k.Timer, k.Export, k.Home}
}

func (k quizKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Prev, k.Next, k.Check, k.Reset}, {k.Timer, k.Export, k.Explanations, k.Instant}, {k.Home, k.Quit}}
}

type Root struct {
	theme        Theme
	ascii        bool
	debug        bool
	ctrl         Controller
	styleVariant string

	mu      sync.Mutex
	program *tea.Program
	running bool

	screen Screen
	layout LayoutMode
	cols   int
	rows   int

	catalog   []QuizSummary
	homeIndex int
	home      HomeState
	quiz      QuizState
	result    ResultState

	statusFlash string

	help      help.Model
	keymap    quizKeyMap
	answered  progress.Model
	timerSpin spinner.Model
	markdown  *glamour.TermRenderer
	logger    *clog.Logger
	burst     *confetti

	drawPending atomic.Bool

	lastInputEvent string
}

type Options struct {
	ASCIIOnly    bool
	Debug        bool
	StyleVariant string
}

func New(opts Options) *Root {
	logger := clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "qcm-ui", Level: clog.WarnLevel})
	if opts.Debug {
		logger.SetLevel(clog.DebugLevel)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(72),
	)
	if err != nil {
		renderer = nil
	}

	h := help.New()
	h.Styles = help.DefaultDarkStyles()
	styleVariant := normalizeStyleVariant(opts.StyleVariant)
	theme := ThemeForVariant(styleVariant)
	answered := progress.New(
		progress.WithWidth(24),
		progress.WithColors(lipgloss.Color("#5EC2FF"), lipgloss.Color("#79E6A6"), lipgloss.Color("#F2D16B")),
		progress.WithScaled(true),
	)
	timerSpin := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Accent),
	)

	r := &Root{
		theme:        theme,
		ascii:        opts.ASCIIOnly,
		debug:        opts.Debug,
		styleVariant: styleVariant,
		screen:       ScreenHome,
		layout:       LayoutWide,
		cols:         120,
		rows:         30,
		help:         h,
		answered:     answered,
		timerSpin:    timerSpin,
		markdown:     renderer,
		logger:       logger,
	}
	r.keymap = quizKeyMap{
		Prev:         key.NewBinding(key.WithKeys("left", "p"), key.WithHelp("←", "Prev")),
		Next:         key.NewBinding(key.WithKeys("right", "n"), key.WithHelp("→", "Next")),
		Check:        key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "Check")),
		Reset:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "Reset")),
		Timer:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "Timer")),
		Export:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "Export")),
		Explanations: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "Explanations")),
		Instant:      key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "Instant")),
		Home:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "Home")),
		Quit:         key.NewBinding(key.WithKeys("ctrl+q"), key.WithHelp("Ctrl+Q", "Quit")),
	}
	return r
}

func (r *Root) Init() tea.Cmd {
	return tea.Batch(clockTickCmd(), spinnerTickCmd(r.timerSpin))
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("update", rec, msg)
			model = r
			cmd = nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		return r, nil
	case applyMsg:
		if msg.fn != nil {
			msg.fn(r)
		}
		return r, r.frameIfNeeded()
	case drawMsg:
		r.drawPending.Store(false)
		return r, nil
	case clockMsg:
		if r.screen == ScreenQuiz {
			r.dispatchController(func(c Controller) { c.OnClockTick() })
		}
		return r, clockTickCmd()
	case frameMsg:
		if r.burst != nil && !r.burst.update() {
			r.burst = nil
		}
		return r, r.frameIfNeeded()
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.timerSpin, cmd = r.timerSpin.Update(msg)
		return r, cmd
	case tea.KeyPressMsg:
		return r.handleKey(msg)
	}
	return r, nil
}

func (r *Root) View() (view tea.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("view", rec, nil)
			width := max(1, r.cols)
			msg := "UI recovered from a rendering panic. Check logs."
			if r.statusFlash == "" {
				r.statusFlash = "Recovered UI panic"
			}
			view = tea.NewView(r.theme.Fail.Width(width).Render(trimForWidth(msg, max(1, width-1))))
		}
	}()

	if r.cols < 1 {
		r.cols = 120
	}
	if r.rows < 1 {
		r.rows = 30
	}

	var base string
	switch r.screen {
	case ScreenHome:
		base = r.renderHome()
	default:
		base = r.renderQuiz()
	}

	if overlay := r.renderResultOverlay(); overlay != "" {
		base = composeOverlay(base, overlay, r.cols, r.rows)
	}
	if r.burst != nil {
		base = r.burst.paint(base, r.cols, r.rows)
	}
	v := tea.NewView(base)
	v.AltScreen = true
	return v
}

func (r *Root) Run() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	p := tea.NewProgram(r)
	r.program = p
	r.running = true
	r.mu.Unlock()

	_, err := p.Run()

	r.mu.Lock()
	r.program = nil
	r.running = false
	r.mu.Unlock()
	return err
}

func (r *Root) Stop() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

func (r *Root) SetController(c Controller) {
	r.ctrl = c
}

func (r *Root) SetScreen(screen Screen) {
	r.apply(func(m *Root) {
		m.screen = screen
		m.statusFlash = ""
		if screen == ScreenHome {
			m.result = ResultState{}
			m.burst = nil
		}
	})
}

func (r *Root) SetHomeState(state HomeState) {
	r.apply(func(m *Root) {
		m.home = state
	})
}

func (r *Root) SetCatalog(quizzes []QuizSummary) {
	r.apply(func(m *Root) {
		m.catalog = append([]QuizSummary(nil), quizzes...)
		if m.homeIndex >= len(m.catalog) {
			m.homeIndex = max(0, len(m.catalog)-1)
		}
	})
}

func (r *Root) SetQuizState(s QuizState) {
	r.apply(func(m *Root) {
		m.quiz = s
	})
}

func (r *Root) SetResult(state ResultState) {
	r.apply(func(m *Root) {
		m.result = state
	})
}

func (r *Root) SetConfetti(active bool) {
	r.apply(func(m *Root) {
		if !active {
			m.burst = nil
			return
		}
		m.burst = newConfetti(m.cols, m.rows, m.ascii, m.theme)
	})
}

func (r *Root) FlashStatus(msg string) {
	r.apply(func(m *Root) {
		m.statusFlash = msg
	})
}

func (r *Root) RequestDraw() {
	r.mu.Lock()
	p := r.program
	running := r.running
	r.mu.Unlock()
	if !running || p == nil {
		return
	}
	if !r.drawPending.CompareAndSwap(false, true) {
		return
	}
	time.AfterFunc(16*time.Millisecond, func() {
		r.mu.Lock()
		p := r.program
		running := r.running
		r.mu.Unlock()
		if !running || p == nil {
			r.drawPending.Store(false)
			return
		}
		p.Send(drawMsg{})
	})
}

func (r *Root) apply(fn func(*Root)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	p := r.program
	running := r.running
	if !running || p == nil {
		fn(r)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	p.Send(applyMsg{fn: fn})
}

func (r *Root) dispatchController(fn func(Controller)) {
	if fn == nil || r.ctrl == nil {
		return
	}
	ctrl := r.ctrl
	go fn(ctrl)
}

func (r *Root) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	r.recordInputEvent(fmt.Sprintf("key:%v mod:%v text:%q", msg.Code, msg.Mod, msg.Text))

	if key.Matches(msg, key.NewBinding(key.WithKeys("ctrl+q"))) {
		r.dispatchController(func(c Controller) { c.OnQuit() })
		return r, nil
	}

	if r.result.Visible {
		return r.handleResultKey(msg)
	}

	switch r.screen {
	case ScreenHome:
		return r.handleHomeKey(msg)
	default:
		return r.handleQuizKey(msg)
	}
}

func (r *Root) handleResultKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.Code {
	case tea.KeyEsc, tea.KeyEnter:
		r.result = ResultState{}
		r.burst = nil
		return r, nil
	case 'e':
		r.dispatchController(func(c Controller) { c.OnExport() })
		return r, nil
	case 'r':
		r.result = ResultState{}
		r.burst = nil
		r.dispatchController(func(c Controller) { c.OnReset() })
		return r, nil
	case 'q':
		if msg.Mod == 0 {
			r.result = ResultState{}
			r.burst = nil
		}
		return r, nil
	}
	return r, nil
}

func (r *Root) handleHomeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.Code {
	case tea.KeyUp:
		r.homeIndex = wrapIndex(r.homeIndex-1, len(r.catalog))
	case tea.KeyDown, tea.KeyTab:
		r.homeIndex = wrapIndex(r.homeIndex+1, len(r.catalog))
	case tea.KeyEnter:
		r.startSelectedQuiz()
	case tea.KeyEsc, 'q':
		r.dispatchController(func(c Controller) { c.OnQuit() })
	case 'x':
		r.dispatchController(func(c Controller) { c.OnToggleExplanations() })
	case 'i':
		r.dispatchController(func(c Controller) { c.OnToggleInstantFeedback() })
	case 'm':
		r.dispatchController(func(c Controller) { c.OnCycleCountMode() })
	default:
		if n, ok := digitIndex(msg); ok && n < len(r.catalog) {
			r.homeIndex = n
			r.startSelectedQuiz()
		}
	}
	return r, nil
}

func (r *Root) handleQuizKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.Code {
	case tea.KeyLeft, 'p':
		r.dispatchController(func(c Controller) { c.OnPrevQuestion() })
	case tea.KeyRight, 'n':
		r.dispatchController(func(c Controller) { c.OnNextQuestion() })
	case 'c':
		r.dispatchController(func(c Controller) { c.OnCheck() })
	case 'r':
		r.dispatchController(func(c Controller) { c.OnReset() })
	case 't':
		r.dispatchController(func(c Controller) { c.OnStartTimer() })
	case 'e':
		r.dispatchController(func(c Controller) { c.OnExport() })
	case 'x':
		r.dispatchController(func(c Controller) { c.OnToggleExplanations() })
	case 'i':
		r.dispatchController(func(c Controller) { c.OnToggleInstantFeedback() })
	case tea.KeyEsc:
		r.dispatchController(func(c Controller) { c.OnBackToHome() })
	default:
		if n, ok := digitIndex(msg); ok {
			pos := r.quiz.Position
			if n < len(r.quiz.Options) {
				r.dispatchController(func(c Controller) { c.OnSelectOption(pos, n) })
			}
		}
	}
	return r, nil
}

func (r *Root) startSelectedQuiz() {
	if len(r.catalog) == 0 {
		return
	}
	q := r.catalog[wrapIndex(r.homeIndex, len(r.catalog))]
	r.dispatchController(func(c Controller) { c.OnStartQuiz(q.QuizID) })
}

func (r *Root) renderHome() string {
	w, h := r.cols, r.rows
	header := r.theme.Header.Width(max(1, w)).Render(trimForWidth("QCM Trainer", max(1, w-1)))

	lines := make([]string, 0, len(r.catalog))
	for i, q := range r.catalog {
		prefix := "  "
		if i == r.homeIndex {
			prefix = "> "
		}
		best := ""
		if q.BestScore > 0 {
			best = fmt.Sprintf("  best %d%%", q.BestScore)
		}
		lines = append(lines, fmt.Sprintf("%s%d. %s (%d)%s", prefix, i+1, q.Title, q.Questions, best))
	}
	if len(lines) == 0 {
		lines = []string{"No quizzes loaded."}
	}
	left := r.drawPanel("Quizzes", lines, min(48, max(30, w/2)), max(8, h-2))

	rightText := r.homeInfoText()
	right := r.drawPanel("Overview", strings.Split(strings.TrimSuffix(rightText, "\n"), "\n"), max(20, w-lipgloss.Width(left)), max(8, h-2))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return header + "\n" + body
}

func (r *Root) homeInfoText() string {
	var b strings.Builder
	if len(r.catalog) > 0 {
		q := r.catalog[wrapIndex(r.homeIndex, len(r.catalog))]
		b.WriteString(q.Title + "\n")
		if q.Category != "" {
			b.WriteString("Category: " + q.Category + "\n")
		}
		b.WriteString(fmt.Sprintf("Questions: %d\n", q.Questions))
		if q.BestScore > 0 {
			b.WriteString(fmt.Sprintf("Best score: %d%%\n", q.BestScore))
		}
		if strings.TrimSpace(q.Description) != "" {
			b.WriteString("\n" + strings.TrimSpace(q.Description) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Settings\n")
	b.WriteString(fmt.Sprintf("[x] Explanations: %s\n", onOff(r.home.ShowExplanations)))
	b.WriteString(fmt.Sprintf("[i] Instant feedback: %s\n", onOff(r.home.InstantFeedback)))
	b.WriteString(fmt.Sprintf("[m] Questions: %s\n", firstNonEmptyStr(r.home.CountModeLabel, "all")))
	b.WriteString(fmt.Sprintf("    Timer: %d min\n", r.home.TimerMinutes))

	b.WriteString("\nStats\n")
	b.WriteString(fmt.Sprintf("Runs: %d  Checked: %d\n", r.home.Runs, r.home.Checked))
	if r.home.Checked > 0 {
		b.WriteString(fmt.Sprintf("Best: %d%%  Avg: %.0f%%\n", r.home.BestScore, r.home.AvgScore))
	}
	if r.home.LastQuizID != "" {
		b.WriteString("Last played: " + r.home.LastQuizID + "\n")
	}

	if len(r.home.LoadFailures) > 0 {
		b.WriteString("\nSkipped banks\n")
		for _, f := range r.home.LoadFailures {
			b.WriteString("! " + f + "\n")
		}
	}
	if strings.TrimSpace(r.home.Tip) != "" {
		b.WriteString("\nTip:\n" + r.home.Tip + "\n")
	}
	b.WriteString("\nEnter or 1-9: start quiz    Esc: quit")
	return b.String()
}

func (r *Root) renderQuiz() string {
	w, h := r.cols, r.rows
	mode := DetermineLayoutMode(w, h)
	r.layout = mode

	if mode == LayoutTooSmall {
		msg := []string{
			"Terminal too small",
			fmt.Sprintf("Current: %dx%d", w, h),
			"Minimum: 70x20",
			"Resize the terminal to continue.",
		}
		panel := r.drawPanel("Resize Required", msg, min(60, w), min(12, h))
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, panel)
	}

	header := r.headerText()
	status := r.statusText()
	bodyH := max(3, h-2)

	questionLines := strings.Split(strings.TrimSuffix(r.questionText(), "\n"), "\n")
	var body string
	if mode == LayoutWide {
		sideW := min(44, max(32, w/3))
		mainW := max(30, w-sideW)
		question := r.drawPanel("Question", questionLines, mainW, bodyH)
		sideLines := strings.Split(strings.TrimSuffix(r.sideText(), "\n"), "\n")
		side := r.drawPanel("Session", sideLines, sideW, bodyH)
		body = lipgloss.JoinHorizontal(lipgloss.Top, question, side)
	} else {
		merged := append(questionLines, "")
		merged = append(merged, strings.Split(strings.TrimSuffix(r.sideText(), "\n"), "\n")...)
		body = r.drawPanel("Question", merged, w, bodyH)
	}

	return header + "\n" + body + "\n" + status
}

func (r *Root) questionText() string {
	q := r.quiz
	var b strings.Builder
	if q.Total == 0 {
		return "No questions in this quiz."
	}
	b.WriteString(fmt.Sprintf("Question %d of %d\n\n", q.Position+1, q.Total))
	b.WriteString(q.Prompt + "\n")
	if strings.TrimSpace(q.Image) != "" {
		b.WriteString("[figure: " + q.Image + "]\n")
	}
	b.WriteString("\n")
	for i, opt := range q.Options {
		marker := "( )"
		if opt.Selected {
			marker = "(*)"
		}
		line := fmt.Sprintf("%s %d. %s", marker, i+1, opt.Text)
		if q.Checked {
			switch {
			case opt.Correct:
				line = r.theme.Pass.Render(r.checkGlyph(true)) + " " + line
			case opt.Selected:
				line = r.theme.Fail.Render(r.checkGlyph(false)) + " " + line
			default:
				line = "  " + line
			}
		}
		b.WriteString(line + "\n")
	}
	if q.Checked && q.ShowExplanation && strings.TrimSpace(q.Explanation) != "" {
		expl := strings.TrimSpace(q.Explanation)
		if r.markdown != nil {
			if rendered, err := r.markdown.Render(expl); err == nil {
				expl = strings.TrimSpace(rendered)
			}
		}
		b.WriteString("\nExplanation\n" + expl + "\n")
	}
	return b.String()
}

func (r *Root) sideText() string {
	q := r.quiz
	var b strings.Builder
	b.WriteString("Progress\n")
	b.WriteString(r.answeredBar(24) + "\n")
	b.WriteString(fmt.Sprintf("%d/%d answered\n", q.Answered, q.Total))

	b.WriteString("\nTimer\n")
	if q.TimerActive {
		b.WriteString(formatClock(q.RemainingSeconds) + " remaining\n")
	} else if q.Checked {
		b.WriteString("stopped\n")
	} else {
		b.WriteString("off  (t to start)\n")
	}

	b.WriteString("\nMode\n")
	b.WriteString(firstNonEmptyStr(q.ModeLabel, "all") + " questions\n")
	if q.InstantFeedback {
		b.WriteString("instant feedback on\n")
	}
	if q.HighScore > 0 {
		b.WriteString(fmt.Sprintf("\nBest score: %d%%\n", q.HighScore))
	}
	if q.Checked {
		b.WriteString("\nRun checked.\n")
		b.WriteString("r: retry    e: export\n")
	} else {
		b.WriteString("\n1-9: answer    c: check\n")
	}
	return b.String()
}

func (r *Root) renderResultOverlay() string {
	if !r.result.Visible {
		return ""
	}
	res := r.result
	lines := []string{}

	banner := fmt.Sprintf("Score: %d%%", res.Score)
	switch {
	case res.NewHighScore:
		banner += "  " + r.theme.Pass.Render("NEW HIGH SCORE")
	case res.Celebrate:
		banner += "  " + r.theme.Pass.Render("Well done!")
	}
	lines = append(lines, banner, "")
	lines = append(lines, r.countBar("Correct  ", res.Correct, res.Total, r.theme.Pass))
	lines = append(lines, r.countBar("Incorrect", res.Incorrect, res.Total, r.theme.Fail))
	lines = append(lines, r.countBar("Skipped  ", res.Skipped, res.Total, r.theme.Pending))
	lines = append(lines, "", "r: Retry    e: Export CSV    Esc: Close")
	w := min(max(52, r.cols-20), r.cols)
	h := len(lines) + 2
	return r.drawPanel("Results", lines, w, h)
}

func (r *Root) countBar(label string, n, total int, style lipgloss.Style) string {
	const barW = 20
	filled := 0
	if total > 0 {
		filled = n * barW / total
	}
	if n > 0 && filled == 0 {
		filled = 1
	}
	block := "█"
	if r.ascii {
		block = "#"
	}
	bar := strings.Repeat(block, filled)
	return fmt.Sprintf("%s %s %d", label, style.Render(bar), n)
}

func (r *Root) headerText() string {
	q := r.quiz
	width := max(1, r.cols-1)
	parts := []string{"QCM Trainer"}
	if strings.TrimSpace(q.Title) != "" {
		parts = append(parts, q.Title)
	}
	if q.Total > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d", q.Position+1, q.Total))
	}
	if q.TimerActive {
		parts = append(parts, formatClock(q.RemainingSeconds))
	}
	if q.Checked {
		parts = append(parts, "checked")
	}
	txt := strings.Join(parts, " | ")
	if len([]rune(txt)) > width && strings.TrimSpace(q.Title) != "" {
		short := trimForWidth(q.Title, max(8, width/3))
		parts[1] = short
		txt = strings.Join(parts, " | ")
	}
	txt = trimForWidth(txt, width)
	if r.debug {
		txt = fmt.Sprintf("%s | %dx%d %v", txt, r.cols, r.rows, r.layout)
		txt = trimForWidth(txt, width)
	}
	return r.theme.Header.Width(max(1, r.cols)).Render(txt)
}

func (r *Root) statusText() string {
	keys := r.help.View(r.keymap)
	if keys == "" {
		keys = "← Prev  → Next  c Check  r Reset  t Timer  e Export  Esc Home"
	}
	if r.quiz.TimerActive {
		keys += " | " + r.theme.Accent.Render(strings.TrimSpace(r.timerSpin.View())+" "+formatClock(r.quiz.RemainingSeconds))
	}
	if r.statusFlash != "" {
		keys += " | " + r.statusFlash
	}
	keys = trimForWidth(keys, max(1, r.cols-1))
	return r.theme.Status.Width(max(1, r.cols)).Render(keys)
}

func (r *Root) answeredBar(width int) string {
	m := r.answered
	m.SetWidth(max(8, width))
	return m.ViewAs(r.quiz.ProgressPercent / 100)
}

func (r *Root) checkGlyph(pass bool) string {
	if r.ascii {
		if pass {
			return "v"
		}
		return "x"
	}
	if pass {
		return "✓"
	}
	return "✗"
}

func (r *Root) drawPanel(title string, lines []string, width, height int) string {
	width = max(4, width)
	height = max(3, height)
	innerW := width - 2
	innerH := height - 2

	h := "─"
	v := "│"
	tl := "┌"
	tr := "┐"
	bl := "└"
	br := "┘"
	if r.ascii {
		h = "-"
		v = "|"
		tl, tr, bl, br = "+", "+", "+", "+"
	}

	top := tl + strings.Repeat(h, innerW) + tr
	if title != "" && innerW > 2 {
		t := " " + title + " "
		runes := []rune(top)
		start := 1
		for i, ch := range []rune(t) {
			pos := start + i
			if pos >= len(runes)-1 {
				break
			}
			runes[pos] = ch
		}
		top = string(runes)
	}

	out := make([]string, 0, height)
	out = append(out, r.theme.PanelBorder.Render(top))
	for row := 0; row < innerH; row++ {
		line := ""
		if row < len(lines) {
			line = lines[row]
		}
		line = padRune(line, innerW)
		out = append(out, r.theme.PanelBorder.Render(v)+r.theme.PanelBody.Render(line)+r.theme.PanelBorder.Render(v))
	}
	out = append(out, r.theme.PanelBorder.Render(bl+strings.Repeat(h, innerW)+br))
	return strings.Join(out, "\n")
}

func (r *Root) frameIfNeeded() tea.Cmd {
	if r.burst == nil {
		return nil
	}
	return frameTickCmd()
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func frameTickCmd() tea.Cmd {
	return tea.Tick(time.Second/confettiFPS, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func spinnerTickCmd(model spinner.Model) tea.Cmd {
	return func() tea.Msg {
		return model.Tick()
	}
}

func digitIndex(msg tea.KeyPressMsg) (int, bool) {
	if msg.Mod != 0 {
		return 0, false
	}
	if msg.Code >= '1' && msg.Code <= '9' {
		return int(msg.Code - '1'), true
	}
	return 0, false
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func firstNonEmptyStr(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func wrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	if i < 0 {
		i = n - 1
	}
	if i >= n {
		i = 0
	}
	return i
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func padRune(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(s, "\t", "    "))
	if len(r) > width {
		r = r[:width]
	}
	if len(r) < width {
		r = append(r, []rune(strings.Repeat(" ", width-len(r)))...)
	}
	return string(r)
}

func composeOverlay(base, overlay string, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return base
	}
	base = ansi.Strip(base)
	overlay = ansi.Strip(overlay)
	baseLines := strings.Split(base, "\n")
	if len(baseLines) < rows {
		pad := make([]string, rows-len(baseLines))
		baseLines = append(baseLines, pad...)
	}
	for i := 0; i < rows; i++ {
		baseLines[i] = padRune(baseLines[i], cols)
	}

	overlayLines := strings.Split(strings.TrimRight(overlay, "\n"), "\n")
	if len(overlayLines) == 0 {
		return strings.Join(baseLines[:rows], "\n")
	}
	ow := 1
	for _, line := range overlayLines {
		lw := len([]rune(line))
		if lw > ow {
			ow = lw
		}
	}
	if ow > cols {
		ow = cols
	}
	oh := len(overlayLines)
	if oh > rows {
		oh = rows
	}
	startRow := (rows - oh) / 2
	startCol := (cols - ow) / 2
	if startCol < 0 {
		startCol = 0
	}

	for i := 0; i < oh; i++ {
		row := startRow + i
		if row < 0 || row >= rows {
			continue
		}
		dst := []rune(baseLines[row])
		src := []rune(overlayLines[i])
		if len(src) > ow {
			src = src[:ow]
		}
		for j := 0; j < ow && startCol+j < len(dst); j++ {
			dst[startCol+j] = ' '
		}
		for j := 0; j < len(src) && startCol+j < len(dst); j++ {
			dst[startCol+j] = src[j]
		}
		baseLines[row] = string(dst)
	}
	return strings.Join(baseLines[:rows], "\n")
}

func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(ansi.Strip(s), "\n", " "))
	if len(r) <= width {
		return string(r)
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func normalizeStyleVariant(v string) string {
	switch strings.TrimSpace(v) {
	case "focus_dark", "warm_paper", "retro_terminal":
		return strings.TrimSpace(v)
	default:
		return "focus_dark"
	}
}

func (r *Root) recordInputEvent(event string) {
	r.lastInputEvent = trimForWidth(strings.TrimSpace(event), 160)
}

func (r *Root) onModelPanic(where string, recovered any, msg tea.Msg) {
	if r.statusFlash == "" {
		r.statusFlash = "Recovered UI panic"
	}

	message := fmt.Sprintf("%v", recovered)
	msgType := ""
	if msg != nil {
		msgType = fmt.Sprintf("%T", msg)
	}
	r.logger.Error("ui.panic_recovered", map[string]any{
		"where":       where,
		"panic":       message,
		"messageType": msgType,
		"screen":      r.screen,
		"layout":      r.layout,
		"cols":        r.cols,
		"rows":        r.rows,
		"last_input":  r.lastInputEvent,
		"stack":       string(debug.Stack()),
	})
}

var _ tea.Model = (*Root)(nil)
var _ View = (*Root)(nil)
