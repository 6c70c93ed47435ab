package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/dayscore/internal/report"
)

type viewState int

const (
	loadingView viewState = iota
	reportView
	errorView
)

const footerHeight = 2

type reportMsg struct {
	report report.Report
	err    error
}

type thinkingMsg string

// BuildFunc produces the report shown by ReportApp.
type BuildFunc func(ctx context.Context) (report.Report, error)

// ReportApp shows a spinner while a report is built, then the rendered report
// in a scrollable view.
type ReportApp struct {
	state    viewState
	spinner  spinner.Model
	viewport viewport.Model
	sized    bool

	ctx      context.Context
	cancel   context.CancelFunc
	build    BuildFunc
	thinking <-chan string
	thought  string

	report  *report.Report
	errMsg  string
	content string
}

// NewReportApp returns an app that runs build. Text received on thinking, if
// non-nil, is shown under the spinner while the narrative streams in.
func NewReportApp(ctx context.Context, build BuildFunc, thinking <-chan string) *ReportApp {
	s := spinner.New()
	s.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(ctx)
	return &ReportApp{
		state:    loadingView,
		spinner:  s,
		viewport: viewport.New(80, 20),
		ctx:      ctx,
		cancel:   cancel,
		build:    build,
		thinking: thinking,
	}
}

func (a *ReportApp) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.runBuild(), a.waitForThinking())
}

func (a *ReportApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.cancel()
			return a, tea.Quit
		case "q", "esc":
			if a.state != loadingView {
				a.cancel()
				return a, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		a.viewport.Width = msg.Width
		a.viewport.Height = max(1, msg.Height-footerHeight)
		a.sized = true
		return a, nil
	case thinkingMsg:
		if line := lastLine(string(msg)); line != "" {
			a.thought = line
		}
		return a, a.waitForThinking()
	case reportMsg:
		return a.handleReport(msg)
	}

	switch a.state {
	case loadingView:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	case reportView:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	case errorView:
		if _, ok := msg.(tea.KeyMsg); ok {
			return a, tea.Quit
		}
	}
	return a, nil
}

func (a *ReportApp) View() string {
	switch a.state {
	case loadingView:
		v := a.spinner.View() + " Building report..."
		if a.thought != "" {
			v += "\n" + dimStyle.Render(truncate(a.thought, 76))
		}
		return v
	case reportView:
		if !a.sized {
			return a.content
		}
		return a.viewport.View() + "\n" + helpStyle.Render("↑/↓: scroll • q: quit")
	case errorView:
		return errorStyle.Render("Error: ") + a.errMsg + "\n\n" + helpStyle.Render("Press any key to exit")
	}
	return ""
}

// GetReport returns the built report, or nil if building failed or was canceled.
func (a *ReportApp) GetReport() *report.Report {
	return a.report
}

func (a *ReportApp) handleReport(msg reportMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.state = errorView
		a.errMsg = msg.err.Error()
		return a, nil
	}
	a.report = &msg.report
	a.content = RenderReport(msg.report)
	a.viewport.SetContent(a.content)
	a.state = reportView
	return a, nil
}

func (a *ReportApp) runBuild() tea.Cmd {
	return func() tea.Msg {
		r, err := a.build(a.ctx)
		return reportMsg{report: r, err: err}
	}
}

func (a *ReportApp) waitForThinking() tea.Cmd {
	if a.thinking == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case text, ok := <-a.thinking:
			if !ok {
				return nil
			}
			return thinkingMsg(text)
		case <-a.ctx.Done():
			return nil
		}
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
