package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/dayscore/internal/store"
)

type logField struct {
	label string
	input textinput.Model
	float bool
}

// LogFormResult holds the health values entered in the log form.
type LogFormResult struct {
	Health   store.Health
	Canceled bool
}

// LogFormApp asks for the manually logged values of one day.
type LogFormApp struct {
	date   string
	fields []logField
	focus  int
	errMsg string
	result *LogFormResult
}

// NewLogFormApp returns a form prefilled with current.
func NewLogFormApp(date string, current store.Health) *LogFormApp {
	newField := func(label string, value string, float bool) logField {
		ti := textinput.New()
		ti.Placeholder = "0"
		ti.CharLimit = 8
		ti.Width = 10
		if value != "0" {
			ti.SetValue(value)
		}
		return logField{label: label, input: ti, float: float}
	}

	a := &LogFormApp{
		date: date,
		fields: []logField{
			newField("Exercise (min)", strconv.Itoa(current.ExerciseMinutes), false),
			newField("Sleep (hours)", strconv.FormatFloat(current.SleepHours, 'f', -1, 64), true),
			newField("Steps", strconv.Itoa(current.Steps), false),
			newField("Screen time (min)", strconv.Itoa(current.ScreenTimeMinutes), false),
			newField("Productive apps (min)", strconv.Itoa(current.ProductiveAppMinutes), false),
		},
	}
	a.fields[0].input.Focus()
	return a
}

func (a *LogFormApp) Init() tea.Cmd {
	return textinput.Blink
}

func (a *LogFormApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "esc":
			a.result = &LogFormResult{Canceled: true}
			return a, tea.Quit
		case "enter":
			if a.focus < len(a.fields)-1 {
				return a, a.moveFocus(1)
			}
			h, err := a.health()
			if err != nil {
				a.errMsg = err.Error()
				return a, nil
			}
			a.result = &LogFormResult{Health: h}
			return a, tea.Quit
		case "tab", "down":
			return a, a.moveFocus(1)
		case "shift+tab", "up":
			return a, a.moveFocus(-1)
		}
	}

	var cmd tea.Cmd
	a.fields[a.focus].input, cmd = a.fields[a.focus].input.Update(msg)
	return a, cmd
}

func (a *LogFormApp) moveFocus(delta int) tea.Cmd {
	a.fields[a.focus].input.Blur()
	a.focus = (a.focus + delta + len(a.fields)) % len(a.fields)
	return a.fields[a.focus].input.Focus()
}

func (a *LogFormApp) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("dayscore — Log " + a.date))
	b.WriteString("\n")
	for i, f := range a.fields {
		label := fmt.Sprintf("%-22s", f.label)
		if i == a.focus {
			label = highlightStyle.Render(label)
		}
		b.WriteString(label + " " + f.input.View() + "\n")
	}
	if a.errMsg != "" {
		b.WriteString("\n" + errorStyle.Render(a.errMsg) + "\n")
	}
	b.WriteString(helpStyle.Render("Tab/↓: next • Enter: next/save • Esc: cancel"))
	return b.String()
}

// GetResult returns the submitted values, or nil while the form is open.
func (a *LogFormApp) GetResult() *LogFormResult {
	return a.result
}

func (a *LogFormApp) health() (store.Health, error) {
	var h store.Health
	ints := []*int{&h.ExerciseMinutes, nil, &h.Steps, &h.ScreenTimeMinutes, &h.ProductiveAppMinutes}
	for i, f := range a.fields {
		v := strings.TrimSpace(f.input.Value())
		if v == "" {
			continue
		}
		if f.float {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil || x < 0 || x > 24 {
				return store.Health{}, fmt.Errorf("%s: enter hours between 0 and 24", f.label)
			}
			h.SleepHours = x
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return store.Health{}, fmt.Errorf("%s: enter a whole number of at least 0", f.label)
		}
		*ints[i] = n
	}
	return h, nil
}
