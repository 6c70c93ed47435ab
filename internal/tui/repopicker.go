package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/christopherklint97/dayscore/internal/github"
)

const repoPickerVisible = 15

type repoPickerModel struct {
	repos    []github.Repo
	filtered []int // indices into repos
	selected map[int]bool
	cursor   int
	filter   textinput.Model
	done     bool
	canceled bool
}

// RepoPickerResult holds the repos the user selected, sorted by full name.
type RepoPickerResult struct {
	Repos    []string
	Canceled bool
}

// RepoPickerApp wraps repoPickerModel for standalone use with tea.NewProgram.
type RepoPickerApp struct {
	picker repoPickerModel
	result *RepoPickerResult
}

// NewRepoPickerApp lists repos with the full names in current already checked.
func NewRepoPickerApp(repos []github.Repo, current []string) *RepoPickerApp {
	return &RepoPickerApp{
		picker: newRepoPicker(repos, current),
	}
}

func (a *RepoPickerApp) Init() tea.Cmd {
	return a.picker.Init()
}

func (a *RepoPickerApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := a.picker.Update(msg)
	a.picker = m.(repoPickerModel)

	if a.picker.done || a.picker.canceled {
		a.result = a.picker.Result()
		return a, tea.Quit
	}

	return a, cmd
}

func (a *RepoPickerApp) View() string {
	return a.picker.View()
}

func (a *RepoPickerApp) GetResult() *RepoPickerResult {
	return a.result
}

func newRepoPicker(repos []github.Repo, current []string) repoPickerModel {
	ti := textinput.New()
	ti.Placeholder = "Filter repos..."
	ti.Focus()

	filtered := make([]int, len(repos))
	selected := make(map[int]bool)
	for i, r := range repos {
		filtered[i] = i
		if slices.Contains(current, r.FullName) {
			selected[i] = true
		}
	}

	return repoPickerModel{
		repos:    repos,
		filtered: filtered,
		selected: selected,
		filter:   ti,
	}
}

func (m repoPickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m repoPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.canceled = true
			return m, nil
		case "enter":
			// An empty selection is allowed and turns GitHub tracking off.
			m.done = true
			return m, nil
		case " ":
			if len(m.filtered) > 0 {
				idx := m.filtered[m.cursor]
				if m.selected[idx] {
					delete(m.selected, idx)
				} else {
					m.selected[idx] = true
				}
			}
			return m, nil
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	prevFilter := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)

	// Re-filter on text change
	if m.filter.Value() != prevFilter {
		m.applyFilter()
	}

	return m, cmd
}

func (m *repoPickerModel) applyFilter() {
	query := strings.ToLower(m.filter.Value())
	m.filtered = m.filtered[:0]
	for i, r := range m.repos {
		if query == "" ||
			strings.Contains(strings.ToLower(r.FullName), query) ||
			strings.Contains(strings.ToLower(r.Description), query) {
			m.filtered = append(m.filtered, i)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

func (m repoPickerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Select GitHub Repositories"))
	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(dimStyle.Render("  No repos match filter"))
		b.WriteString("\n")
	} else {
		// Calculate scroll window
		start := 0
		if m.cursor >= repoPickerVisible {
			start = m.cursor - repoPickerVisible + 1
		}
		end := min(start+repoPickerVisible, len(m.filtered))

		for vi := start; vi < end; vi++ {
			idx := m.filtered[vi]
			repo := m.repos[idx]

			cursor := "  "
			if vi == m.cursor {
				cursor = "> "
			}

			check := "[ ]"
			if m.selected[idx] {
				check = "[x]"
			}

			desc := ""
			if repo.Private {
				desc = warningStyle.Render(" (private)")
			}
			if repo.Description != "" {
				desc += dimStyle.Render(" — " + truncate(repo.Description, 50))
			}

			line := fmt.Sprintf("%s%s %s%s", cursor, check, repo.FullName, desc)
			if vi == m.cursor {
				line = highlightStyle.Render(fmt.Sprintf("%s%s ", cursor, check)) + repo.FullName + desc
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	count := len(m.selected)
	b.WriteString(helpStyle.Render(fmt.Sprintf(
		"\n%d selected — Space: toggle — Enter: confirm — Ctrl+C: cancel", count)))

	return b.String()
}

func (m repoPickerModel) Result() *RepoPickerResult {
	if m.canceled {
		return &RepoPickerResult{Canceled: true}
	}
	repos := make([]string, 0, len(m.selected))
	for idx := range m.selected {
		repos = append(repos, m.repos[idx].FullName)
	}
	slices.Sort(repos)
	return &RepoPickerResult{Repos: repos}
}
