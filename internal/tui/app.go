// internal/tui/app.go
//
// The terminal front end for greenlight. It follows bubbletea's Elm
// architecture: App holds all state, Update folds messages into it, View
// renders it. Pipeline work never runs inside Update; it is started from
// tea.Cmds and reported back as messages.

package tui

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/config"
	"github.com/kingrea/greenlight/internal/eventbridge"
	"github.com/kingrea/greenlight/internal/logbook"
	"github.com/kingrea/greenlight/internal/pipeline"
	"github.com/kingrea/greenlight/internal/staleness"
)

// appState represents which screen is showing.
type appState int

const (
	stateMainMenu appState = iota
	stateWizard
)

const (
	menuNew    = "New assessment"
	menuResume = "Resume assessment"
	menuExit   = "Exit"
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithRouter streams pipeline events into the wizard for progressive reveal.
// Without one the wizard only refreshes when an interactive run returns.
func WithRouter(r *eventbridge.Router) AppOption {
	return func(a *App) {
		if r != nil {
			a.router = r
		}
	}
}

// WithLogbook shows the journal tail under the main panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		if lb != nil {
			a.logbook = lb
		}
	}
}

// WithStalenessOptions passes options to every staleness controller the
// wizard creates.
func WithStalenessOptions(opts ...staleness.Option) AppOption {
	return func(a *App) {
		a.stalenessOpts = append(a.stalenessOpts, opts...)
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// App is the root model.
type App struct {
	state    appState
	config   *config.Config
	pipeline *pipeline.Orchestrator
	store    *borrower.Store
	router   *eventbridge.Router
	logbook  *logbook.Logbook
	logger   *slog.Logger

	stalenessOpts []staleness.Option
	wizard        *wizardView

	mainMenu  list.Model
	statusMsg string

	width  int
	height int
}

// menuItem implements list.Item.
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// NewApp builds the root model around an orchestrator and the shared input
// store.
func NewApp(cfg *config.Config, orch *pipeline.Orchestrator, store *borrower.Store, opts ...AppOption) (*App, error) {
	if orch == nil {
		return nil, fmt.Errorf("tui: orchestrator is required")
	}
	if store == nil {
		return nil, fmt.Errorf("tui: input store is required")
	}
	mainMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "◆ GREENLIGHT"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)

	app := &App{
		state:    stateMainMenu,
		config:   cfg,
		pipeline: orch,
		store:    store,
		logger:   slog.Default(),
		mainMenu: mainMenu,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.refreshMainMenu()
	app.logInfo("Session opened")
	return app, nil
}

func (a *App) refreshMainMenu() {
	items := []list.Item{
		menuItem{title: menuNew, desc: "Edit the borrower profile and score it"},
	}
	if a.pipeline.HasNormalized() {
		items = append(items, menuItem{title: menuResume, desc: "Return to the last assessment"})
	}
	items = append(items, menuItem{title: menuExit, desc: "Quit greenlight"})
	a.mainMenu.SetItems(items)
	a.mainMenu.Select(0)
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Note(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		if a.wizard != nil {
			a.wizard.resize(msg.Width)
		}
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.closeWizard()
			return a, tea.Quit
		case "q":
			if a.state == stateMainMenu {
				return a, tea.Quit
			}
		case "esc":
			if a.state == stateWizard && !a.wizard.editing {
				return a.returnToMainMenu()
			}
		case "enter":
			if a.state == stateMainMenu {
				return a.handleMainMenuSelection()
			}
		}
	}

	switch a.state {
	case stateMainMenu:
		var cmd tea.Cmd
		a.mainMenu, cmd = a.mainMenu.Update(msg)
		return a, cmd
	case stateWizard:
		if a.wizard != nil {
			return a, a.wizard.Update(msg)
		}
	}
	return a, nil
}

func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	switch item.title {
	case menuNew:
		return a.openWizard(false)
	case menuResume:
		return a.openWizard(true)
	case menuExit:
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) openWizard(resume bool) (tea.Model, tea.Cmd) {
	wizard, err := newWizardView(a, resume)
	if err != nil {
		a.statusMsg = fmt.Sprintf("Cannot open assessment: %v", err)
		return a, nil
	}
	a.wizard = wizard
	a.state = stateWizard
	a.statusMsg = ""
	if resume {
		a.logInfo("Resumed assessment at %s", wizard.step.title())
	} else {
		a.logInfo("New assessment")
	}
	return a, wizard.Init()
}

func (a *App) closeWizard() {
	if a.wizard == nil {
		return
	}
	a.wizard.close()
	a.wizard = nil
}

func (a *App) returnToMainMenu() (tea.Model, tea.Cmd) {
	a.closeWizard()
	a.state = stateMainMenu
	a.statusMsg = ""
	a.refreshMainMenu()
	return a, nil
}

// View renders the UI.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateMainMenu:
		content = a.mainMenu.View()
	case stateWizard:
		if a.wizard != nil {
			content = a.wizard.View()
		}
	}
	return a.renderFrame(content, width)
}

func (a *App) renderFrame(content string, width int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#4CAF50")).
		MarginBottom(1).
		Render("◆ GREENLIGHT · green credit assessment")
	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, width-4)).
		Render(content)
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	entries, total := a.logbook.Tail(6)
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s (%d entries)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}
