package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	librarydto "readsync/internal/modules/library/dto"
	sessiondto "readsync/internal/modules/session/dto"
	statsdto "readsync/internal/modules/stats/dto"
	syncdto "readsync/internal/modules/sync/dto"
	apperrors "readsync/internal/platform/errors"
	"readsync/internal/ui/theme"
)

// Each port is the minimal interface this orchestration layer requires.

type libraryPort interface {
	ListBooks(ctx context.Context) ([]librarydto.BookOutput, error)
}

type sessionPort interface {
	Status(ctx context.Context) (sessiondto.ActiveOutput, error)
	Pause(ctx context.Context) (sessiondto.ActiveOutput, error)
	Resume(ctx context.Context) (sessiondto.ActiveOutput, error)
	Finish(ctx context.Context) (sessiondto.FinishOutput, error)
}

type statsPort interface {
	Show(ctx context.Context) (statsdto.ProfileOutput, []statsdto.AchievementOutput, error)
}

type syncPort interface {
	Status(ctx context.Context) (syncdto.StatusOutput, error)
	SyncNow(ctx context.Context) (syncdto.SyncNowOutput, error)
}

type tabID int

const (
	tabLibrary tabID = iota
	tabSession
	tabStats
	tabSync
	tabCount
)

var tabLabels = [tabCount]string{"Library", "Session", "Stats", "Sync"}

type booksLoadedMsg struct {
	books []librarydto.BookOutput
	err   error
}

type activeLoadedMsg struct {
	active sessiondto.ActiveOutput
	none   bool
	err    error
}

type statsLoadedMsg struct {
	profile      statsdto.ProfileOutput
	achievements []statsdto.AchievementOutput
	err          error
}

type syncLoadedMsg struct {
	status syncdto.StatusOutput
	err    error
}

type syncedMsg struct {
	out syncdto.SyncNowOutput
	err error
}

type sessionFinishedMsg struct {
	out sessiondto.FinishOutput
	err error
}

type keyMap struct {
	Tab     key.Binding
	Refresh key.Binding
	Pause   key.Binding
	Finish  key.Binding
	Sync    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
		Finish:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "finish session")),
		Sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync now")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Refresh, k.Sync, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Refresh, k.Help, k.Quit},
		{k.Pause, k.Finish, k.Sync},
	}
}

type Model struct {
	deviceTag string
	library   libraryPort
	session   sessionPort
	stats     statsPort
	sync      syncPort

	tab    tabID
	keys   keyMap
	help   help.Model
	width  int
	height int

	books        []librarydto.BookOutput
	active       sessiondto.ActiveOutput
	hasActive    bool
	profile      statsdto.ProfileOutput
	achievements []statsdto.AchievementOutput
	syncStatus   syncdto.StatusOutput
	flash        string
	err          error
}

func NewModel(deviceTag string, library libraryPort, session sessionPort, stats statsPort, syncer syncPort) Model {
	return Model{
		deviceTag: deviceTag,
		library:   library,
		session:   session,
		stats:     stats,
		sync:      syncer,
		keys:      defaultKeys(),
		help:      help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.refreshAll()
}

func (m Model) refreshAll() tea.Cmd {
	return tea.Batch(m.loadBooks(), m.loadActive(), m.loadStats(), m.loadSync())
}

func (m Model) loadBooks() tea.Cmd {
	return func() tea.Msg {
		books, err := m.library.ListBooks(context.Background())
		return booksLoadedMsg{books: books, err: err}
	}
}

func (m Model) loadActive() tea.Cmd {
	return func() tea.Msg {
		active, err := m.session.Status(context.Background())
		if errors.Is(err, apperrors.ErrNoActiveSession) {
			return activeLoadedMsg{none: true}
		}
		return activeLoadedMsg{active: active, err: err}
	}
}

func (m Model) loadStats() tea.Cmd {
	return func() tea.Msg {
		profile, achievements, err := m.stats.Show(context.Background())
		return statsLoadedMsg{profile: profile, achievements: achievements, err: err}
	}
}

func (m Model) loadSync() tea.Cmd {
	return func() tea.Msg {
		status, err := m.sync.Status(context.Background())
		return syncLoadedMsg{status: status, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case booksLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.books = msg.books
		}
		return m, nil

	case activeLoadedMsg:
		m.err = msg.err
		m.hasActive = msg.err == nil && !msg.none
		if m.hasActive {
			m.active = msg.active
		}
		return m, nil

	case statsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.profile = msg.profile
			m.achievements = msg.achievements
		}
		return m, nil

	case syncLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.syncStatus = msg.status
		}
		return m, nil

	case syncedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.flash = fmt.Sprintf("synced: %d flushed", msg.out.Flushed)
		return m, m.refreshAll()

	case sessionFinishedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.flash = fmt.Sprintf("finished: %d pages, %d xp", msg.out.PagesRead, msg.out.XP)
		return m, m.refreshAll()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Tab):
		m.tab = (m.tab + 1) % tabCount
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		m.flash = ""
		return m, m.refreshAll()
	case key.Matches(msg, m.keys.Sync):
		return m, func() tea.Msg {
			out, err := m.sync.SyncNow(context.Background())
			return syncedMsg{out: out, err: err}
		}
	case key.Matches(msg, m.keys.Pause):
		if !m.hasActive {
			return m, nil
		}
		paused := m.active.Paused
		return m, func() tea.Msg {
			var (
				active sessiondto.ActiveOutput
				err    error
			)
			if paused {
				active, err = m.session.Resume(context.Background())
			} else {
				active, err = m.session.Pause(context.Background())
			}
			return activeLoadedMsg{active: active, err: err}
		}
	case key.Matches(msg, m.keys.Finish):
		if !m.hasActive {
			return m, nil
		}
		return m, func() tea.Msg {
			out, err := m.session.Finish(context.Background())
			return sessionFinishedMsg{out: out, err: err}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var body string
	switch m.tab {
	case tabLibrary:
		body = m.viewLibrary()
	case tabSession:
		body = m.viewSession()
	case tabStats:
		body = m.viewStats()
	case tabSync:
		body = m.viewSync()
	}

	header := m.viewTabs()
	footer := m.viewFooter()
	return theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
}

func (m Model) viewTabs() string {
	parts := make([]string, 0, tabCount)
	for i, label := range tabLabels {
		if tabID(i) == m.tab {
			parts = append(parts, theme.Title.Render("["+label+"]"))
		} else {
			parts = append(parts, theme.Muted.Render(" "+label+" "))
		}
	}
	parts = append(parts, theme.Muted.Render("  "+m.deviceTag))
	return strings.Join(parts, " ")
}

func (m Model) viewLibrary() string {
	if len(m.books) == 0 {
		return theme.Pane.Render(theme.Muted.Render("no books yet"))
	}
	lines := make([]string, 0, len(m.books))
	for _, b := range m.books {
		progress := fmt.Sprintf("p.%d", b.CurrentPage)
		if b.TotalPages > 0 {
			progress = fmt.Sprintf("p.%d/%d", b.CurrentPage, b.TotalPages)
		}
		lines = append(lines, fmt.Sprintf("%s  %s  %s",
			theme.Title.Render(b.Title), theme.Muted.Render(b.Author), progress))
	}
	return theme.PaneActive.Render(strings.Join(lines, "\n"))
}

func (m Model) viewSession() string {
	if !m.hasActive {
		return theme.Pane.Render(theme.Muted.Render("no session in progress"))
	}
	state := theme.Good.Render("reading")
	if m.active.Paused {
		state = theme.Hot.Render("paused")
	}
	lines := []string{
		theme.Title.Render(m.active.BookTitle),
		fmt.Sprintf("state: %s", state),
		fmt.Sprintf("page:  %d (from %d)", m.active.CurrentPage, m.active.StartPage),
		fmt.Sprintf("since: %s", m.active.StartedAt.Local().Format(time.Kitchen)),
	}
	return theme.PaneActive.Render(strings.Join(lines, "\n"))
}

func (m Model) viewStats() string {
	lines := []string{
		fmt.Sprintf("xp:      %s", theme.Hot.Render(fmt.Sprintf("%d", m.profile.TotalXP))),
		fmt.Sprintf("pages:   %d", m.profile.TotalPages),
		fmt.Sprintf("streak:  %d (best %d)", m.profile.CurrentStreak, m.profile.LongestStreak),
	}
	if m.profile.StreakPaused {
		lines = append(lines, theme.Muted.Render("streak paused"))
	}
	if len(m.achievements) > 0 {
		lines = append(lines, "")
		for _, a := range m.achievements {
			lines = append(lines, theme.Good.Render("★ ")+a.Type)
		}
	}
	return theme.PaneActive.Render(strings.Join(lines, "\n"))
}

func (m Model) viewSync() string {
	role := "mirror"
	if m.syncStatus.StatsAuthority {
		role = "statistics owner"
	}
	last := "never"
	if !m.syncStatus.LastPublishedAt.IsZero() {
		last = m.syncStatus.LastPublishedAt.Local().Format(time.Kitchen)
	}
	lines := []string{
		fmt.Sprintf("device:  %s (%s)", m.syncStatus.Device, role),
		fmt.Sprintf("pending: %d", m.syncStatus.PendingMessages),
		fmt.Sprintf("last publish: %s", last),
	}
	return theme.PaneActive.Render(strings.Join(lines, "\n"))
}

func (m Model) viewFooter() string {
	parts := []string{m.help.View(m.keys)}
	if m.flash != "" {
		parts = append(parts, theme.Good.Render(m.flash))
	}
	if m.err != nil {
		parts = append(parts, theme.Bad.Render(m.err.Error()))
	}
	return strings.Join(parts, "  ")
}
