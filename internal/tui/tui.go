// Package tui provides a Bubble Tea terminal user interface for the courier.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/handiism/bandcamp-courier/internal/config"
	"github.com/handiism/bandcamp-courier/internal/download"
	"github.com/handiism/bandcamp-courier/internal/model"
)

// Requester is the requester every job started from the terminal runs as.
const Requester model.RequesterID = "terminal"

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	albumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// Catalog turns links into requests.
type Catalog interface {
	download.Source
	RequestFor(requester model.RequesterID, rawURL string) (model.DownloadRequest, error)
	AlbumURLs(ctx context.Context, rawURL string) ([]string, error)
}

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateInitializing
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	catalog   Catalog
	log       logrus.FieldLogger
	logs      []LogEntry
	releases  []string
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	manager *download.Manager
	events  chan download.ProgressEvent

	// Download progress
	totalFiles   int32
	fetchedFiles int32
	packedBytes  int64
	delivered    []*download.Delivery

	// Options
	discography bool
	playlist    bool
	verbose     bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(settings *config.Settings, catalog Catalog, log logrus.FieldLogger) Model {
	ti := textinput.New()
	ti.Placeholder = "https://artist.bandcamp.com/album/name"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		catalog:   catalog,
		log:       log,
		playlist:  settings.CreatePlaylist,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg is sent for every progress event of the running jobs.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// InitDoneMsg is sent once the link has been expanded into requests.
	InitDoneMsg struct {
		Releases []string
		Requests []model.DownloadRequest
		Manager  *download.Manager
		Events   chan download.ProgressEvent
		Err      error
	}

	// DownloadDoneMsg is sent when all jobs have finished.
	DownloadDoneMsg struct {
		Deliveries []*download.Delivery
		Err        error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateInitializing {
				m.cancel()
				m.state = StateError
				m.err = context.Canceled
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				m.state = StateInitializing
				return m, tea.Batch(m.initializeDownload(), m.spinner.Tick)
			}

		case "d":
			if m.state == StateInput {
				m.discography = !m.discography
			}

		case "p":
			if m.state == StateInput {
				m.playlist = !m.playlist
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.state = StateInput
				m.logs = nil
				m.releases = nil
				m.err = nil
				m.fetchedFiles = 0
				m.totalFiles = 0
				m.packedBytes = 0
				m.delivered = nil
				m.manager = nil
				m.events = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, waitForEvent(m.events))
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > 10 {
			m.logs = m.logs[len(m.logs)-10:]
		}

	case InitDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.releases = msg.Releases
			m.manager = msg.Manager
			m.events = msg.Events
			m.state = StateDownloading
			cmds = append(cmds, m.startDownload(msg.Requests), m.tickProgress(), waitForEvent(m.events))
		}

	case DownloadDoneMsg:
		m.delivered = msg.Deliveries
		if m.manager != nil {
			m.fetchedFiles, m.totalFiles, m.packedBytes = m.manager.GetProgress()
		}
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = context.Canceled
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			m.fetchedFiles, m.totalFiles, m.packedBytes = m.manager.GetProgress()

			var percent float64
			if m.totalFiles > 0 {
				percent = float64(m.fetchedFiles) / float64(m.totalFiles)
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitForEvent delivers the next progress event of the running jobs.
func waitForEvent(events <-chan download.ProgressEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return ProgressMsg{Event: event}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("♪ Bandcamp Courier"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download and pack music from Bandcamp"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateInitializing:
		b.WriteString(m.viewInitializing())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter Bandcamp URL:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Download discography (d)\n", checkbox(m.discography)))
	b.WriteString(fmt.Sprintf("  %s Create playlist (p)\n", checkbox(m.playlist)))
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (v)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output: %s (%s)", m.outputDir(), m.settings.Format)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) outputDir() string {
	if m.settings.DeliveryDir != "" {
		return m.settings.DeliveryDir
	}
	return m.settings.OutputDir
}

func (m Model) viewInitializing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Looking up releases..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if len(m.releases) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("Found %d release(s):", len(m.releases))))
		b.WriteString("\n")
		for _, release := range m.releases {
			b.WriteString(albumStyle.Render(fmt.Sprintf("  ♪ %s", release)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	var percent float64
	if m.totalFiles > 0 {
		percent = float64(m.fetchedFiles) / float64(m.totalFiles)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Packed: %s",
		m.fetchedFiles,
		m.totalFiles,
		humanize.IBytes(uint64(m.packedBytes)),
	)))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	var files, items int
	for _, d := range m.delivered {
		files += len(d.Files)
		items += d.Items
	}

	box := boxStyle.Render(fmt.Sprintf(
		"✓ Download Complete!\n\n"+
			"Releases: %d\n"+
			"Tracks: %d\n"+
			"Files: %d\n"+
			"Size: %s",
		len(m.delivered),
		items,
		files,
		humanize.IBytes(uint64(m.packedBytes)),
	))
	b.WriteString(box)
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("✗ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, entry := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch entry.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + entry.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • d: discography • p: playlist • v: verbose • esc: quit"
	case StateInitializing, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// initializeDownload expands the entered link into requests and creates
// the manager that will run them.
func (m Model) initializeDownload() tea.Cmd {
	ctx := m.ctx
	link := strings.TrimSpace(m.textInput.Value())
	discography := m.discography

	settings := *m.settings
	settings.CreatePlaylist = m.playlist

	catalog, log := m.catalog, m.log

	return func() tea.Msg {
		releases := []string{link}
		if discography {
			urls, err := catalog.AlbumURLs(ctx, link)
			if err != nil {
				return InitDoneMsg{Err: err}
			}
			releases = urls
		}

		requests := make([]model.DownloadRequest, 0, len(releases))
		for _, release := range releases {
			req, err := catalog.RequestFor(Requester, release)
			if err != nil {
				return InitDoneMsg{Err: err}
			}
			requests = append(requests, req)
		}

		events := make(chan download.ProgressEvent, 64)
		manager := download.NewManager(&settings, catalog, download.Options{
			Log: log,
			OnProgress: func(event download.ProgressEvent) {
				select {
				case events <- event:
				default:
					// the UI only shows the latest lines
				}
			},
		})

		return InitDoneMsg{
			Releases: releases,
			Requests: requests,
			Manager:  manager,
			Events:   events,
		}
	}
}

// startDownload runs the requests one after another. The jobs share a
// requester, so they cannot run side by side.
func (m Model) startDownload(requests []model.DownloadRequest) tea.Cmd {
	ctx, manager := m.ctx, m.manager

	return func() tea.Msg {
		var (
			deliveries []*download.Delivery
			errs       []error
		)
		for _, req := range requests {
			if ctx.Err() != nil {
				break
			}
			d, err := manager.Run(ctx, req)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", req.Target(), err))
				continue
			}
			deliveries = append(deliveries, d)
		}

		msg := DownloadDoneMsg{Deliveries: deliveries}
		if len(deliveries) == 0 {
			msg.Err = errors.Join(errs...)
		}
		return msg
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, catalog Catalog, log logrus.FieldLogger) error {
	p := tea.NewProgram(NewModel(settings, catalog, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
