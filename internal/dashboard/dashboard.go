// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package dashboard is a terminal view that keeps a set of cached entities on
// screen. Every frame asks the caches for their current values, which is
// also what makes stale entries refetch.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/staranto/tdctl/internal/loadstate"
	"github.com/staranto/tdctl/internal/notify"
)

// Row is what the dashboard shows for one key.
type Row struct {
	Label     string
	State     loadstate.State
	Content   string
	UpdatedAt time.Time
	HasValue  bool
}

// Source produces the rows of a frame. It is called on the program's
// goroutine and must not block.
type Source func() []Row

// changedMsg tells the model a cache it shows has changed.
type changedMsg struct{}

type tickMsg time.Time

var (
	titleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle  = dimStyle.MarginTop(1)
)

// Model is the bubbletea model of the dashboard.
type Model struct {
	title    string
	source   Source
	refresh  func()
	interval time.Duration
	now      func() time.Time

	spinner spinner.Model
	rows    []Row
	width   int
}

// New returns a model showing the rows of source. refresh is bound to the r
// key and may be nil.
func New(title string, source Source, refresh func(), interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{
		title:    title,
		source:   source,
		refresh:  refresh,
		interval: interval,
		now:      time.Now,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		rows:     source(),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.refresh != nil {
				m.refresh()
			}
			m.rows = m.source()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changedMsg:
		m.rows = m.source()
		return m, nil

	case tickMsg:
		m.rows = m.source()
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	for _, r := range m.rows {
		b.WriteString(m.renderRow(r))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("r refresh • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderRow(r Row) string {
	var status string
	switch s := r.State.(type) {
	case loadstate.Loading:
		status = m.spinner.View() + " loading"
	case loadstate.Error:
		status = errStyle.Render("✗ " + s.Message)
	case loadstate.Finished:
		status = dimStyle.Render("updated " + humanize.RelTime(s.At, m.now(), "ago", "from now"))
	default:
		status = dimStyle.Render("idle")
	}

	line := fmt.Sprintf("%s  %s", labelStyle.Render(r.Label), status)
	if r.HasValue {
		content := r.Content
		if m.width > 4 {
			content = lipgloss.NewStyle().Width(m.width - 4).Render(content)
		}
		line += "\n    " + strings.ReplaceAll(content, "\n", "\n    ")
	}
	return line
}

// Options configure Run.
type Options struct {
	Title    string
	Source   Source
	Refresh  func()
	Interval time.Duration
	// Debounce coalesces bursts of change notifications into one redraw.
	Debounce time.Duration
	Output   io.Writer
	Input    io.Reader
}

// Run shows the dashboard until the user quits or ctx is done. subscribe
// connects the dashboard to the notifier of the caches it shows.
func Run(ctx context.Context, opts Options, subscribe func(notify.Sink) (cancel func())) error {
	m := New(opts.Title, opts.Source, opts.Refresh, opts.Interval)

	popts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Output != nil {
		popts = append(popts, tea.WithOutput(opts.Output))
	}
	if opts.Input != nil {
		popts = append(popts, tea.WithInput(opts.Input))
	}
	p := tea.NewProgram(m, popts...)

	if subscribe != nil {
		cancel := subscribe(notify.Debounce(opts.Debounce, notify.SinkFunc(func(notify.Event) {
			p.Send(changedMsg{})
		})))
		defer cancel()
	}

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
