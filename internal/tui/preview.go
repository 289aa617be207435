// Package tui is a terminal preview of an editing session: track lanes, the
// playhead and what each compositor layer is showing, with basic transport
// and edit keys.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cutdeck/cutdeck-agent/internal/clock"
	"github.com/cutdeck/cutdeck-agent/internal/compositor"
	"github.com/cutdeck/cutdeck-agent/internal/editor"
	"github.com/cutdeck/cutdeck-agent/internal/session"
	"github.com/cutdeck/cutdeck-agent/internal/timeline"
)

const (
	defaultWidth  = 72
	minLaneWidth  = 10
	laneLabelSize = 4
	seekStep      = 5.0
	tickInterval  = 100 * time.Millisecond
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	headStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	laneBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Source is the session a preview drives. *session.Session satisfies it.
type Source interface {
	Do(fn func(c *editor.Core)) error
	Snapshot() (session.Snapshot, error)
	Frame() ([]compositor.LayerState, error)
}

type tickMsg time.Time

type Model struct {
	src  Source
	keys keyMap
	help help.Model

	width    int
	snap     session.Snapshot
	layers   []compositor.LayerState
	status   string
	err      error
	quitting bool
}

func New(src Source) Model {
	m := Model{
		src:   src,
		keys:  defaultKeyMap(),
		help:  help.New(),
		width: defaultWidth,
	}
	m.refresh()
	return m
}

// Run shows the preview until the user quits or ctx is done.
func Run(ctx context.Context, src Source) error {
	p := tea.NewProgram(New(src), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.refresh()
		if m.err != nil {
			return m, tea.Quit
		}
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	var status string
	var editErr error
	err := m.src.Do(func(c *editor.Core) {
		switch {
		case key.Matches(msg, m.keys.Play):
			if c.IsPlaying() {
				c.Pause()
			} else {
				c.Play()
			}
		case key.Matches(msg, m.keys.Back):
			c.SeekBy(-seekStep)
		case key.Matches(msg, m.keys.Forward):
			c.SeekBy(seekStep)
		case key.Matches(msg, m.keys.Start):
			c.Stop()
		case key.Matches(msg, m.keys.Cut):
			first, _, err := c.CutAtPlayhead()
			if err != nil {
				editErr = err
				return
			}
			status = fmt.Sprintf("cut at %s", clock.FormatTime(first.End()))
		case key.Matches(msg, m.keys.Undo):
			if !c.Undo() {
				status = "nothing to undo"
				return
			}
			status = "undone"
		case key.Matches(msg, m.keys.Redo):
			if !c.Redo() {
				status = "nothing to redo"
				return
			}
			status = "redone"
		}
	})
	if err != nil {
		m.err = err
		return m, tea.Quit
	}

	switch {
	case editErr != nil:
		m.status = editor.Reason(editErr)
	case status != "":
		m.status = status
	}
	m.refresh()
	return m, nil
}

func (m *Model) refresh() {
	snap, err := m.src.Snapshot()
	if err != nil {
		m.err = err
		return
	}
	layers, err := m.src.Frame()
	if err != nil {
		m.err = err
		return
	}
	m.snap = snap
	m.layers = layers
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return errorStyle.Render("preview stopped: "+m.err.Error()) + "\n"
	}

	var b strings.Builder

	title := m.snap.Title
	if title == "" {
		title = "Untitled session"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.transportLine())
	b.WriteString("\n\n")

	b.WriteString(laneBoxStyle.Render(m.lanes()))
	b.WriteString("\n")
	b.WriteString(m.layerLines())

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) transportLine() string {
	state := "⏸"
	if m.snap.IsPlaying {
		state = "▶"
	}
	line := fmt.Sprintf("%s %s / %s", state, m.snap.TimeLabel, clock.FormatTime(m.snap.ContentDuration))
	if m.snap.PlaybackRate != 0 && m.snap.PlaybackRate != 1 {
		line += fmt.Sprintf("  ×%.2f", m.snap.PlaybackRate)
	}
	if n := m.snap.Tracks.ClipCount(); n > 0 {
		line += dimStyle.Render(fmt.Sprintf("  %d clips", n))
	}
	return line
}

func (m Model) laneWidth() int {
	w := m.width - laneLabelSize - 6
	if w < minLaneWidth {
		return minLaneWidth
	}
	return w
}

func (m Model) lanes() string {
	width := m.laneWidth()
	dur := m.snap.ContentDuration

	rows := make([]string, 0, len(m.snap.Tracks.Video)+1)
	for i, track := range m.snap.Tracks.Video {
		label := fmt.Sprintf("V%-*d", laneLabelSize-1, i+1)
		rows = append(rows, label+renderLane(track, dur, width))
	}
	rows = append(rows, strings.Repeat(" ", laneLabelSize)+renderPlayhead(m.snap.CurrentTime, dur, width))
	return strings.Join(rows, "\n")
}

func (m Model) layerLines() string {
	lines := make([]string, 0, len(m.layers))
	for _, l := range m.layers {
		var desc string
		switch {
		case l.Gap:
			desc = dimStyle.Render("gap")
		case l.Missing:
			desc = errorStyle.Render("source unavailable")
		case l.Failed:
			desc = errorStyle.Render("failed to load " + l.SourceRef)
		case l.Switching:
			desc = "loading " + l.SourceRef
		default:
			desc = fmt.Sprintf("%s @ %.2fs", l.SourceRef, l.Position)
		}
		lines = append(lines, fmt.Sprintf("V%d  %s", l.Track+1, desc))
	}
	return strings.Join(lines, "\n")
}

// laneCells maps each of width columns to the index of the clip covering the
// column's midpoint, or -1 for a gap.
func laneCells(track timeline.Track, dur float64, width int) []int {
	cells := make([]int, width)
	for col := range cells {
		cells[col] = -1
		if dur <= 0 {
			continue
		}
		at := (float64(col) + 0.5) / float64(width) * dur
		for i, c := range track {
			if c.Contains(at) {
				cells[col] = i
				break
			}
		}
	}
	return cells
}

func renderLane(track timeline.Track, dur float64, width int) string {
	var b strings.Builder
	for _, idx := range laneCells(track, dur, width) {
		if idx < 0 {
			b.WriteString(dimStyle.Render("·"))
			continue
		}
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(track[idx].Color.Hex()))
		b.WriteString(style.Render("█"))
	}
	return b.String()
}

// playheadColumn is the lane column holding t.
func playheadColumn(t, dur float64, width int) int {
	if dur <= 0 || t <= 0 {
		return 0
	}
	col := int(t / dur * float64(width))
	if col >= width {
		col = width - 1
	}
	return col
}

func renderPlayhead(t, dur float64, width int) string {
	col := playheadColumn(t, dur, width)
	return strings.Repeat(" ", col) + headStyle.Render("▲")
}
