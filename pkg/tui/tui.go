// Package tui provides a terminal send inspector for reasend
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/routing"
	"github.com/james-see/reasend/pkg/send"
)

var (
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateTracks State = iota
	StateSends
	StateFlags
)

const (
	volumeStep = 0.05
	panStep    = 0.1
	opTimeout  = 5 * time.Second
)

// Row is one routing of the selected track as last read from the host
type Row struct {
	Send    *send.Send
	Peer    string
	Volume  float64
	Pan     float64
	Muted   bool
	Phase   bool
	Mono    bool
	Routing routing.Routing
}

// Model represents the TUI model
type Model struct {
	host    host.Host
	state   State
	back    State
	loading bool
	spinner spinner.Model
	input   textinput.Model

	tracks     []host.Track
	trackIndex int
	rows       []Row
	rowIndex   int

	result string
	status string
	err    error
}

type tracksLoadedMsg struct {
	tracks []host.Track
	err    error
}

type rowsLoadedMsg struct {
	rows   []Row
	status string
	err    error
}

// New creates a new TUI model for h. Listing tracks requires h to
// implement host.Browser.
func New(h host.Host) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(acidGreen)

	ti := textinput.New()
	ti.Placeholder = "12615685  or  2 5 3 0"
	ti.CharLimit = 32
	ti.Width = 32

	return Model{
		host:    h,
		state:   StateTracks,
		loading: true,
		spinner: s,
		input:   ti,
	}
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadTracks())
}

func (m Model) loadTracks() tea.Cmd {
	return func() tea.Msg {
		b, ok := m.host.(host.Browser)
		if !ok {
			return tracksLoadedMsg{err: errors.New("host cannot list tracks")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		tracks, err := b.Tracks(ctx)
		return tracksLoadedMsg{tracks: tracks, err: err}
	}
}

func (m Model) selectedTrack() (host.Track, bool) {
	if m.trackIndex < 0 || m.trackIndex >= len(m.tracks) {
		return host.Track{}, false
	}
	return m.tracks[m.trackIndex], true
}

func (m Model) selectedRow() (Row, bool) {
	if m.rowIndex < 0 || m.rowIndex >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[m.rowIndex], true
}

// readRows reads every send, receive and hardware output of t
func readRows(ctx context.Context, h host.Host, t host.Track) ([]Row, error) {
	b, ok := h.(host.Browser)
	if !ok {
		return nil, errors.New("host cannot count sends")
	}

	var rows []Row
	for _, kind := range []send.Kind{send.KindSend, send.KindReceive, send.KindHardware} {
		code, _ := kind.Code()
		n, err := b.NumSends(ctx, t.ID, code)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			s, err := send.New(h, send.Config{Track: &t, Index: i, Kind: kind})
			if err != nil {
				return nil, err
			}
			row, err := readRow(ctx, s)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", s, err)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func readRow(ctx context.Context, s *send.Send) (Row, error) {
	row := Row{Send: s}
	var err error

	switch s.Kind() {
	case send.KindSend:
		var t host.Track
		if t, err = s.DestTrack(ctx); err != nil {
			return row, err
		}
		row.Peer = "→ " + t.Name
	case send.KindReceive:
		var t host.Track
		if t, err = s.SourceTrack(ctx); err != nil {
			return row, err
		}
		row.Peer = "← " + t.Name
	default:
		var ch routing.AudioChannel
		if ch, err = s.DestChannel(ctx); err != nil {
			return row, err
		}
		row.Peer = fmt.Sprintf("⇥ hw out %d", ch.Index+1)
	}

	if row.Volume, err = s.Volume(ctx); err != nil {
		return row, err
	}
	if row.Pan, err = s.Pan(ctx); err != nil {
		return row, err
	}
	if row.Muted, err = s.IsMuted(ctx); err != nil {
		return row, err
	}
	if row.Phase, err = s.IsPhaseFlipped(ctx); err != nil {
		return row, err
	}
	if row.Mono, err = s.IsMono(ctx); err != nil {
		return row, err
	}
	if row.Routing, err = s.MIDIRouting(ctx); err != nil {
		return row, err
	}
	return row, nil
}

// act runs fn against the host and then re-reads the track's routings
func (m Model) act(status string, fn func(ctx context.Context) error) tea.Cmd {
	t, ok := m.selectedTrack()
	if !ok {
		return nil
	}
	h := m.host
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		if fn != nil {
			if err := fn(ctx); err != nil {
				return rowsLoadedMsg{err: err}
			}
		}
		rows, err := readRows(ctx, h, t)
		return rowsLoadedMsg{rows: rows, status: status, err: err}
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case StateTracks:
			return m.updateTracks(msg)
		case StateSends:
			return m.updateSends(msg)
		case StateFlags:
			return m.updateFlags(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tracksLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.tracks = msg.tracks
		if m.trackIndex >= len(m.tracks) {
			m.trackIndex = 0
		}
		return m, nil

	case rowsLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.rows = msg.rows
		m.status = msg.status
		if m.rowIndex >= len(m.rows) {
			m.rowIndex = max(len(m.rows)-1, 0)
		}
		return m, nil
	}

	if m.state == StateFlags {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) openFlags() (tea.Model, tea.Cmd) {
	m.back = m.state
	m.state = StateFlags
	m.result = ""
	m.input.SetValue("")
	if row, ok := m.selectedRow(); ok && m.back == StateSends {
		m.input.SetValue(strconv.Itoa(routing.Encode(row.Routing)))
	}
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) updateTracks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.trackIndex > 0 {
			m.trackIndex--
		}
	case "down", "j":
		if m.trackIndex < len(m.tracks)-1 {
			m.trackIndex++
		}
	case "r":
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.loadTracks())
	case "enter":
		if _, ok := m.selectedTrack(); !ok {
			return m, nil
		}
		m.state = StateSends
		m.rows = nil
		m.rowIndex = 0
		m.status = ""
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.act("", nil))
	case "f":
		return m.openFlags()
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateSends(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "up", "k":
		if m.rowIndex > 0 {
			m.rowIndex--
		}
		return m, nil
	case "down", "j":
		if m.rowIndex < len(m.rows)-1 {
			m.rowIndex++
		}
		return m, nil
	case "esc", "backspace":
		m.state = StateTracks
		m.err = nil
		return m, nil
	case "f":
		return m.openFlags()
	case "q":
		return m, tea.Quit
	}

	row, ok := m.selectedRow()
	if !ok || m.loading {
		return m, nil
	}
	s := row.Send

	var cmd tea.Cmd
	switch key {
	case "m":
		cmd = m.act(fmt.Sprintf("%s muted: %t", s, !row.Muted), func(ctx context.Context) error {
			return s.SetMuted(ctx, !row.Muted)
		})
	case "p":
		cmd = m.act(fmt.Sprintf("%s phase flipped", s), s.FlipPhase)
	case "o":
		cmd = m.act(fmt.Sprintf("%s mono: %t", s, !row.Mono), func(ctx context.Context) error {
			return s.SetMono(ctx, !row.Mono)
		})
	case "+", "=":
		v := row.Volume + volumeStep
		cmd = m.act(fmt.Sprintf("%s volume %.2f", s, v), func(ctx context.Context) error {
			return s.SetVolume(ctx, v)
		})
	case "-":
		v := max(row.Volume-volumeStep, 0)
		cmd = m.act(fmt.Sprintf("%s volume %.2f", s, v), func(ctx context.Context) error {
			return s.SetVolume(ctx, v)
		})
	case "left", "h":
		p := max(row.Pan-panStep, -1)
		cmd = m.act(fmt.Sprintf("%s pan %.1f", s, p), func(ctx context.Context) error {
			return s.SetPan(ctx, p)
		})
	case "right", "l":
		p := min(row.Pan+panStep, 1)
		cmd = m.act(fmt.Sprintf("%s pan %.1f", s, p), func(ctx context.Context) error {
			return s.SetPan(ctx, p)
		})
	case "d":
		cmd = m.act(fmt.Sprintf("%s deleted", s), s.Delete)
	default:
		return m, nil
	}

	m.loading = true
	return m, tea.Batch(m.spinner.Tick, cmd)
}

func (m Model) updateFlags(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = m.back
		m.input.Blur()
		return m, nil
	case "enter":
		m.result, m.err = calculate(m.input.Value())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// calculate decodes a single flags value, or encodes four
// "src-bus src-ch dst-bus dst-ch" components
func calculate(in string) (string, error) {
	fields := strings.Fields(in)
	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return "", fmt.Errorf("%q is not an integer", f)
		}
		nums[i] = n
	}

	switch len(nums) {
	case 1:
		r := routing.Decode(nums[0])
		return fmt.Sprintf("%d = %s", nums[0], r), nil
	case 4:
		r := routing.Routing{
			Source: routing.Endpoint{Bus: nums[0], Channel: nums[1]},
			Dest:   routing.Endpoint{Bus: nums[2], Channel: nums[3]},
		}
		if err := r.Validate(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %d", r, routing.Encode(r)), nil
	default:
		return "", errors.New("enter one flags value or four routing components")
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateTracks:
		s.WriteString(m.viewTracks())
	case StateSends:
		s.WriteString(m.viewSends())
	case StateFlags:
		s.WriteString(m.viewFlags())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help()))

	return s.String()
}

func (m Model) help() string {
	switch m.state {
	case StateSends:
		return "↑/↓: navigate • m: mute • p: phase • o: mono • +/-: volume • ←/→: pan • d: delete • f: flags • esc: back"
	case StateFlags:
		return "enter: calculate • esc: back"
	default:
		return "↑/↓: navigate • enter: select • f: flags • r: reload • q: quit"
	}
}

func (m Model) viewTracks() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" TRACKS "))
	s.WriteString("\n\n")

	switch {
	case m.loading:
		s.WriteString(fmt.Sprintf("%s Loading tracks...\n", m.spinner.View()))
	case m.err != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.err)))
	case len(m.tracks) == 0:
		s.WriteString(menuStyle.Render("no tracks"))
	}

	if !m.loading {
		for i, t := range m.tracks {
			if i == m.trackIndex {
				s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", t.Name)))
				s.WriteString("\n")
				s.WriteString(lipgloss.NewStyle().Foreground(acidYellow).PaddingLeft(4).Render(t.ID))
			} else {
				s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", t.Name)))
			}
			s.WriteString("\n")
		}
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewSends() string {
	var s strings.Builder

	t, _ := m.selectedTrack()
	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", strings.ToUpper(t.Name))))
	s.WriteString("\n\n")

	if m.loading && m.rows == nil {
		s.WriteString(fmt.Sprintf("%s Reading routings...\n", m.spinner.View()))
		return boxStyle.Render(s.String())
	}
	if len(m.rows) == 0 {
		s.WriteString(menuStyle.Render("no sends, receives or hardware outputs"))
		s.WriteString("\n")
	}

	for i, r := range m.rows {
		line := fmt.Sprintf("%-8s %-20s vol %.2f  pan %+.1f  %s  midi %s",
			r.Send.Kind(), r.Peer, r.Volume, r.Pan, flagsLabel(r), r.Routing)
		if i == m.rowIndex {
			s.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			s.WriteString(menuStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	if m.loading {
		s.WriteString(fmt.Sprintf("\n%s", m.spinner.View()))
	}
	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.err)))
	} else if m.status != "" {
		s.WriteString(statusStyle.Render(m.status))
	}

	return boxStyle.Render(s.String())
}

func flagsLabel(r Row) string {
	label := []rune("---")
	if r.Muted {
		label[0] = 'M'
	}
	if r.Phase {
		label[1] = 'Ø'
	}
	if r.Mono {
		label[2] = '1'
	}
	return string(label)
}

func (m Model) viewFlags() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" MIDI FLAGS "))
	s.WriteString("\n\n")
	s.WriteString(m.input.View())
	s.WriteString("\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.err)))
	} else if m.result != "" {
		s.WriteString(statusStyle.Render(m.result))
	}

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
  ┬─┐┌─┐┌─┐┌─┐┌─┐┌┐┌┌┬┐
  ├┬┘├┤ ├─┤└─┐├┤ │││ ││
  ┴└─└─┘┴ ┴└─┘└─┘┘└┘─┴┘
`
	return lipgloss.NewStyle().Foreground(acidGreen).Render(logo)
}

// Run starts the TUI application against h
func Run(h host.Host) error {
	p := tea.NewProgram(New(h), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
