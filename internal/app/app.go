package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"signal-hud.klederson.com/internal/config"
	"signal-hud.klederson.com/internal/radar"
	"signal-hud.klederson.com/internal/scan"
	"signal-hud.klederson.com/internal/signal"
	"signal-hud.klederson.com/internal/ui"
)

// StatusProvider reports the scan loops; satisfied by *scan.Scheduler.
type StatusProvider interface {
	Status() []scan.LoopStatus
}

// Options wires the console to the running core.
type Options struct {
	Node    string
	Demo    bool
	Anchors map[string]signal.Position
	Store   *signal.Store
	Tracker *signal.Tracker
	Status  StatusProvider
}

type viewMode int

const (
	viewPlane viewMode = iota
	viewTracked
)

// shared holds state shared between the Bubble Tea model copies and main.go.
// Because Bubble Tea uses value receivers, pointer fields ensure all copies
// see the same underlying data.
type shared struct {
	sweep     *radar.Sweep
	history   *RSSIRing
	lastCycle uuid.UUID
}

// AppModel is the root Bubble Tea model for the signal console.
type AppModel struct {
	width  int
	height int

	opts   Options
	cursor int
	view   viewMode

	shared *shared

	// Cached per tick
	readings []signal.SignalReading
	entries  []ui.Entry
	counts   map[signal.SourceType]int
	tracked  signal.Tracked
	loops    []scan.LoopStatus
}

// New creates a new AppModel.
func New(opts Options) AppModel {
	return AppModel{
		opts: opts,
		shared: &shared{
			sweep:   radar.NewSweep(time.Now()),
			history: NewRSSIRing(config.HistoryLength),
		},
	}
}

func (m AppModel) Init() tea.Cmd {
	return tickCmd()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		m.shared.sweep.Update(time.Time(msg))
		m.refresh()
		return m, tickCmd()
	}

	return m, nil
}

// refresh pulls a fresh snapshot and tracked state.
func (m *AppModel) refresh() {
	snap := m.opts.Store.Snapshot()
	m.readings = snap.All()
	m.entries = BuildEntries(m.readings)
	m.counts = snap.CountBySource()
	m.tracked = m.opts.Tracker.Current()
	if m.opts.Status != nil {
		m.loops = m.opts.Status.Status()
	}

	if m.cursor >= len(m.entries) {
		m.cursor = max(len(m.entries)-1, 0)
	}

	if r := m.tracked.Reading; r != nil && r.Cycle != m.shared.lastCycle {
		m.shared.lastCycle = r.Cycle
		if r.Distance != nil {
			m.shared.history.Push(float64(r.RSSI))
		}
	}
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}

	case "home":
		m.cursor = 0

	case "end":
		if len(m.entries) > 0 {
			m.cursor = len(m.entries) - 1
		}

	case "enter":
		if m.cursor < len(m.entries) {
			r := m.entries[m.cursor].Reading
			m.opts.Tracker.Select(r.Source, r.Identifier)
			m.tracked = m.opts.Tracker.Resolve(m.opts.Store.Snapshot())
			m.resetHistory()
			m.view = viewTracked
		}

	case "c", "C":
		m.opts.Tracker.Clear()
		m.tracked = m.opts.Tracker.Current()
		m.resetHistory()
		m.view = viewPlane

	case "tab":
		if m.view == viewPlane {
			m.view = viewTracked
		} else {
			m.view = viewPlane
		}
	}

	return m, nil
}

func (m *AppModel) resetHistory() {
	m.shared.history.Reset()
	m.shared.lastCycle = uuid.Nil
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing " + config.AppName + "..."
	}

	bodyH := m.height - 2 // menu + status
	if bodyH < 5 {
		bodyH = 5
	}
	listW := max(m.width/3, 30)
	mainW := m.width - listW
	if mainW < 30 {
		mainW = 30
	}

	menuBar := ui.RenderMenuBar(m.width, m.opts.Node, m.opts.Demo)

	scene := radar.Scene{
		Anchors:  m.opts.Anchors,
		Local:    m.opts.Node,
		Readings: m.readings,
		Tracked:  m.tracked,
	}

	var mainPanel string
	if m.view == viewTracked {
		var local *signal.Position
		if p, ok := m.opts.Anchors[m.opts.Node]; ok {
			local = &p
		}
		mainPanel = ui.RenderTrackedPanel(m.tracked, local, mainW, bodyH, m.shared.history.Values())
	} else {
		innerW := max(mainW-4, 5)
		innerH := max(bodyH-3, 3) // border + legend
		plane := radar.Render(innerW, innerH, scene, m.shared.sweep)
		mainPanel = ui.RenderPlanePanel(mainW, bodyH, plane, radar.RenderLegend(innerW))
	}

	signalList := ui.RenderSignalList(m.entries, listW, bodyH, m.cursor, m.tracked)

	loops := make([]ui.LoopSummary, len(m.loops))
	for i, l := range m.loops {
		loops[i] = ui.LoopSummary{Source: l.Source, State: l.State, Failing: l.LastError != ""}
	}
	statusBar := ui.RenderStatusBar(m.width, loops, m.counts, radar.ScaleLabel(scene))

	return ui.ComposeLayout(menuBar, mainPanel, signalList, statusBar)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(config.TargetFPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
