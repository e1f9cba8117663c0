package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/motionctl/pkg/axis"
	"github.com/gwillem/motionctl/pkg/machine"
)

type MonitorCommand struct {
	Config string `long:"config" short:"c" description:"Config file" default:"motionctl.json"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	statusHeight = 2 // per-axis status line + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// axisColors cycles distinct colors over the attached axes.
var axisColors = []string{
	"196", // red
	"51",  // cyan
	"226", // yellow
	"46",  // green
	"208", // orange
	"201", // magenta
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	faintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	staleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	estopStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// logHook forwards log records into the TUI's log box without ever
// blocking the caller.
type logHook struct {
	ch chan string
}

func (h *logHook) Levels() []log.Level { return log.AllLevels }

func (h *logHook) Fire(e *log.Entry) error {
	line := e.Message
	if name, ok := e.Data["axis"]; ok {
		line = fmt.Sprintf("%v: %s", name, e.Message)
	}
	select {
	case h.ch <- line:
	default:
	}
	return nil
}

type monitorModel struct {
	m        *machine.Machine
	chart    *streamlinechart.Model
	axes     []string // stable display order
	colors   map[string]string
	snap     machine.Snapshot
	width    int
	height   int
	logs     []string
	estopped bool
	quitting bool
}

type snapshotMsg machine.Snapshot
type logMsg string

func waitForSnapshot(p *machine.Poller) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-p.Updates())
	}
}

func waitForLog(ch chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ch)
	}
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - statusHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(mach *machine.Machine) monitorModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)

	axes := mach.Registry().Names()
	sort.Strings(axes)
	colors := make(map[string]string, len(axes))
	for i, name := range axes {
		color := axisColors[i%len(axisColors)]
		colors[name] = color
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return monitorModel{
		m:      mach,
		chart:  &chart,
		axes:   axes,
		colors: colors,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return nil
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "e":
			m.estopped = true
			go m.m.EmergencyStop()
			return m, nil
		}

	case snapshotMsg:
		m.snap = machine.Snapshot(msg)
		for _, name := range m.axes {
			st, ok := m.snap.Get(name)
			if !ok || st.Stale {
				continue
			}
			// Chart the quantity the axis actually regulates:
			// millimeters for a stage, rps for the stepper.
			v := st.Position
			if st.Kind == axis.Rotary {
				v = st.Speed.Current
			}
			m.chart.PushDataSet(name, v)
		}
		m.chart.DrawAll()
		return m, nil

	case logMsg:
		m.addLog(string(msg))
		return m, nil
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("motionctl Monitor"))
	if m.estopped {
		sb.WriteString("  " + estopStyle.Render("EMERGENCY STOPPED"))
	}
	if m.width > 0 {
		sb.WriteString(faintStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = faintStyle.Render("Press 'e' for emergency stop, 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m monitorModel) renderLegend() string {
	var items []string
	for _, name := range m.axes {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.colors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

func (m monitorModel) renderStatus() string {
	var items []string
	for _, name := range m.axes {
		st, ok := m.snap.Get(name)
		if !ok {
			continue
		}
		var item string
		switch st.Kind {
		case axis.Rotary:
			item = fmt.Sprintf("%s %.2f/%.2f rps", name, st.Speed.Current, st.Speed.Target)
		default:
			item = fmt.Sprintf("%s %.2f mm", name, st.Position)
		}
		if st.Busy {
			item += " *"
		}
		if st.Stale {
			item = staleStyle.Render(item + " STALE")
		} else {
			item = faintStyle.Render(item)
		}
		items = append(items, item)
	}
	return strings.Join(items, "   ")
}

func (c *MonitorCommand) Execute(args []string) error {
	mach, err := openMachine(c.Config)
	if err != nil {
		return err
	}
	defer mach.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mach.Run(ctx)

	logCh := make(chan string, 16)
	log.AddHook(&logHook{ch: logCh})
	log.SetOutput(io.Discard) // the TUI owns the terminal

	model := initialMonitorModel(mach)
	p := tea.NewProgram(model, tea.WithAltScreen())

	// Pump snapshots and log lines into the program.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-mach.Poller().Updates():
				p.Send(snapshotMsg(snap))
			case line := <-logCh:
				p.Send(logMsg(line))
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running monitor: %w", err)
	}
	return nil
}
