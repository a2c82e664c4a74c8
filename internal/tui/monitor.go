// Package tui is the live terminal monitor behind `gpiogw watch`.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/gpiogw/internal/api"
	"github.com/mattjoyce/gpiogw/internal/client"
	"github.com/mattjoyce/gpiogw/internal/events"
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	statusQueued  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)
)

const (
	maxActions = 100
	maxEvents  = 50
)

// ActionNode is one queued action as seen through the event stream.
type ActionNode struct {
	ID        string
	Kind      string
	Config    string
	TaskID    string
	Origin    string
	Status    string
	Error     string
	StartTime time.Time
	EndTime   time.Time
}

// API is the subset of the client the monitor uses.
type API interface {
	Stream(ctx context.Context, fn func(events.Event)) error
	Health(ctx context.Context) (api.HealthzResponse, error)
	CancelTask(ctx context.Context, id string) error
}

type Model struct {
	api    API
	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int

	actions   map[string]*ActionNode
	order     []string
	eventLog  []events.Event
	hubEvents chan events.Event
	health    api.HealthzResponse
	lastErr   error
	connected bool

	table table.Model
}

type eventMsg events.Event
type healthMsg api.HealthzResponse
type errMsg struct{ err error }
type streamClosedMsg struct{ err error }

// NewMonitor builds a monitor for the gateway at addr.
func NewMonitor(addr, token string) Model {
	return newModel(client.New(addr, token))
}

func newModel(c API) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Kind", Width: 16},
			{Title: "Config", Width: 22},
			{Title: "Task", Width: 12},
			{Title: "Origin", Width: 14},
			{Title: "Duration", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		api:       c,
		ctx:       ctx,
		cancel:    cancel,
		actions:   make(map[string]*ActionNode),
		hubEvents: make(chan events.Event, 100),
		table:     t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.subscribe(),
		m.receiveNextEvent(),
		m.pollHealth(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "c":
			return m, m.cancelSelected()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width - 6)
		if h := m.height/2 - 6; h > 3 {
			m.table.SetHeight(h)
		}

	case eventMsg:
		m.connected = true
		m.handleEvent(events.Event(msg))
		m.updateTable()
		return m, m.receiveNextEvent()

	case healthMsg:
		m.health = api.HealthzResponse(msg)
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return m.fetchHealth()
		})

	case streamClosedMsg:
		m.connected = false
		if msg.err != nil {
			m.lastErr = msg.err
		}
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg {
			return m.subscribe()()
		})

	case errMsg:
		m.lastErr = msg.err
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return m.fetchHealth()
		})
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(e events.Event) {
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEvents {
		m.eventLog = m.eventLog[:maxEvents]
	}

	var data struct {
		QueueItemID string `json:"queue_item_id"`
		Kind        string `json:"kind"`
		Config      string `json:"config"`
		Origin      string `json:"origin"`
		TaskID      string `json:"task_id"`
		Status      string `json:"status"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.QueueItemID == "" {
		return
	}

	node, ok := m.actions[data.QueueItemID]
	if !ok {
		node = &ActionNode{ID: data.QueueItemID, Kind: data.Kind, Config: data.Config, TaskID: data.TaskID, Origin: data.Origin}
		m.actions[node.ID] = node
		m.order = append([]string{node.ID}, m.order...)
		if len(m.order) > maxActions {
			for _, id := range m.order[maxActions:] {
				delete(m.actions, id)
			}
			m.order = m.order[:maxActions]
		}
	}

	switch e.Type {
	case events.ActionEnqueued:
		if node.Status == "" {
			node.Status = "queued"
		}
	case events.ActionStarted:
		node.Status = "running"
		node.StartTime = e.At
	case events.ActionCompleted, events.ActionFailed:
		node.Status = data.Status
		node.Error = data.Error
		node.EndTime = e.At
	case events.ActionDiscarded:
		node.Status = "discarded"
	case events.TaskDuplicate:
		node.Status = "dropped"
	case events.TaskCancelRequested:
		if node.Status == "running" {
			node.Status = "cancelling"
		}
	}
}

func (m *Model) updateTable() {
	rows := make([]table.Row, 0, len(m.order))
	for _, id := range m.order {
		rows = append(rows, nodeToRow(m.actions[id]))
	}
	m.table.SetRows(rows)
}

func nodeToRow(node *ActionNode) table.Row {
	statusSym := "○"
	switch node.Status {
	case "queued":
		statusSym = statusQueued.Render("○")
	case "running", "cancelling":
		statusSym = statusRunning.Render("◉")
	case "succeeded", "simulated":
		statusSym = statusOK.Render("●")
	case "cancelled":
		statusSym = statusQueued.Render("◌")
	case "failed":
		statusSym = statusFailed.Render("∅")
	case "discarded", "dropped":
		statusSym = statusFailed.Render("◔")
	}

	duration := "-"
	if !node.StartTime.IsZero() {
		end := node.EndTime
		if end.IsZero() {
			end = time.Now()
		}
		duration = end.Sub(node.StartTime).Round(time.Millisecond).String()
	}

	task := node.TaskID
	if task == "" {
		task = "-"
	}
	return table.Row{statusSym, node.Kind, node.Config, task, node.Origin, duration}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	actions := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Actions"),
			m.table.View(),
		),
	)

	eventsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Event Stream"),
			m.renderEvents(),
		),
	)

	help := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(" [q] Quit • [↑/↓] Select • [c] Cancel task")

	return docStyle.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(),
			actions,
			eventsView,
			help,
		),
	)
}

func (m Model) renderHeader() string {
	status := statusOK.Render("RUNNING")
	switch {
	case m.lastErr != nil && m.health.Status == "":
		status = statusFailed.Render("UNREACHABLE")
	case m.health.Status != "ok" && m.health.Status != "":
		status = statusFailed.Render("DEGRADED")
	}

	uptime := time.Duration(m.health.UptimeSeconds) * time.Second
	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Uptime: %s", uptime.String()),
		fmt.Sprintf("Queue: %d", m.health.QueueDepth),
		fmt.Sprintf("Tasks: %d", m.health.ActiveTasks),
		fmt.Sprintf("Handlers: %d", m.health.HandlersLoaded),
	}

	cols := make([]string, len(items))
	w := (m.width - 4) / len(items)
	for i, item := range items {
		cols[i] = lipgloss.NewStyle().Width(w).Render(item)
	}
	return borderStyle.Width(m.width - 4).Render(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
}

func (m Model) renderEvents() string {
	var lines []string
	for i, e := range m.eventLog {
		if i >= 10 {
			break
		}
		ts := e.At.Local().Format("15:04:05")
		lines = append(lines, fmt.Sprintf("%s | %-22s | %s", ts, e.Type, string(e.Data)))
	}
	if len(lines) == 0 {
		if !m.connected {
			return "  Waiting for event stream..."
		}
		return "  No events yet..."
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// selectedTask returns the task id of the highlighted row, if any.
func (m Model) selectedTask() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.order) {
		return ""
	}
	node := m.actions[m.order[i]]
	if node.Status != "running" {
		return ""
	}
	return node.TaskID
}

func (m Model) cancelSelected() tea.Cmd {
	id := m.selectedTask()
	if id == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		defer cancel()
		if err := m.api.CancelTask(ctx, id); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m Model) subscribe() tea.Cmd {
	return func() tea.Msg {
		err := m.api.Stream(m.ctx, func(ev events.Event) {
			select {
			case m.hubEvents <- ev:
			case <-m.ctx.Done():
			}
		})
		if m.ctx.Err() != nil {
			return nil
		}
		return streamClosedMsg{err}
	}
}

func (m Model) receiveNextEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.hubEvents:
			return eventMsg(ev)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m Model) pollHealth() tea.Cmd {
	return func() tea.Msg {
		return m.fetchHealth()
	}
}

func (m Model) fetchHealth() tea.Msg {
	ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
	defer cancel()
	h, err := m.api.Health(ctx)
	if err != nil {
		return errMsg{err}
	}
	return healthMsg(h)
}
