package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/kelsos/metafetch/internal/metadata"
)

type TaskStatus struct {
	ID            uuid.UUID
	URL           string
	State         metadata.State
	BytesReceived int64
	Summary       string
	Err           error
	StartTime     time.Time
	CompletedTime time.Time
}

type Model struct {
	order        []uuid.UUID
	tasks        map[uuid.UUID]*TaskStatus
	maxBody      int64
	logs         []string
	logPath      string
	spinner      spinner.Model
	progress     progress.Model
	width        int
	height       int
	quit         bool
	errorCount   int
	successCount int
}

// TaskAdded announces a submitted task
type TaskAdded struct {
	ID  uuid.UUID
	URL string
}

// TaskUpdate carries a state transition reported by a task
type TaskUpdate struct {
	ID    uuid.UUID
	State metadata.State
}

// ProgressUpdate carries the body bytes received so far
type ProgressUpdate struct {
	ID    uuid.UUID
	Bytes int64
}

// TaskFinished carries the collected result of a task
type TaskFinished struct {
	ID      uuid.UUID
	Summary string
	Err     error
}

type LogMessage struct {
	Message string
}

// AllDone is sent once every task has been collected
type AllDone struct{}

func NewModel(maxBody int64, logPath string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		tasks:    make(map[uuid.UUID]*TaskStatus),
		maxBody:  maxBody,
		logPath:  logPath,
		spinner:  sp,
		progress: pr,
		width:    80,
		height:   24,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKeyMsg(msg) {
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case TaskAdded:
		m = m.handleTaskAdded(msg)

	case TaskUpdate:
		m = m.handleTaskUpdate(msg)

	case ProgressUpdate:
		if status := m.status(msg.ID); status != nil {
			status.BytesReceived = msg.Bytes
		}

	case TaskFinished:
		m = m.handleTaskFinished(msg)

	case LogMessage:
		m = m.handleLogMessage(msg)

	case AllDone:
		m = m.handleLogMessage(LogMessage{Message: fmt.Sprintf("Finished: %d ok, %d failed", m.successCount, m.errorCount)})

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.progress.Width = max(msg.Width-60, 10)
	return m
}

// status returns the row for id, creating it when a transition arrives before the announcement
func (m *Model) status(id uuid.UUID) *TaskStatus {
	if status, exists := m.tasks[id]; exists {
		return status
	}
	status := &TaskStatus{ID: id, State: metadata.Idle(), StartTime: time.Now()}
	m.tasks[id] = status
	m.order = append(m.order, id)
	return status
}

func (m Model) handleTaskAdded(msg TaskAdded) Model {
	status := m.status(msg.ID)
	status.URL = msg.URL
	return m
}

func (m Model) handleTaskUpdate(msg TaskUpdate) Model {
	status := m.status(msg.ID)
	// Updates may be reordered on the way in; never step back.
	if msg.State.Kind() < status.State.Kind() {
		return m
	}
	status.State = msg.State
	if msg.State.IsTerminal() {
		status.CompletedTime = time.Now()
	}
	return m
}

func (m Model) handleTaskFinished(msg TaskFinished) Model {
	status := m.status(msg.ID)
	status.Summary = msg.Summary
	status.Err = msg.Err
	if status.CompletedTime.IsZero() {
		status.CompletedTime = time.Now()
	}
	if msg.Err != nil {
		m.errorCount++
		m = m.handleLogMessage(LogMessage{Message: fmt.Sprintf("❌ %s: %v", status.URL, msg.Err)})
	} else {
		m.successCount++
		m = m.handleLogMessage(LogMessage{Message: fmt.Sprintf("✅ %s: %s", status.URL, msg.Summary)})
	}
	return m
}

func (m Model) handleLogMessage(msg LogMessage) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s",
		time.Now().Format("15:04:05"), msg.Message))
	if len(m.logs) > 10 {
		m.logs = m.logs[len(m.logs)-10:]
	}
	return m
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("🔎 Metadata Fetch Monitor"))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	active := 0
	for _, status := range m.tasks {
		if !status.State.IsTerminal() {
			active++
		}
	}
	summary := fmt.Sprintf("Tasks: %d | ✅ Success: %d | ❌ Errors: %d | ⏳ Active: %d",
		len(m.order), m.successCount, m.errorCount, active)
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n\n")

	taskSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var taskList strings.Builder
	taskList.WriteString("📊 Task Status\n")
	taskList.WriteString(strings.Repeat("─", 60) + "\n")

	for _, id := range m.order {
		status := m.tasks[id]
		kind := status.State.Kind()

		line := fmt.Sprintf("%s %-32s %-12s",
			getStateIcon(status.State),
			truncate(status.URL, 32),
			kind)

		if kind == metadata.StateProcessing {
			line = fmt.Sprintf("%s %s %s", line, m.spinner.View(), m.progress.ViewAs(m.fraction(status)))
		}

		if status.Err != nil {
			errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
			line += " " + errorStyle.Render(truncate(status.Err.Error(), 60))
		} else if status.Summary != "" {
			messageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
			line += " " + messageStyle.Render(status.Summary)
		}

		stateStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(getStateColor(status.State)))
		taskList.WriteString(stateStyle.Render(line) + "\n")
	}

	s.WriteString(taskSectionStyle.Render(taskList.String()))
	s.WriteString("\n\n")

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(8)

	var logSection strings.Builder
	logSection.WriteString("📝 Recent Logs\n")
	for _, log := range m.logs {
		logSection.WriteString(log + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "Press 'q' to quit"
	if m.logPath != "" {
		footer += " | Logs: " + m.logPath
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

func (m Model) fraction(status *TaskStatus) float64 {
	if m.maxBody <= 0 {
		return 0
	}
	f := float64(status.BytesReceived) / float64(m.maxBody)
	if f > 1 {
		return 1
	}
	return f
}

func getStateIcon(state metadata.State) string {
	switch state.Kind() {
	case metadata.StateIdle:
		return "⏸"
	case metadata.StateProcessing:
		return "🔄"
	case metadata.StateCompleted:
		if state.Err() != nil {
			return "❌"
		}
		return "✅"
	default:
		return "❓"
	}
}

func getStateColor(state metadata.State) string {
	switch {
	case state.Kind() == metadata.StateIdle:
		return "244"
	case state.Succeeded():
		return "82"
	case state.IsTerminal():
		return "196"
	default:
		return "39"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
