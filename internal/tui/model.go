// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/procgate/internal/batch"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/progress"
)

// TaskStatus represents the current state of an item in the TUI.
type TaskStatus int

// Display statuses.
const (
	StatusQueued TaskStatus = iota
	StatusRunning
	StatusRetrying
	StatusSuccess
	StatusFailed
	StatusCancelled
)

// String returns a string representation of the status.
func (s TaskStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusRetrying:
		return "retrying"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s TaskStatus) done() bool {
	return s >= StatusSuccess
}

// TaskNode is one line of the display.
type TaskNode struct {
	Name       string     // Display name, the item id
	Status     TaskStatus // Current execution status
	Attempt    int        // Current attempt, counted from 1
	StartTime  *time.Time // When the first attempt started
	EndTime    *time.Time // When the task settled
	LastOutput string     // Last line of output
	ErrorMsg   string     // Error message if failed
	mutex      sync.RWMutex
}

// NewTaskNode creates a queued node.
func NewTaskNode(name string) *TaskNode {
	return &TaskNode{
		Name:   name,
		Status: StatusQueued,
	}
}

// UpdateStatus safely updates the status, recording start and end times.
func (tn *TaskNode) UpdateStatus(status TaskStatus) {
	tn.mutex.Lock()
	defer tn.mutex.Unlock()

	tn.Status = status
	now := time.Now()

	switch {
	case status == StatusRunning:
		if tn.StartTime == nil {
			tn.StartTime = &now
		}
	case status.done():
		if tn.EndTime == nil {
			tn.EndTime = &now
		}
	}
}

// UpdateAttempt safely records the attempt number.
func (tn *TaskNode) UpdateAttempt(n int) {
	tn.mutex.Lock()
	defer tn.mutex.Unlock()

	tn.Attempt = n
}

// UpdateOutput safely updates the last output line.
func (tn *TaskNode) UpdateOutput(output string) {
	tn.mutex.Lock()
	defer tn.mutex.Unlock()

	if output == "" {
		return
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	tn.LastOutput = strings.TrimSpace(lines[len(lines)-1])
}

// UpdateError safely updates the error message.
func (tn *TaskNode) UpdateError(err string) {
	tn.mutex.Lock()
	defer tn.mutex.Unlock()

	tn.ErrorMsg = err
}

// DisplayInfo is a copy of the display fields of a node.
type DisplayInfo struct {
	Name       string
	Status     TaskStatus
	Attempt    int
	StartTime  *time.Time
	EndTime    *time.Time
	LastOutput string
	ErrorMsg   string
}

// GetDisplayInfo safely retrieves display information.
func (tn *TaskNode) GetDisplayInfo() DisplayInfo {
	tn.mutex.RLock()
	defer tn.mutex.RUnlock()

	return DisplayInfo{
		Name:       tn.Name,
		Status:     tn.Status,
		Attempt:    tn.Attempt,
		StartTime:  tn.StartTime,
		EndTime:    tn.EndTime,
		LastOutput: tn.LastOutput,
		ErrorMsg:   tn.ErrorMsg,
	}
}

// Model represents the TUI application state.
type Model struct {
	title     string
	nodes     []*TaskNode          // Display order, by first event
	nodeMap   map[string]*TaskNode // Keyed by task id
	stats     engine.Stats
	statsFn   func() engine.Stats
	cancelFn  func()
	width     int
	height    int
	quitting  bool
	cancelled bool
	completed bool
	results   batch.Results
	viewport  viewport.Model
	mutex     sync.RWMutex

	styles *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title     lipgloss.Style
	Queued    lipgloss.Style
	Running   lipgloss.Style
	Success   lipgloss.Style
	Failed    lipgloss.Style
	Cancelled lipgloss.Style
	Output    lipgloss.Style
	Error     lipgloss.Style
	Help      lipgloss.Style
	StatusBar lipgloss.Style
	Border    lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		Queued: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Cancelled: lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("4")).
			Padding(0, 1),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")),
	}
}

// NewModel creates a new TUI model. statsFn is sampled periodically and
// cancelFn is called when the user asks to cancel; either may be nil.
func NewModel(title string, statsFn func() engine.Stats, cancelFn func()) *Model {
	return &Model{
		title:    title,
		nodeMap:  make(map[string]*TaskNode),
		statsFn:  statsFn,
		cancelFn: cancelFn,
		viewport: viewport.New(defaultWidth, defaultHeight),
		styles:   NewStyles(),
	}
}

// getOrCreateNode safely gets or creates the node of a task.
func (m *Model) getOrCreateNode(taskID, name string) *TaskNode {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if node, exists := m.nodeMap[taskID]; exists {
		return node
	}

	node := NewTaskNode(name)
	m.nodeMap[taskID] = node
	m.nodes = append(m.nodes, node)

	return node
}

// processProgressEvent handles incoming progress events.
func (m *Model) processProgressEvent(event progress.Event) {
	name := event.Label
	if name == "" {
		name = event.TaskID
	}

	node := m.getOrCreateNode(event.TaskID, name)

	switch event.Type {
	case progress.EventQueued:
		node.UpdateStatus(StatusQueued)
	case progress.EventStarted:
		node.UpdateAttempt(event.Data.Attempt)
		node.UpdateStatus(StatusRunning)
	case progress.EventOutput:
		node.UpdateOutput(event.Data.OutputLine)
	case progress.EventRetrying:
		node.UpdateStatus(StatusRetrying)

		if event.Data.Err != nil {
			node.UpdateError(event.Data.Err.Error())
		}
	case progress.EventSucceeded:
		node.UpdateError("")
		node.UpdateStatus(StatusSuccess)
	case progress.EventFailed, progress.EventCancelled:
		status := StatusFailed
		if event.Type == progress.EventCancelled {
			status = StatusCancelled
		}

		node.UpdateStatus(status)

		if event.Data.Err != nil {
			node.UpdateError(event.Data.Err.Error())
		}
	}
}

// counts returns the number of settled, failed and total nodes.
func (m *Model) counts() (done, failed, total int) {
	for _, n := range m.nodes {
		info := n.GetDisplayInfo()
		if info.Status.done() {
			done++
		}

		if info.Status == StatusFailed || info.Status == StatusCancelled {
			failed++
		}
	}

	return done, failed, len(m.nodes)
}

// SetControls attaches the stats source and the cancel action after construction,
// for callers that build the engine around the runner's reporter.
func (m *Model) SetControls(statsFn func() engine.Stats, cancelFn func()) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.statsFn = statsFn
	m.cancelFn = cancelFn
}
