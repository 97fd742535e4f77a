// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/procgate/internal/batch"
	"github.com/matt-FFFFFF/procgate/internal/progress"
)

const (
	defaultWidth     = 80
	defaultHeight    = 20
	minViewportWidth = 40
	// reservedLines covers the title, the border, the status bar and the help line.
	reservedLines           = 6
	minStatusBarHeight      = 8
	statsInterval           = 250 * time.Millisecond
	commandDurationRounding = 100 * time.Millisecond
	ellipsis                = "…"
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// CompletedMsg indicates that every item has settled.
type CompletedMsg struct {
	Results batch.Results
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return tick()
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mutex.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.updateViewportSize()
		m.mutex.Unlock()

		return m, nil

	case ProgressEventMsg:
		m.processProgressEvent(msg.Event)
		return m, nil

	case CompletedMsg:
		m.mutex.Lock()
		m.completed = true
		m.results = msg.Results
		m.mutex.Unlock()

		m.sampleStats()

		return m, nil

	case tickMsg:
		m.sampleStats()

		m.mutex.RLock()
		completed := m.completed
		m.mutex.RUnlock()

		if completed {
			return m, nil
		}

		return m, tick()
	}

	var cmd tea.Cmd

	m.mutex.Lock()
	m.viewport, cmd = m.viewport.Update(msg)
	m.mutex.Unlock()

	return m, cmd
}

func (m *Model) sampleStats() {
	if m.statsFn == nil {
		return
	}

	s := m.statsFn()

	m.mutex.Lock()
	m.stats = s
	m.mutex.Unlock()
}

// handleKeyPress processes keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch msg.String() {
	case "q", "ctrl+c":
		if !m.completed {
			m.cancelLocked()
		}

		m.quitting = true

		return m, tea.Quit
	case "c":
		if !m.completed {
			m.cancelLocked()
		}

		return m, nil
	}

	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

func (m *Model) cancelLocked() {
	if m.cancelled || m.cancelFn == nil {
		return
	}

	m.cancelled = true
	m.cancelFn()
}

func (m *Model) updateViewportSize() {
	m.viewport.Width = max(m.width-2, minViewportWidth) //nolint:mnd // border
	m.viewport.Height = max(m.height-reservedLines, 1)
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.quitting {
		return "Shutting down...\n"
	}

	var content strings.Builder

	for _, node := range m.nodes {
		m.renderNode(&content, node.GetDisplayInfo())
	}

	done, failed, total := m.counts()

	if m.completed {
		content.WriteString("\n")

		if m.results.HasError() {
			content.WriteString(m.styles.Failed.Render("⚠️  Batch completed with errors"))
		} else {
			content.WriteString(m.styles.Success.Render("✅ Batch completed successfully"))
		}

		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())

	var view strings.Builder

	view.WriteString(m.styles.Title.Render("procgate · " + m.title))
	view.WriteString("\n")
	view.WriteString(m.styles.Border.Render(m.viewport.View()))

	if m.height == 0 || m.height > minStatusBarHeight {
		view.WriteString("\n")
		view.WriteString(m.styles.StatusBar.Render(fmt.Sprintf(
			"running %d/%d │ queued %d │ processes %d │ done %d/%d │ failed %d",
			m.stats.Running, m.stats.MaxConcurrency, m.stats.Queued, m.stats.Processes, done, total, failed,
		)))
		view.WriteString("\n")

		helpText := "↑/↓ to scroll, 'c' to cancel all, 'q' to cancel and quit"
		if m.completed {
			helpText = "↑/↓ to scroll, 'q' to quit and return to terminal"
		}

		view.WriteString(m.styles.Help.Render(helpText))
	}

	return view.String()
}

// renderNode renders a single item with inline output display.
func (m *Model) renderNode(b *strings.Builder, info DisplayInfo) {
	var (
		statusIcon string
		nameStyle  lipgloss.Style
	)

	switch info.Status {
	case StatusQueued:
		statusIcon, nameStyle = "⏳", m.styles.Queued
	case StatusRunning:
		statusIcon, nameStyle = "⚡", m.styles.Running
	case StatusRetrying:
		statusIcon, nameStyle = "🔁", m.styles.Running
	case StatusSuccess:
		statusIcon, nameStyle = "✅", m.styles.Success
	case StatusFailed:
		statusIcon, nameStyle = "❌", m.styles.Failed
	case StatusCancelled:
		statusIcon, nameStyle = "🚫", m.styles.Cancelled
	default:
		statusIcon, nameStyle = "❓", m.styles.Queued
	}

	detail := ""

	if info.StartTime != nil {
		elapsed := time.Since(*info.StartTime)
		if info.EndTime != nil {
			elapsed = info.EndTime.Sub(*info.StartTime)
		}

		detail = fmt.Sprintf(" (%v)", elapsed.Round(commandDurationRounding))
	}

	if info.Attempt > 1 {
		detail += fmt.Sprintf(" [attempt %d]", info.Attempt)
	}

	var (
		right      string
		rightStyle lipgloss.Style
	)

	switch {
	case info.ErrorMsg != "" && info.Status != StatusSuccess:
		right, rightStyle = "Error: "+info.ErrorMsg, m.styles.Error
	case info.LastOutput != "" && info.Status == StatusRunning:
		right, rightStyle = info.LastOutput, m.styles.Output
	}

	// Split the width evenly between the item and its output.
	available := max(m.viewport.Width-2, minViewportWidth) //nolint:mnd
	leftWidth := available / 2                               //nolint:mnd
	rightWidth := available - leftWidth

	left := truncate(info.Name+detail, leftWidth-lipgloss.Width(statusIcon)-1)
	nameLen := min(len([]rune(info.Name)), len([]rune(left)))
	styledLeft := nameStyle.Render(string([]rune(left)[:nameLen])) + m.styles.Output.Render(string([]rune(left)[nameLen:]))

	b.WriteString(statusIcon)
	b.WriteString(" ")
	b.WriteString(styledLeft)

	if right != "" {
		pad := leftWidth - lipgloss.Width(statusIcon) - 1 - len([]rune(left))
		b.WriteString(strings.Repeat(" ", max(pad, 1)))
		b.WriteString(rightStyle.Render(truncate(right, rightWidth)))
	}

	b.WriteString("\n")
}

// truncate shortens s to at most width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}

	if len(r) <= width {
		return s
	}

	if width <= 1 {
		return string(r[:width])
	}

	return string(r[:width-1]) + ellipsis
}
