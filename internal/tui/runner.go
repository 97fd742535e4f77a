// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/procgate/internal/batch"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/progress"
)

// Work is the batch the runner displays.
type Work func(ctx context.Context) (batch.Results, error)

// Runner manages the TUI application and progress event integration.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *TUIReporter
	mutex    sync.Mutex
}

var _ progress.Reporter = (*TUIReporter)(nil)

// TUIReporter implements progress.Reporter and forwards events to the TUI.
type TUIReporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewTUIReporter creates a new TUI progress reporter.
func NewTUIReporter(program *tea.Program) *TUIReporter {
	return &TUIReporter{
		program: program,
	}
}

// Report implements progress.Reporter.
func (tr *TUIReporter) Report(event progress.Event) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	if tr.closed || tr.program == nil {
		return
	}

	tr.program.Send(ProgressEventMsg{Event: event})
}

// Close implements progress.Reporter.
func (tr *TUIReporter) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	tr.closed = true
}

// NewRunner creates a new TUI runner. Extra program options are passed to bubbletea.
func NewRunner(title string, opts ...tea.ProgramOption) *Runner {
	model := NewModel(title, nil, nil)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	return &Runner{
		model:    model,
		program:  program,
		reporter: NewTUIReporter(program),
	}
}

// Reporter returns the progress reporter for this TUI runner.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Bind connects the status bar and the cancel key to an engine.
func (r *Runner) Bind(e *engine.Engine) {
	r.model.SetControls(e.Stats, e.CancelAll)
}

// Run starts the TUI and executes work while it is displayed. Once work has
// finished the TUI stays open until the user quits.
func (r *Runner) Run(ctx context.Context, work Work) (batch.Results, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	type outcome struct {
		results batch.Results
		err     error
	}

	resultChan := make(chan outcome, 1)

	go func() {
		res, err := work(ctx)
		resultChan <- outcome{results: res, err: err}
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var (
		out    outcome
		tuiErr error
	)

	select {
	case out = <-resultChan:
		r.program.Send(CompletedMsg{Results: out.results})

		tuiErr = <-tuiDone

		r.reporter.Close()

	case tuiErr = <-tuiDone:
		// The user quit early, the model has already cancelled the work.
		r.reporter.Close()

		out = <-resultChan

	case <-ctx.Done():
		r.reporter.Close()
		r.program.Quit()

		out = <-resultChan
		tuiErr = <-tuiDone
	}

	if out.err != nil {
		return out.results, out.err
	}

	return out.results, tuiErr
}
