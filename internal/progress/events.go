// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"time"
)

// Event is a real-time update about a single task.
type Event struct {
	TaskID    string    // Engine-assigned task id
	Label     string    // Caller label, e.g. the batch item id
	Type      EventType // What happened
	Message   string    // Human-readable status message
	Timestamp time.Time // When the event occurred
	Data      EventData // Type-specific data
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventQueued indicates a task was accepted and waits for a slot.
	EventQueued EventType = iota
	// EventStarted indicates a task was admitted into a slot.
	EventStarted
	// EventOutput indicates a complete line of stdout or stderr.
	EventOutput
	// EventRetrying indicates an attempt failed and a retry is scheduled.
	EventRetrying
	// EventSucceeded indicates successful completion.
	EventSucceeded
	// EventFailed indicates the task failed after its last attempt.
	EventFailed
	// EventCancelled indicates the task was cancelled.
	EventCancelled
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventQueued:
		return "queued"
	case EventStarted:
		return "started"
	case EventOutput:
		return "output"
	case EventRetrying:
		return "retrying"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events follow for the task.
func (et EventType) Terminal() bool {
	return et == EventSucceeded || et == EventFailed || et == EventCancelled
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// EventOutput
	OutputLine string
	IsStderr   bool

	// EventRetrying
	Attempt int
	Delay   time.Duration

	// EventSucceeded, EventFailed, EventCancelled
	Duration time.Duration
	Err      error
}

type reporterKey struct{}

type scope struct {
	reporter Reporter
	taskID   string
	label    string
}

// NewContext returns a context that routes Emit calls for one task to reporter.
func NewContext(ctx context.Context, reporter Reporter, taskID, label string) context.Context {
	if reporter == nil {
		return ctx
	}

	return context.WithValue(ctx, reporterKey{}, scope{
		reporter: reporter,
		taskID:   taskID,
		label:    label,
	})
}

// Emit reports ev through the reporter carried by ctx, filling in the task
// identity and timestamp. It is a no-op when ctx carries no reporter.
func Emit(ctx context.Context, ev Event) {
	s, ok := ctx.Value(reporterKey{}).(scope)
	if !ok {
		return
	}

	if ev.TaskID == "" {
		ev.TaskID = s.taskID
	}

	if ev.Label == "" {
		ev.Label = s.label
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	s.reporter.Report(ev)
}

type labelKey struct{}

// WithLabel returns a copy of ctx carrying a display label for work
// submitted with it.
func WithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, labelKey{}, label)
}

// LabelFrom returns the label set by WithLabel, or an empty string.
func LabelFrom(ctx context.Context) string {
	label, _ := ctx.Value(labelKey{}).(string)
	return label
}
