// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"sync"
	"sync/atomic"
)

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations must be non-blocking
	// and tolerate the receiver not listening.
	Report(event Event)
	// Close signals that no more events will be sent.
	Close()
}

// Listener receives progress events.
type Listener interface {
	OnEvent(event Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(event Event)

// OnEvent calls f(event).
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// NullReporter drops every event.
type NullReporter struct{}

// Report implements Reporter.
func (NullReporter) Report(Event) {}

// Close implements Reporter.
func (NullReporter) Close() {}

// ChannelReporter implements Reporter using a buffered channel.
// Events are dropped when the buffer is full or the reporter is closed.
type ChannelReporter struct {
	ch      chan Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewChannelReporter creates a new ChannelReporter with the specified buffer size.
func NewChannelReporter(bufferSize int) *ChannelReporter {
	return &ChannelReporter{
		ch: make(chan Event, bufferSize),
	}
}

// Report implements Reporter.
func (cr *ChannelReporter) Report(event Event) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if cr.closed {
		return
	}

	select {
	case cr.ch <- event:
	default:
		cr.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (cr *ChannelReporter) Dropped() uint64 {
	return cr.dropped.Load()
}

// Close closes the channel and waits for any Listen goroutine to drain it.
func (cr *ChannelReporter) Close() {
	cr.mu.Lock()
	if cr.closed {
		cr.mu.Unlock()
		return
	}

	cr.closed = true
	close(cr.ch)
	cr.mu.Unlock()

	cr.wg.Wait()
}

// Listen forwards events to listener on a new goroutine until Close.
func (cr *ChannelReporter) Listen(listener Listener) {
	cr.wg.Add(1)

	go func() {
		defer cr.wg.Done()

		for ev := range cr.ch {
			listener.OnEvent(ev)
		}
	}()
}

// Events returns the receive side of the channel, for callers that prefer
// to range over events themselves.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}

// MultiReporter fans an event out to several reporters.
type MultiReporter []Reporter

// Report implements Reporter.
func (m MultiReporter) Report(event Event) {
	for _, r := range m {
		r.Report(event)
	}
}

// Close implements Reporter.
func (m MultiReporter) Close() {
	for _, r := range m {
		r.Close()
	}
}
