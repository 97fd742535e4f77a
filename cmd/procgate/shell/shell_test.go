// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shell

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/matt-FFFFFF/procgate/internal/config"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// echoExecutor succeeds with the arguments as stdout, except for "fail".
type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, runner.Cancelled(ctx)
	}

	if cmd.Args[0] == "fail" {
		return nil, &runner.ProcessFailedError{ExitCode: 1, Stderr: "failed on purpose"}
	}

	return &runner.Result{Stdout: strings.Join(cmd.Args[1:], " ")}, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func newTestSession(t *testing.T) (*session, *syncBuffer) {
	t.Helper()

	cfg := config.Default()
	cfg.RetryAttempts = 0

	e, err := engine.New(cfg, engine.WithExecutor(echoExecutor{}))
	require.NoError(t, err)

	out := &syncBuffer{}

	return newSession(context.Background(), e, out), out
}

func TestSessionSubmit(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, out := newTestSession(t)

	quit, err := s.handle("echo hello   world")
	require.NoError(t, err)
	assert.False(t, quit)

	_, err = s.handle("fail now")
	require.NoError(t, err)

	_, err = s.handle(":wait")
	require.NoError(t, err)

	s.close()

	text := out.String()
	assert.Contains(t, text, "[#1] queued echo hello world")
	assert.Contains(t, text, "[#1] ok in")
	assert.Contains(t, text, "hello world")
	assert.Contains(t, text, "[#2] failed after 1 attempt(s)")
	assert.Contains(t, text, "failed on purpose")
}

func TestSessionCommands(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Setenv("PROCGATE_SHELL_TEST", "value")

	tests := []struct {
		input   string
		quit    bool
		wantErr error
		wantOut string
	}{
		{input: ":stats", wantOut: "running 0/5, queued 0, processes 0"},
		{input: ":concurrency 2", wantOut: "concurrency set to 2"},
		{input: ":concurrency two", wantErr: engine.ErrInvalidConcurrency},
		{input: ":concurrency 0", wantErr: engine.ErrInvalidConcurrency},
		{input: `:eval upper("abc")`, wantOut: `"ABC"`},
		{input: ":eval env.PROCGATE_SHELL_TEST", wantOut: `"value"`},
		{input: ":help", wantOut: ":concurrency N"},
		{input: ":cancel"},
		{input: ":nope", wantErr: ErrUnknownCommand},
		{input: ":quit", quit: true},
		{input: "  :exit  ", quit: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			// The environment is captured when the session starts.
			s, out := newTestSession(t)
			defer s.close()

			quit, err := s.handle(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.quit, quit)
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestSessionEvalError(t *testing.T) {
	s, _ := newTestSession(t)
	defer s.close()

	_, err := s.handle(":eval (")
	assert.Error(t, err)
}
