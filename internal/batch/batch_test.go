// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matt-FFFFFF/procgate/internal/color"
	"github.com/matt-FFFFFF/procgate/internal/config"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/retry"
	"github.com/matt-FFFFFF/procgate/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// scriptExecutor interprets Args[0] as an instruction: "ok" succeeds with
// the remaining args as stdout, "fail" exits 2, "hang" blocks until cancelled.
type scriptExecutor struct {
	mu    sync.Mutex
	order []string
}

func (s *scriptExecutor) Execute(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	s.mu.Lock()
	s.order = append(s.order, strings.Join(cmd.Args, " "))
	s.mu.Unlock()

	switch cmd.Args[0] {
	case "fail":
		return nil, &runner.ProcessFailedError{ExitCode: 2, Stderr: "bad"}
	case "hang":
		<-ctx.Done()
		return nil, runner.Cancelled(ctx)
	default:
		return &runner.Result{Stdout: strings.Join(cmd.Args[1:], " "), Duration: time.Millisecond}, nil
	}
}

func (s *scriptExecutor) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}

func newEngine(t *testing.T, n int, exec retry.Executor) *engine.Engine {
	t.Helper()

	cfg := config.Default()
	cfg.MaxConcurrency = n
	cfg.RetryAttempts = 1

	e, err := engine.New(cfg, engine.WithExecutor(exec), engine.WithBackoff(retry.Policy{Base: time.Millisecond, Max: time.Millisecond}))
	require.NoError(t, err)
	t.Cleanup(e.Close)

	return e
}

func TestRun_Completeness(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &scriptExecutor{}
	e := newEngine(t, 2, exec)

	items := []Item{
		{ID: "a", Command: runner.NewCommand("ok", "alpha")},
		{ID: "b", Command: runner.NewCommand("fail").WithRetries(2)},
		{ID: "c", Command: runner.NewCommand("ok", "gamma")},
		{ID: "d", Command: runner.NewCommand("fail")},
	}

	results, err := Run(context.Background(), e, items)
	require.NoError(t, err)
	require.Len(t, results, len(items))

	assert.Equal(t, []string{"a", "b", "c", "d"}, results.IDs())
	assert.Equal(t, []string{"b", "d"}, results.Failed())
	assert.True(t, results.HasError())

	a := results["a"]
	require.NoError(t, a.Err)
	assert.Equal(t, "alpha", a.Result.Stdout)
	assert.Equal(t, StatusSucceeded, a.Status())

	b := results["b"]
	require.ErrorIs(t, b.Err, retry.ErrRetriesExhausted)
	assert.Equal(t, StatusFailed, b.Status())
	require.NotNil(t, b.Result, "failed items carry a synthesized record")
	assert.Empty(t, b.Result.Stdout)
	assert.Equal(t, b.Err.Error(), b.Result.Stderr)
	assert.Zero(t, b.Result.Duration)
	assert.Equal(t, 2, b.Result.RetryCount)
	assert.Equal(t, 2, b.Result.ExitCode)

	assert.Equal(t, 1, results["d"].Result.RetryCount, "engine default retries")

	err = results.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: ")
	assert.Contains(t, err.Error(), "d: ")
}

func TestRun_InputOrderAdmission(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &scriptExecutor{}
	e := newEngine(t, 1, exec)

	items := make([]Item, 6)
	want := make([]string, 6)

	for i := range items {
		id := string(rune('a' + i))
		items[i] = Item{ID: id, Command: runner.NewCommand("ok", id)}
		want[i] = "ok " + id
	}

	results, err := Run(context.Background(), e, items)
	require.NoError(t, err)
	assert.False(t, results.HasError())
	assert.NoError(t, results.Err())
	assert.Equal(t, want, exec.Order())
}

func TestRun_InvalidIDs(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name    string
		items   []Item
		wantErr error
	}{
		{
			name:    "empty id",
			items:   []Item{{ID: "a", Command: runner.NewCommand("ok")}, {ID: "", Command: runner.NewCommand("ok")}},
			wantErr: ErrEmptyID,
		},
		{
			name:    "duplicate id",
			items:   []Item{{ID: "a", Command: runner.NewCommand("ok")}, {ID: "a", Command: runner.NewCommand("ok")}},
			wantErr: ErrDuplicateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &scriptExecutor{}
			e := newEngine(t, 1, exec)

			results, err := Run(context.Background(), e, tt.items)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, results)
			assert.Empty(t, exec.Order(), "nothing is submitted for an invalid batch")
		})
	}
}

func TestRun_Empty(t *testing.T) {
	results, err := Run(context.Background(), newEngine(t, 1, &scriptExecutor{}), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	exec := &scriptExecutor{}
	e := newEngine(t, 1, exec)

	ctx, cancel := context.WithCancel(context.Background())

	// Running rises on admission, before the executor is entered, so wait
	// for the hanging command itself.
	go func() {
		for len(exec.Order()) == 0 {
			time.Sleep(time.Millisecond)
		}

		cancel()
	}()

	results, err := Run(ctx, e, []Item{
		{ID: "running", Command: runner.NewCommand("hang")},
		{ID: "queued", Command: runner.NewCommand("ok")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, StatusCancelled, results["running"].Status())
	assert.Equal(t, StatusCancelled, results["queued"].Status())
	assert.Equal(t, []string{"hang"}, exec.Order())
}

func TestRun_RealProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	defer goleak.VerifyNone(t)

	cfg := config.Default()
	cfg.RetryAttempts = 0

	e, err := engine.New(cfg)
	require.NoError(t, err)
	defer e.Close()

	results, err := Run(context.Background(), e, []Item{
		{ID: "echo", Command: runner.NewCommand("/bin/sh", "-c", "echo hello")},
		{ID: "exit", Command: runner.NewCommand("/bin/sh", "-c", "echo oops >&2; exit 4")},
		{ID: "missing", Command: runner.NewCommand("/definitely/not/here")},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", results["echo"].Result.Stdout)
	require.ErrorIs(t, results["exit"].Err, runner.ErrProcessFailed)
	assert.Contains(t, results["exit"].Result.Stderr, "oops")
	assert.Equal(t, 4, results["exit"].Result.ExitCode)
	require.ErrorIs(t, results["missing"].Err, runner.ErrSpawn)
}

func sampleResults() Results {
	build := Outcome{Index: 0, Result: &runner.Result{Stdout: "built\nok", Duration: 1500 * time.Millisecond}}
	test := Outcome{
		Index:  1,
		Err:    &runner.ProcessFailedError{ExitCode: 1, Stderr: "FAIL"},
		Result: &runner.Result{Stderr: "process exited with code 1: FAIL", ExitCode: 1, RetryCount: 3},
	}
	lint := Outcome{
		Index:  2,
		Err:    runner.ErrCancelled,
		Result: &runner.Result{Stderr: "execution cancelled", ExitCode: -1},
	}

	return Results{"build": build, "test": test, "lint": lint}
}

func TestResults_WriteText(t *testing.T) {
	prev := color.Enabled()
	color.SetEnabled(false)

	defer color.SetEnabled(prev)

	var buf bytes.Buffer

	require.NoError(t, sampleResults().WriteText(&buf, &OutputOptions{IncludeStdOut: true, ShowSuccessDetails: true}))

	out := buf.String()
	assert.Contains(t, out, "✓ build (1.5s)")
	assert.Contains(t, out, "     built\n     ok\n")
	assert.Contains(t, out, "✗ test (exit code: 1) (retries: 3)")
	assert.Contains(t, out, "➜ Error: process exited with code 1: FAIL")
	assert.Contains(t, out, "~ lint (exit code: -1)")
	assert.Contains(t, out, "1 succeeded, 2 failed")
	assert.Less(t, strings.Index(out, "build"), strings.Index(out, "test"))
	assert.Less(t, strings.Index(out, "test"), strings.Index(out, "lint"))
}

func TestResults_WriteJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, sampleResults().WriteJSON(&buf, false))

	out := buf.String()
	assert.Contains(t, out, `"id": "build"`)
	assert.Contains(t, out, `"status": "cancelled"`)
	assert.Contains(t, out, `"retry_count": 3`)
	assert.NotContains(t, out, "\033[")
}

func TestResults_Binary(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, sampleResults().WriteBinary(&buf, "nightly"))

	name, got, err := ReadBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, "nightly", name)
	assert.Equal(t, []string{"build", "test", "lint"}, got.IDs())
	assert.Equal(t, 1500*time.Millisecond, got["build"].Result.Duration)
	assert.Equal(t, StatusFailed, got["test"].Status())
	assert.Equal(t, "process exited with code 1: FAIL", got["test"].Err.Error())
	require.ErrorIs(t, got["lint"].Err, runner.ErrCancelled)

	_, _, err = ReadBinary(strings.NewReader("not gob"))
	require.ErrorIs(t, err, ErrReadGob)
}
