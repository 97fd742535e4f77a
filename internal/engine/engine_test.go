// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/matt-FFFFFF/procgate/internal/config"
	"github.com/matt-FFFFFF/procgate/internal/progress"
	"github.com/matt-FFFFFF/procgate/internal/retry"
	"github.com/matt-FFFFFF/procgate/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeExecutor records calls and the peak number of concurrent executions.
type fakeExecutor struct {
	mu        sync.Mutex
	active    int
	maxActive int
	calls     map[string]int
	order     []string
	run       func(ctx context.Context, cmd runner.Command) (*runner.Result, error)
}

func newFakeExecutor(run func(ctx context.Context, cmd runner.Command) (*runner.Result, error)) *fakeExecutor {
	return &fakeExecutor{
		calls: make(map[string]int),
		run:   run,
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	name := cmd.Args[0]

	f.mu.Lock()
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.calls[name]++
	f.order = append(f.order, name)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.run != nil {
		return f.run(ctx, cmd)
	}

	return &runner.Result{Stdout: name}, nil
}

func (f *fakeExecutor) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[name]
}

func (f *fakeExecutor) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.maxActive
}

func (f *fakeExecutor) Order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.order...)
}

// sleepFor returns a run function that takes d unless cancelled first.
func sleepFor(d time.Duration) func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	return func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
		t := time.NewTimer(d)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return nil, runner.Cancelled(ctx)
		case <-t.C:
			return &runner.Result{Stdout: cmd.Args[0]}, nil
		}
	}
}

// blockUntil returns a run function that blocks until gate is closed or
// the context is cancelled.
func blockUntil(gate <-chan struct{}) func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	return func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
		select {
		case <-ctx.Done():
			return nil, runner.Cancelled(ctx)
		case <-gate:
			return &runner.Result{Stdout: cmd.Args[0]}, nil
		}
	}
}

func alwaysFail(context.Context, runner.Command) (*runner.Result, error) {
	return nil, &runner.ProcessFailedError{ExitCode: 1, Stderr: "nope"}
}

func testConfig(n int) *config.Config {
	cfg := config.Default()
	cfg.MaxConcurrency = n

	return cfg
}

var fastBackoff = WithBackoff(retry.Policy{Base: time.Millisecond, Max: 4 * time.Millisecond})

func newTestEngine(t *testing.T, n int, opts ...Option) *Engine {
	t.Helper()

	e, err := New(testConfig(n), opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	return e
}

func waitStats(t *testing.T, e *Engine, running, queued int) {
	t.Helper()

	require.Eventually(t, func() bool {
		s := e.Stats()
		return s.Running == running && s.Queued == queued
	}, 2*time.Second, 5*time.Millisecond, "want running=%d queued=%d, have %+v", running, queued, e.Stats())
}

func TestNew(t *testing.T) {
	_, err := New(testConfig(0))
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	e, err := New(nil)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, config.DefaultMaxConcurrency, e.Stats().MaxConcurrency)
	assert.Equal(t, config.Default(), e.Config())
}

func TestEngine_AppliesDefaults(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(1)
	cfg.TimeoutMs = 1234
	cfg.RetryAttempts = 7

	e, err := New(cfg, WithExecutor(newFakeExecutor(nil)))
	require.NoError(t, err)
	defer e.Close()

	task := e.Submit(context.Background(), runner.NewCommand("a"))
	assert.Equal(t, 1234*time.Millisecond, task.Command().Timeout)
	assert.Equal(t, 7, task.Retries())

	task = e.Submit(context.Background(), runner.NewCommand("b").WithTimeout(time.Second).WithRetries(0))
	assert.Equal(t, time.Second, task.Command().Timeout)
	assert.Equal(t, 0, task.Retries())

	_, err = task.Wait()
	require.NoError(t, err)
}

func TestEngine_AdmissionBound(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(sleepFor(20 * time.Millisecond))
	e := newTestEngine(t, 4, WithExecutor(fake))

	tasks := make([]*Task, 40)
	for i := range tasks {
		tasks[i] = e.Submit(context.Background(), runner.NewCommand(fmt.Sprintf("cmd-%d", i)))
	}

	for _, task := range tasks {
		_, err := task.Wait()
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, fake.MaxActive(), 4)
	assert.Equal(t, 4, fake.MaxActive(), "the limit should be reached")
}

// Twelve 100ms tasks under a limit of three run in four waves.
func TestEngine_TwelveTasksThreeSlots(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(sleepFor(100 * time.Millisecond))
	e := newTestEngine(t, 3, WithExecutor(fake))

	start := time.Now()
	tasks := make([]*Task, 12)

	for i := range tasks {
		tasks[i] = e.Submit(context.Background(), runner.NewCommand(fmt.Sprintf("cmd-%d", i)))
	}

	s := e.Stats()
	assert.Equal(t, 12, s.Running+s.Queued)

	for _, task := range tasks {
		res, err := task.Wait()
		require.NoError(t, err)
		assert.Equal(t, 0, res.RetryCount)
	}

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 390*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 3, fake.MaxActive())
	assert.Equal(t, Stats{MaxConcurrency: 3}, e.Stats())
}

func TestEngine_FIFOAdmission(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := make(chan struct{})
	fake := newFakeExecutor(blockUntil(gate))
	e := newTestEngine(t, 1, WithExecutor(fake))

	want := []string{"a", "b", "c", "d", "e"}
	tasks := make([]*Task, len(want))

	for i, name := range want {
		tasks[i] = e.Submit(context.Background(), runner.NewCommand(name))
	}

	close(gate)

	for _, task := range tasks {
		_, err := task.Wait()
		require.NoError(t, err)
	}

	assert.Equal(t, want, fake.Order())
}

func TestEngine_RetryBound(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(alwaysFail)
	e := newTestEngine(t, 2, WithExecutor(fake), fastBackoff)

	for _, retries := range []int{0, 1, 4} {
		name := fmt.Sprintf("fail-%d", retries)
		task := e.Submit(context.Background(), runner.NewCommand(name).WithRetries(retries))

		res, err := task.Wait()
		assert.Nil(t, res)
		require.ErrorIs(t, err, retry.ErrRetriesExhausted)
		require.ErrorIs(t, err, runner.ErrProcessFailed)
		assert.Equal(t, retries+1, fake.Calls(name))
		assert.Equal(t, retries+1, task.Attempts())
		assert.Equal(t, StateFailed, task.State())
	}
}

func TestEngine_RetryThenSucceed(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu    sync.Mutex
		fails = 2
	)

	fake := newFakeExecutor(func(context.Context, runner.Command) (*runner.Result, error) {
		mu.Lock()
		defer mu.Unlock()

		if fails > 0 {
			fails--
			return nil, runner.ErrTimeout
		}

		return &runner.Result{Stdout: "ok"}, nil
	})
	e := newTestEngine(t, 1, WithExecutor(fake), fastBackoff)

	res, err := e.Run(context.Background(), runner.NewCommand("flaky"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.RetryCount)
	assert.Equal(t, 3, fake.Calls("flaky"))
}

func TestEngine_CancelBeforeAdmission(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := make(chan struct{})
	fake := newFakeExecutor(blockUntil(gate))
	e := newTestEngine(t, 1, WithExecutor(fake))

	blocker := e.Submit(context.Background(), runner.NewCommand("blocker"))

	ctx, cancel := context.WithCancel(context.Background())
	queued := e.Submit(ctx, runner.NewCommand("queued"))

	waitStats(t, e, 1, 1)
	assert.Equal(t, StatePending, queued.State())

	cancel()

	_, err := queued.Wait()
	require.ErrorIs(t, err, runner.ErrCancelled)
	assert.Equal(t, StateCancelled, queued.State())
	assert.Equal(t, Stats{Running: 1, Queued: 0, MaxConcurrency: 1}, e.Stats())

	close(gate)

	_, err = blocker.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, fake.Calls("queued"), "a cancelled queued task must never execute")
}

func TestEngine_SubmitWithCancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(nil)
	e := newTestEngine(t, 1, WithExecutor(fake))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, runner.NewCommand("never"))
	require.ErrorIs(t, err, runner.ErrCancelled)
	assert.Equal(t, 0, fake.Calls("never"))
}

func TestEngine_CallerCancelsRunningTask(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(blockUntil(make(chan struct{})))
	e := newTestEngine(t, 1, WithExecutor(fake), fastBackoff)

	ctx, cancel := context.WithCancel(context.Background())
	task := e.Submit(ctx, runner.NewCommand("running").WithRetries(5))

	waitStats(t, e, 1, 0)
	cancel()

	_, err := task.Wait()
	require.ErrorIs(t, err, runner.ErrCancelled)
	assert.NotErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.Equal(t, 1, fake.Calls("running"), "a cancelled task is never retried")
	assert.Equal(t, StateCancelled, task.State())
}

func TestEngine_CancelAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(blockUntil(make(chan struct{})))
	e := newTestEngine(t, 2, WithExecutor(fake), fastBackoff)

	tasks := make([]*Task, 5)
	for i := range tasks {
		tasks[i] = e.Submit(context.Background(), runner.NewCommand(fmt.Sprintf("cmd-%d", i)).WithRetries(3))
	}

	waitStats(t, e, 2, 3)
	e.CancelAll()

	for _, task := range tasks {
		_, err := task.Wait()
		require.ErrorIs(t, err, runner.ErrCancelled)
		assert.Equal(t, StateCancelled, task.State())
	}

	waitStats(t, e, 0, 0)

	for i := range tasks {
		want := 0
		if i < 2 {
			want = 1
		}

		assert.Equal(t, want, fake.Calls(fmt.Sprintf("cmd-%d", i)))
	}

	// The engine keeps accepting work.
	fake.run = nil
	res, err := e.Run(context.Background(), runner.NewCommand("after"))
	require.NoError(t, err)
	assert.Equal(t, "after", res.Stdout)
}

func TestEngine_Reconfigure(t *testing.T) {
	defer goleak.VerifyNone(t)

	gate := make(chan struct{})
	fake := newFakeExecutor(blockUntil(gate))
	e := newTestEngine(t, 1, WithExecutor(fake))

	tasks := make([]*Task, 4)
	for i := range tasks {
		tasks[i] = e.Submit(context.Background(), runner.NewCommand(fmt.Sprintf("cmd-%d", i)))
	}

	waitStats(t, e, 1, 3)

	require.NoError(t, e.Reconfigure(3))
	waitStats(t, e, 3, 1)
	assert.Equal(t, 3, e.Stats().MaxConcurrency)
	assert.Equal(t, 3, e.Config().MaxConcurrency)

	require.NoError(t, e.Reconfigure(1))
	waitStats(t, e, 3, 1)

	require.ErrorIs(t, e.Reconfigure(0), ErrInvalidConcurrency)
	assert.Equal(t, 1, e.Stats().MaxConcurrency)

	close(gate)

	for _, task := range tasks {
		_, err := task.Wait()
		require.NoError(t, err)
	}
}

func TestEngine_StatsAccuracy(t *testing.T) {
	defer goleak.VerifyNone(t)

	gates := make(map[string]chan struct{})
	for i := range 5 {
		gates[fmt.Sprintf("cmd-%d", i)] = make(chan struct{})
	}

	fake := newFakeExecutor(func(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
		return blockUntil(gates[cmd.Args[0]])(ctx, cmd)
	})
	e := newTestEngine(t, 2, WithExecutor(fake))

	for i := range 5 {
		e.Submit(context.Background(), runner.NewCommand(fmt.Sprintf("cmd-%d", i)))
	}

	waitStats(t, e, 2, 3)
	close(gates["cmd-0"])
	waitStats(t, e, 2, 2)
	close(gates["cmd-1"])
	close(gates["cmd-2"])
	waitStats(t, e, 2, 0)
	close(gates["cmd-3"])
	close(gates["cmd-4"])
	waitStats(t, e, 0, 0)
}

func TestEngine_StatsConsistentUnderLoad(t *testing.T) {
	defer goleak.VerifyNone(t)

	const total = 60

	fake := newFakeExecutor(sleepFor(2 * time.Millisecond))
	e := newTestEngine(t, 3, WithExecutor(fake))

	done := make(chan struct{})

	go func() {
		defer close(done)

		var wg sync.WaitGroup
		for i := range total {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, _ = e.Run(context.Background(), runner.NewCommand(fmt.Sprintf("cmd-%d", i)))
			}()
		}

		wg.Wait()
	}()

	for {
		s := e.Stats()
		assert.LessOrEqual(t, s.Running, 3)
		assert.LessOrEqual(t, s.Running+s.Queued, total)

		select {
		case <-done:
			assert.Equal(t, Stats{MaxConcurrency: 3}, e.Stats())
			return
		default:
			runtime.Gosched()
		}
	}
}

func TestTask_ResolvedOnce(t *testing.T) {
	task := newTask(context.Background(), "", runner.NewCommand("x"), 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if task.resolve(&runner.Result{RetryCount: i}, nil, StateSucceeded) {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, resolved)

	first, _ := task.Wait()
	assert.False(t, task.resolve(nil, runner.ErrCancelled, StateCancelled))

	again, err := task.Wait()
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, StateSucceeded, task.State())
}

func TestEngine_CancelRacesCompletion(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newTestEngine(t, 4, WithExecutor(newFakeExecutor(sleepFor(time.Millisecond))))

	for range 20 {
		tasks := make([]*Task, 8)
		for i := range tasks {
			ctx, cancel := context.WithCancel(context.Background())
			tasks[i] = e.Submit(ctx, runner.NewCommand(fmt.Sprintf("cmd-%d", i)))

			go cancel()
		}

		go e.CancelAll()

		for _, task := range tasks {
			res, err := task.Wait()
			assert.True(t, task.State().Terminal())
			assert.True(t, (res == nil) != (err == nil), "exactly one of result and error")
		}
	}

	waitStats(t, e, 0, 0)
}

func TestEngine_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(blockUntil(make(chan struct{})))
	e, err := New(testConfig(1), WithExecutor(fake))
	require.NoError(t, err)

	running := e.Submit(context.Background(), runner.NewCommand("running"))
	queued := e.Submit(context.Background(), runner.NewCommand("queued"))

	waitStats(t, e, 1, 1)
	e.Close()

	_, err = running.Wait()
	require.ErrorIs(t, err, runner.ErrCancelled)

	_, err = queued.Wait()
	require.ErrorIs(t, err, runner.ErrCancelled)

	_, err = e.Run(context.Background(), runner.NewCommand("late"))
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, fake.Calls("late"))
}

func TestEngine_ShutdownDrains(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(sleepFor(20 * time.Millisecond))
	e, err := New(testConfig(2), WithExecutor(fake))
	require.NoError(t, err)

	tasks := make([]*Task, 6)
	for i := range tasks {
		tasks[i] = e.Submit(context.Background(), runner.NewCommand(fmt.Sprintf("cmd-%d", i)))
	}

	require.NoError(t, e.Shutdown(context.Background()))

	for _, task := range tasks {
		assert.Equal(t, StateSucceeded, task.State())
	}
}

func TestEngine_ShutdownTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := newFakeExecutor(blockUntil(make(chan struct{})))
	e, err := New(testConfig(1), WithExecutor(fake))
	require.NoError(t, err)

	task := e.Submit(context.Background(), runner.NewCommand("stuck"))
	waitStats(t, e, 1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, e.Shutdown(ctx), context.DeadlineExceeded)

	_, err = task.Wait()
	require.ErrorIs(t, err, runner.ErrCancelled)
}

func TestEngine_Events(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu    sync.Mutex
		first = true
	)

	fake := newFakeExecutor(func(context.Context, runner.Command) (*runner.Result, error) {
		mu.Lock()
		defer mu.Unlock()

		if first {
			first = false
			return nil, runner.ErrTimeout
		}

		return &runner.Result{}, nil
	})

	reporter := progress.NewChannelReporter(16)
	e := newTestEngine(t, 1, WithExecutor(fake), WithReporter(reporter), fastBackoff)

	ctx := progress.WithLabel(context.Background(), "build")
	task := e.Submit(ctx, runner.NewCommand("go", "build"))

	_, err := task.Wait()
	require.NoError(t, err)

	var types []progress.EventType

	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-reporter.Events():
				assert.Equal(t, task.ID(), ev.TaskID)
				assert.Equal(t, "build", ev.Label)

				types = append(types, ev.Type)
			default:
				return len(types) == 5
			}
		}
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []progress.EventType{
		progress.EventQueued,
		progress.EventStarted,
		progress.EventRetrying,
		progress.EventStarted,
		progress.EventSucceeded,
	}, types)

	reporter.Close()
}

func TestEngine_RealProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep and /bin/sh")
	}

	defer goleak.VerifyNone(t)

	cfg := testConfig(2)
	cfg.TimeoutMs = 150
	cfg.RetryAttempts = 0

	e, err := New(cfg)
	require.NoError(t, err)
	defer e.Close()

	slow := e.Submit(context.Background(), runner.NewCommand("sleep", "5"))

	require.Eventually(t, func() bool { return e.Stats().Processes == 1 }, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	_, err = slow.Wait()
	require.ErrorIs(t, err, runner.ErrTimeout)
	require.ErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.Less(t, time.Since(start), 2*time.Second)

	res, err := e.Run(context.Background(), runner.NewCommand("/bin/sh", "-c", "echo hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Stdout)
	assert.Equal(t, 0, e.Stats().Processes)
}
