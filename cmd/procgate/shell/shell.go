// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package shell implements an interactive prompt that submits commands to a
// shared engine.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	hcl2 "github.com/hashicorp/hcl/v2"
	"github.com/matt-FFFFFF/procgate/cmd/procgate/cmdstate"
	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/hcl"
	"github.com/matt-FFFFFF/procgate/internal/progress"
	"github.com/matt-FFFFFF/procgate/internal/runner"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v3"
)

const (
	prompt          = "procgate> "
	shutdownTimeout = 5 * time.Second
	durationRound   = time.Millisecond
)

// ErrUnknownCommand is returned for a colon command the shell does not know.
var ErrUnknownCommand = errors.New("unknown command, try :help")

const helpText = `Each line is split on whitespace and run as a command in the background.
  :stats            show running and queued tasks
  :wait             wait for every submitted command
  :cancel           cancel every queued and running command
  :concurrency N    change the concurrency limit
  :eval EXPR        evaluate an HCL expression, with env.NAME variables
  :help             show this help
  :quit             cancel outstanding work and leave
`

// ShellCmd starts the interactive prompt.
var ShellCmd = &cli.Command{
	Name:  "shell",
	Usage: "Submit commands interactively",
	Description: `Start a prompt that submits each line as a command to one engine.
Commands run in the background and report when they finish, so several can be
in flight at once up to the concurrency limit.`,
	Flags:  cmdstate.Flags(),
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	reporter := cmdstate.LogReporter(ctx)
	defer reporter.Close()

	e, err := cmdstate.NewEngine(ctx, cmd, engine.WithReporter(reporter))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	s := newSession(ctx, e, cmd.Writer)
	defer s.close()

	line := liner.NewLiner()
	defer line.Close() //nolint:errcheck

	line.SetCtrlCAborts(true)
	s.printf("procgate shell, concurrency %d. Type :help for commands, Ctrl+C to quit.\n", e.Stats().MaxConcurrency)

	for {
		input, err := line.Prompt(prompt)

		switch {
		case err == nil:
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		default:
			return cli.Exit("error reading line: "+err.Error(), 1)
		}

		if strings.TrimSpace(input) == "" {
			continue
		}

		line.AppendHistory(input)

		quit, err := s.handle(input)
		if err != nil {
			s.printf("%s\n", err)
		}

		if quit {
			return nil
		}
	}
}

// session holds the state of one prompt.
type session struct {
	ctx     context.Context
	engine  *engine.Engine
	evalCtx *hcl2.EvalContext
	out     io.Writer
	outMu   sync.Mutex
	wg      sync.WaitGroup
	seq     int
}

func newSession(ctx context.Context, e *engine.Engine, out io.Writer) *session {
	return &session{
		ctx:     ctx,
		engine:  e,
		evalCtx: hcl.NewEvalContext(os.Environ()),
		out:     out,
	}
}

func (s *session) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	fmt.Fprintf(s.out, format, args...) //nolint:errcheck
}

// handle executes one input line and reports whether the session should end.
func (s *session) handle(input string) (bool, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, ":") {
		s.submit(strings.Fields(input))
		return false, nil
	}

	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":quit", ":exit", ":q":
		return true, nil
	case ":help":
		s.printf("%s", helpText)
	case ":stats":
		st := s.engine.Stats()
		s.printf("running %d/%d, queued %d, processes %d\n", st.Running, st.MaxConcurrency, st.Queued, st.Processes)
	case ":wait":
		s.wg.Wait()
	case ":cancel":
		s.engine.CancelAll()
	case ":concurrency":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a number", engine.ErrInvalidConcurrency, arg)
		}

		if err := s.engine.Reconfigure(n); err != nil {
			return false, err
		}

		s.printf("concurrency set to %d\n", n)
	case ":eval":
		v, err := hcl.Evaluate(arg, s.evalCtx)
		if err != nil {
			return false, err
		}

		s.printf("%s\n", v)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	return false, nil
}

// submit queues args and reports the outcome when the task settles.
func (s *session) submit(args []string) {
	s.seq++
	label := "#" + strconv.Itoa(s.seq)

	t := s.engine.Submit(progress.WithLabel(s.ctx, label), runner.NewCommand(args...))
	s.printf("[%s] queued %s\n", label, t.Command())

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		res, err := t.Wait()
		if err != nil {
			ctxlog.Debug(s.ctx, "shell task failed", ctxlog.TaskKey, label, "error", err)
			s.printf("[%s] %s after %d attempt(s): %s\n", label, strings.ToLower(t.State().String()), t.Attempts(), err)

			return
		}

		s.printf("[%s] ok in %s\n", label, res.Duration.Round(durationRound))

		if res.Stdout != "" {
			s.printf("%s\n", res.Stdout)
		}
	}()
}

// close cancels outstanding work, giving running commands a short grace period.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), shutdownTimeout)
	defer cancel()

	s.engine.CancelAll()

	if err := s.engine.Shutdown(ctx); err != nil {
		ctxlog.Warn(s.ctx, "shutdown did not complete", "error", err)
	}

	s.wg.Wait()
}
