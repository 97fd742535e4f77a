// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cmdstate

import (
	"context"
	"log/slog"

	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/progress"
)

const logReporterBuffer = 256

// LogReporter returns a reporter that writes engine events to the context
// logger. Retries and failures are logged at warn level, the rest at debug.
// The caller must Close it after the engine has been closed.
func LogReporter(ctx context.Context) *progress.ChannelReporter {
	logger := ctxlog.Logger(ctx)
	r := progress.NewChannelReporter(logReporterBuffer)

	r.Listen(progress.ListenerFunc(func(ev progress.Event) {
		level := slog.LevelDebug
		if ev.Type == progress.EventRetrying || ev.Type == progress.EventFailed {
			level = slog.LevelWarn
		}

		args := []any{ctxlog.TaskKey, ev.Label, "event", ev.Type.String()}

		switch ev.Type {
		case progress.EventStarted, progress.EventRetrying:
			args = append(args, "attempt", ev.Data.Attempt)
		case progress.EventOutput:
			args = append(args, "line", ev.Data.OutputLine, "stderr", ev.Data.IsStderr)
		}

		if ev.Data.Delay > 0 {
			args = append(args, "delay", ev.Data.Delay.String())
		}

		if ev.Data.Err != nil {
			args = append(args, "error", ev.Data.Err.Error())
		}

		msg := ev.Message
		if msg == "" {
			msg = "task " + ev.Type.String()
		}

		logger.Log(ctx, level, msg, args...)
	}))

	return r
}
