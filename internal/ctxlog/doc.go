// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a *slog.Logger on a context.Context.
//
// The level of the package loggers is held in LevelVar and initialised from
// the PROCGATE_LOG_LEVEL environment variable (DEBUG, INFO, WARN or ERROR,
// anything else means WARN). The default logger writes through PrettyHandler,
// which renders attributes as indented, optionally coloured JSON.
package ctxlog
