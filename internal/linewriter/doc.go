// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package linewriter provides an io.Writer that captures everything written
// to it, up to a size limit, while tracking the last complete line so that
// long-running processes can report progress as they go.
package linewriter
