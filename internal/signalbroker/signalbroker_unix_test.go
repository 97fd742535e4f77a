// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build !windows

package signalbroker

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndStop(t *testing.T) {
	ch := New(context.Background(), syscall.SIGUSR1)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	select {
	case sig := <-ch:
		assert.Equal(t, syscall.SIGUSR1, sig)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}

	Stop(ch)

	_, ok := <-ch
	assert.False(t, ok)
}
