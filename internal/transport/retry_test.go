// go-posdummy
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-posdummy.
//
// go-posdummy is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-posdummy is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-posdummy; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()
	var retries []int
	cfg := RetryConfig{
		Description: "ttyS0",
		MaxRetries:  3,
		OnRetry:     func(attempt int) { retries = append(retries, attempt) },
	}

	got, err := WithRetry(context.Background(), cfg, func(attempt int) (string, bool, error) {
		if attempt < 2 {
			return "", true, nil
		}
		return "open", false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "open", got)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestWithRetry_Exhausted(t *testing.T) {
	t.Parallel()
	calls := 0
	_, err := WithRetry(context.Background(), RetryConfig{Description: "ttyS0", MaxRetries: 2},
		func(int) (int, bool, error) {
			calls++
			return 0, true, nil
		})
	require.ErrorIs(t, err, posdummy.ErrHardware)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_PermanentErrorStops(t *testing.T) {
	t.Parallel()
	permanent := errors.New("no such port")
	calls := 0
	_, err := WithRetry(context.Background(), RetryConfig{MaxRetries: 5},
		func(int) (int, bool, error) {
			calls++
			return 0, false, permanent
		})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithRetry(ctx, RetryConfig{MaxRetries: 5, RetryDelay: time.Hour},
		func(int) (int, bool, error) { return 0, true, nil })
	require.ErrorIs(t, err, posdummy.ErrAborted)
}
