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

package smartcard

import (
	"context"
	"strings"
	"testing"
	"time"

	posdummy "github.com/ZaparooProject/go-posdummy"
	testutil "github.com/ZaparooProject/go-posdummy/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	msgIdle      = "A card must be inserted"
	msgGotCard   = "The card you inserted"
	msgReadable  = "The card is now readable"
	msgRemovable = "Operation has been finished"
)

func newTestReader(t *testing.T, delay time.Duration) (*Reader, *posdummy.BlockingProvider, posdummy.Handle, *testutil.Recorder) {
	t.Helper()
	provider := posdummy.NewBlockingProvider()
	r, err := New("scrw-1", &Config{Data: []byte("card"), CardReadyDelay: delay}, provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	rec := testutil.NewRecorder()
	h, err := r.Claim(0, rec)
	require.NoError(t, err)
	require.NoError(t, r.SetEnabled(h, true))
	return r, provider, h, rec
}

func answer(t *testing.T, p *posdummy.BlockingProvider, prefix string, s posdummy.Stimulus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		prompt, ok := p.NextPrompt(time.Until(deadline))
		if ok && strings.HasPrefix(prompt.Message, prefix) {
			require.True(t, p.Answer(s, time.Second))
			return
		}
	}
	t.Fatalf("prompt %q not presented", prefix)
}

func async(fn func() error) <-chan error {
	out := make(chan error, 1)
	go func() { out <- fn() }()
	return out
}

func waitState(t *testing.T, r *Reader, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return r.State() == want }, 2*time.Second, time.Millisecond)
}

func statuses(rec *testutil.Recorder) []CardStatus {
	var out []CardStatus
	for _, p := range rec.Payloads(posdummy.EventStatusUpdate) {
		out = append(out, p.(CardStatus))
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	_, err := New("scrw", &Config{}, posdummy.NewBlockingProvider())
	require.Error(t, err)

	r, err := New("scrw", nil, posdummy.NewBlockingProvider())
	require.NoError(t, err)
	assert.Equal(t, CategoryName, r.Category())
	require.NoError(t, r.Close())
}

func TestCardCycle(t *testing.T) {
	t.Parallel()
	r, p, h, rec := newTestReader(t, time.Minute)
	ctx := context.Background()

	done := async(func() error { return r.BeginInsertion(ctx, h, 2*time.Second) })
	answer(t, p, msgIdle, 0)
	require.NoError(t, <-done)

	answer(t, p, msgGotCard, gotReady)
	waitState(t, r, Readable)
	require.NoError(t, r.EndInsertion(h))
	assert.True(t, r.Inserted())

	data, err := r.ReadData(ctx, h, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("card"), data)

	n, err := r.WriteData(ctx, h, []byte("written"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	data, err = r.ReadData(ctx, h, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("written"), data)

	answer(t, p, msgReadable, readableFinish)
	waitState(t, r, Removable)
	_, err = r.ReadData(ctx, h, time.Second)
	require.ErrorIs(t, err, posdummy.ErrIllegalState)

	done = async(func() error { return r.BeginRemoval(ctx, h, 2*time.Second) })
	answer(t, p, msgRemovable, 0)
	require.NoError(t, <-done)
	require.NoError(t, r.EndRemoval(h))
	assert.False(t, r.Inserted())

	require.True(t, rec.WaitFor(posdummy.EventStatusUpdate, 3, time.Second))
	assert.Equal(t, []CardStatus{NoCard, CardPresent, NoCard}, statuses(rec))
	// readable, end insertion, read, write, read
	assert.Len(t, rec.OfKind(posdummy.EventData), 5)
}

func TestCardNotReadable(t *testing.T) {
	t.Parallel()
	r, p, h, rec := newTestReader(t, time.Minute)

	answer(t, p, msgIdle, 0)
	answer(t, p, msgGotCard, gotUnreadable)
	waitState(t, r, Removable)

	require.True(t, rec.WaitFor(posdummy.EventError, 1, time.Second))
	require.ErrorIs(t, rec.OfKind(posdummy.EventError)[0].Err, posdummy.ErrHardware)
	require.ErrorIs(t, r.EndInsertion(h), posdummy.ErrNotFound)
}

func TestAbortOperation(t *testing.T) {
	t.Parallel()
	r, p, h, rec := newTestReader(t, time.Minute)

	answer(t, p, msgIdle, 0)
	answer(t, p, msgGotCard, gotReady)
	answer(t, p, msgReadable, readableAbort)
	waitState(t, r, Idle)

	require.True(t, rec.WaitFor(posdummy.EventStatusUpdate, 3, time.Second))
	assert.Equal(t, NoCard, statuses(rec)[2])
	require.NoError(t, r.EndRemoval(h))
}

func TestCardBecomesReadableAndIdlesOut(t *testing.T) {
	t.Parallel()
	r, p, _, rec := newTestReader(t, 10*time.Millisecond)

	answer(t, p, msgIdle, 0)
	waitState(t, r, Removable)
	assert.Len(t, rec.OfKind(posdummy.EventData), 1)
}

func TestAccessKeepsCardReadable(t *testing.T) {
	t.Parallel()
	r, p, h, _ := newTestReader(t, 300*time.Millisecond)
	ctx := context.Background()

	answer(t, p, msgIdle, 0)
	answer(t, p, msgGotCard, gotReady)
	waitState(t, r, Readable)
	require.NoError(t, r.EndInsertion(h))

	time.Sleep(200 * time.Millisecond)
	_, err := r.ReadData(ctx, h, time.Second)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, Readable, r.State())

	waitState(t, r, Removable)
}

func TestPreconditions(t *testing.T) {
	t.Parallel()
	r, p, h, _ := newTestReader(t, time.Minute)
	ctx := context.Background()

	require.ErrorIs(t, r.EndInsertion(h), posdummy.ErrNotFound)
	require.NoError(t, r.EndRemoval(h))

	_, err := r.ReadData(ctx, h, time.Second)
	require.ErrorIs(t, err, posdummy.ErrIllegalState)

	answer(t, p, msgIdle, 0)
	answer(t, p, msgGotCard, gotReady)
	waitState(t, r, Readable)

	// readable but the insertion was never completed
	_, err = r.ReadData(ctx, h, time.Second)
	require.ErrorIs(t, err, posdummy.ErrIllegalState)

	require.NoError(t, r.EndInsertion(h))
	_, err = r.WriteData(ctx, h, nil, time.Second)
	require.ErrorIs(t, err, posdummy.ErrInvalidParameter)

	err = r.EndRemoval(h)
	require.ErrorIs(t, err, posdummy.ErrIllegalState)
	var opErr *posdummy.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, KindEndRemoval, opErr.Op)
}

func TestBeginInsertionTimeout(t *testing.T) {
	t.Parallel()
	r, _, h, _ := newTestReader(t, time.Minute)

	err := r.BeginInsertion(context.Background(), h, 10*time.Millisecond)
	require.ErrorIs(t, err, posdummy.ErrTimeout)
	assert.Equal(t, Idle, r.State())
}
