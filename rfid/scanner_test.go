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

package rfid

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
	msgIdle  = "Present an RFID label"
	msgGot   = "Got label"
	msgError = "Label present but not readable"
)

// two labels: one with two tags, one with a single tag
var testLabels = testutil.LabelFile(
	[]testutil.VirtualTag{
		testutil.NewVirtualTag([]byte{0x01, 0x02}, 0xA0, 0xA1, 0xA2, 0xA3),
		testutil.NewTextTag([]byte{0x03, 0x04}, "hello"),
	},
	[]testutil.VirtualTag{testutil.NewVirtualTag([]byte{0x05, 0x06}, 0xB0, 0xB1)},
)

func newTestScanner(t *testing.T, interval time.Duration) (*Scanner, *posdummy.BlockingProvider, posdummy.Handle, *testutil.Recorder) {
	t.Helper()
	labels, err := ParseLabels(strings.NewReader(testLabels), ProtocolISO14443A)
	require.NoError(t, err)

	provider := posdummy.NewBlockingProvider()
	s, err := New("rfid-1", &Config{Labels: labels, Protocols: ProtocolISO14443A, ReadTimerInterval: interval}, provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec := testutil.NewRecorder()
	h, err := s.Claim(0, rec)
	require.NoError(t, err)
	require.NoError(t, s.SetEnabled(h, true))
	return s, provider, h, rec
}

func awaitPrompt(t *testing.T, p *posdummy.BlockingProvider, prefix string) posdummy.Prompt {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		prompt, ok := p.NextPrompt(time.Until(deadline))
		if ok && strings.HasPrefix(prompt.Message, prefix) {
			return prompt
		}
	}
	t.Fatalf("prompt %q not presented", prefix)
	return posdummy.Prompt{}
}

func answer(t *testing.T, p *posdummy.BlockingProvider, prefix string, s posdummy.Stimulus) {
	t.Helper()
	awaitPrompt(t, p, prefix)
	require.True(t, p.Answer(s, time.Second))
}

func waitPending(t *testing.T, s *Scanner, kind posdummy.Kind) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Snapshot().Pending == kind }, time.Second, time.Millisecond)
}

type readResult struct {
	err  error
	tags []TagData
}

func readAsync(s *Scanner, h posdummy.Handle, req ReadRequest) <-chan readResult {
	out := make(chan readResult, 1)
	go func() {
		tags, err := s.ReadTags(context.Background(), h, req, 5*time.Second)
		out <- readResult{tags: tags, err: err}
	}()
	return out
}

var readAll = ReadRequest{Cmd: ReadID | ReadFullUserData}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	provider := posdummy.NewBlockingProvider()
	_, err := New("rfid-x", &Config{Protocols: ProtocolEPC0}, provider)
	require.ErrorIs(t, err, ErrNoLabels)

	_, err = New("rfid-x", &Config{Labels: []Label{{}}, Protocols: ProtocolEPC0}, provider)
	require.ErrorIs(t, err, ErrInvalidLabel)

	s, err := New("rfid-x", nil, provider)
	require.NoError(t, err)
	assert.Equal(t, CategoryName, s.Category())
	assert.Len(t, s.Labels(), 3)
	require.NoError(t, s.Close())
}

func TestReadTags_WaitsForLabel(t *testing.T) {
	t.Parallel()
	s, provider, h, rec := newTestScanner(t, 0)
	awaitPrompt(t, provider, msgIdle)

	res := readAsync(s, h, readAll)
	waitPending(t, s, KindReadTags)
	require.True(t, provider.Answer(idlePresent, time.Second))

	r := <-res
	require.NoError(t, r.err)
	require.Len(t, r.tags, 2)
	assert.Equal(t, []byte{0x01, 0x02}, r.tags[0].ID)
	assert.Equal(t, []byte{0xA0, 0xA1, 0xA2, 0xA3}, r.tags[0].Data)
	assert.Equal(t, ProtocolISO14443A, r.tags[0].Protocol)

	data := rec.OfKind(posdummy.EventData)
	require.Len(t, data, 1)
	assert.Equal(t, r.tags, data[0].Payload)
	assert.Equal(t, GotTags, s.State())
}

func TestReadTags_ImmediateInGotTags(t *testing.T) {
	t.Parallel()
	s, provider, h, _ := newTestScanner(t, 0)
	answer(t, provider, msgIdle, idlePresent)
	prompt := awaitPrompt(t, provider, msgGot)
	assert.Contains(t, prompt.Message, "ID: 0304")

	req := ReadRequest{
		Cmd:        ReadPartialUserData,
		FilterID:   []byte{0x01, 0x00},
		FilterMask: []byte{0xFF, 0x00},
		Start:      1,
		Length:     2,
	}
	tags, err := s.ReadTags(context.Background(), h, req, 0)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Empty(t, tags[0].ID, "IDs not requested")
	assert.Equal(t, []byte{0xA1, 0xA2}, tags[0].Data)

	_, err = s.ReadTags(context.Background(), h, ReadRequest{Cmd: ReadID, FilterID: []byte{0x09, 0x09}, FilterMask: []byte{0xFF, 0xFF}}, 0)
	require.ErrorIs(t, err, posdummy.ErrNotFound)
}

func TestReadTags_LabelFailed(t *testing.T) {
	t.Parallel()
	s, provider, h, rec := newTestScanner(t, 0)
	awaitPrompt(t, provider, msgIdle)

	res := readAsync(s, h, readAll)
	waitPending(t, s, KindReadTags)
	require.True(t, provider.Answer(idleFailed, time.Second))

	r := <-res
	require.ErrorIs(t, r.err, posdummy.ErrHardware)
	assert.True(t, posdummy.IsRetryable(r.err))
	assert.Len(t, rec.OfKind(posdummy.EventError), 1)
	assert.Equal(t, ErrorTags, s.State())

	// "Retry OK" recovers the label for the next read
	res = readAsync(s, h, readAll)
	waitPending(t, s, KindReadTags)
	answer(t, provider, msgError, errRetryOK)
	r = <-res
	require.NoError(t, r.err)
	assert.Len(t, r.tags, 2)
}

func TestReadTags_InvalidRequest(t *testing.T) {
	t.Parallel()
	s, _, h, _ := newTestScanner(t, 0)

	_, err := s.ReadTags(context.Background(), h, ReadRequest{Cmd: ReadID, FilterID: []byte{1, 2}, FilterMask: []byte{1}}, time.Second)
	require.ErrorIs(t, err, posdummy.ErrInvalidParameter)
	_, err = s.ReadTags(context.Background(), h, ReadRequest{}, time.Second)
	require.ErrorIs(t, err, posdummy.ErrInvalidParameter)
}

func TestLabelsAdvanceAfterFinish(t *testing.T) {
	t.Parallel()
	s, provider, _, _ := newTestScanner(t, 0)

	answer(t, provider, msgIdle, idlePresent)
	answer(t, provider, msgGot, gotContinue)
	assert.Equal(t, 0, s.Current())
	answer(t, provider, msgGot, gotFinish)
	awaitPrompt(t, provider, msgIdle)
	assert.Equal(t, 1, s.Current())

	require.True(t, provider.Answer(idlePresent, time.Second))
	answer(t, provider, msgGot, gotGiveUp)
	awaitPrompt(t, provider, msgIdle)
	assert.Equal(t, 0, s.Current(), "wraps around")
}

func TestLockThenWrite(t *testing.T) {
	t.Parallel()
	s, provider, h, _ := newTestScanner(t, 0)
	awaitPrompt(t, provider, msgIdle)

	done := make(chan error, 1)
	go func() { done <- s.LockTag(context.Background(), h, []byte{0x03, 0x04}, 5*time.Second) }()
	waitPending(t, s, KindLockTag)
	require.True(t, provider.Answer(idlePresent, time.Second))
	answer(t, provider, msgGot, gotContinue)
	require.NoError(t, <-done)
	assert.True(t, s.Labels()[0][1].Locked())

	go func() {
		done <- s.WriteTagData(context.Background(), h, WriteDataRequest{ID: []byte{0x03, 0x04}, Data: []byte{1}}, 5*time.Second)
	}()
	waitPending(t, s, KindWriteTagData)
	answer(t, provider, msgGot, gotContinue)
	err := <-done
	require.ErrorIs(t, err, posdummy.ErrIllegalState)
	assert.Contains(t, err.Error(), "tag locked")
}

func TestWriteTagDataAndID(t *testing.T) {
	t.Parallel()
	s, provider, h, _ := newTestScanner(t, 0)
	answer(t, provider, msgIdle, idlePresent)
	awaitPrompt(t, provider, msgGot)

	done := make(chan error, 1)
	go func() {
		done <- s.WriteTagData(context.Background(), h, WriteDataRequest{ID: []byte{0x01, 0x02}, Data: []byte{0xEE, 0xEF}, Start: 3}, 5*time.Second)
	}()
	waitPending(t, s, KindWriteTagData)
	require.True(t, provider.Answer(gotContinue, time.Second))
	require.NoError(t, <-done)
	assert.Equal(t, []byte{0xA0, 0xA1, 0xA2, 0xEE, 0xEF}, s.Labels()[0][0].Data)

	go func() {
		done <- s.WriteTagID(context.Background(), h, WriteIDRequest{Source: []byte{0x01, 0x02}, Dest: []byte{0x0F}}, 5*time.Second)
	}()
	waitPending(t, s, KindWriteTagID)
	answer(t, provider, msgGot, gotContinue)
	require.NoError(t, <-done)
	assert.Equal(t, []byte{0x0F}, s.Labels()[0][0].ID)

	go func() {
		done <- s.DisableTag(context.Background(), h, []byte{0x77}, 5*time.Second)
	}()
	waitPending(t, s, KindDisableTag)
	answer(t, provider, msgGot, gotContinue)
	require.ErrorIs(t, <-done, posdummy.ErrNotFound)

	go func() {
		done <- s.DisableTag(context.Background(), h, []byte{0x03, 0x04}, 5*time.Second)
	}()
	waitPending(t, s, KindDisableTag)
	answer(t, provider, msgGot, gotRetry)
	require.ErrorIs(t, <-done, posdummy.ErrHardware)
}

func TestContinuousRead(t *testing.T) {
	t.Parallel()
	s, provider, h, rec := newTestScanner(t, 0)
	awaitPrompt(t, provider, msgIdle)

	require.NoError(t, s.StartReadTags(h, ReadRequest{Cmd: ReadID, FilterID: []byte{0x05, 0x06}, FilterMask: []byte{0xFF, 0xFF}}))
	assert.True(t, s.Continuous())

	_, err := s.ReadTags(context.Background(), h, readAll, time.Second)
	require.ErrorIs(t, err, posdummy.ErrBusy)

	// the first label has no 0506 tag
	require.True(t, provider.Answer(idlePresent, time.Second))
	require.Eventually(t, func() bool { return len(rec.OfKind(posdummy.EventError)) == 2 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, rec.OfKind(posdummy.EventError)[1].Err, posdummy.ErrNotFound)

	answer(t, provider, msgGot, gotFinish)
	answer(t, provider, msgIdle, idlePresent)
	require.Eventually(t, func() bool { return len(rec.OfKind(posdummy.EventData)) == 1 }, time.Second, time.Millisecond)
	tags, ok := rec.OfKind(posdummy.EventData)[0].Payload.([]TagData)
	require.True(t, ok)
	require.Len(t, tags, 1)
	assert.Equal(t, []byte{0x05, 0x06}, tags[0].ID)

	require.NoError(t, s.StopReadTags(h))
	assert.False(t, s.Continuous())
}

func TestContinuousRead_RateLimited(t *testing.T) {
	t.Parallel()
	s, provider, h, rec := newTestScanner(t, time.Hour)
	answer(t, provider, msgIdle, idlePresent)
	awaitPrompt(t, provider, msgGot)

	// with a label in the field the first result comes at once
	require.NoError(t, s.StartReadTags(h, readAll))
	require.Len(t, rec.OfKind(posdummy.EventData), 1)

	require.True(t, provider.Answer(gotRetry, time.Second))
	answer(t, provider, msgError, errRetryOK)
	awaitPrompt(t, provider, msgGot)
	assert.Len(t, rec.OfKind(posdummy.EventData), 1, "inside the read timer interval")
	assert.Empty(t, rec.OfKind(posdummy.EventError))
}
