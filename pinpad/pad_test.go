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

package pinpad

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

func newTestPad(t *testing.T, cfg *Config) (*Pad, *posdummy.BlockingProvider, posdummy.Handle, *testutil.Recorder) {
	t.Helper()
	provider := posdummy.NewBlockingProvider()
	pad, err := New("pinpad-1", cfg, provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pad.Close() })

	rec := testutil.NewRecorder()
	h, err := pad.Claim(0, rec)
	require.NoError(t, err)
	require.NoError(t, pad.SetEnabled(h, true))
	return pad, provider, h, rec
}

// press answers the next keypad prompts with keys and returns the prompt
// messages seen
func press(t *testing.T, p *posdummy.BlockingProvider, keys ...posdummy.Stimulus) []string {
	t.Helper()
	var seen []string
	for _, key := range keys {
		deadline := time.Now().Add(2 * time.Second)
		for {
			prompt, ok := p.NextPrompt(time.Until(deadline))
			require.True(t, ok, "keypad prompt not presented")
			if strings.HasPrefix(prompt.Message, "Enter PIN") {
				seen = append(seen, prompt.Message)
				break
			}
		}
		require.True(t, p.Answer(key, time.Second))
	}
	return seen
}

type entryResult struct {
	err error
	res PINResult
}

func enterAsync(pad *Pad, h posdummy.Handle) <-chan entryResult {
	out := make(chan entryResult, 1)
	go func() {
		res, err := pad.EnterPIN(context.Background(), h, 2*time.Second)
		out <- entryResult{res: res, err: err}
	}()
	return out
}

func TestEncrypt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1142434445", Encrypt("1234", firstShift))
	assert.Equal(t, "21", Encrypt("", lastShift))

	pin, err := Decrypt("11", "42434445")
	require.NoError(t, err)
	assert.Equal(t, "1234", pin)

	_, err = Decrypt("zz", "42")
	require.Error(t, err)
	_, err = Decrypt("11", "424")
	require.Error(t, err)
	_, err = Decrypt("11", "4g")
	require.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero max", cfg: Config{MaxPINLength: 0}},
		{name: "max too long", cfg: Config{MaxPINLength: 10}},
		{name: "min above max", cfg: Config{MinPINLength: 5, MaxPINLength: 4}},
		{name: "negative min", cfg: Config{MinPINLength: -1, MaxPINLength: 4}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			_, err := New("pad", &cfg, posdummy.NewBlockingProvider())
			require.Error(t, err)
		})
	}
}

func TestEnterPIN(t *testing.T) {
	t.Parallel()
	pad, p, h, rec := newTestPad(t, nil)

	res := enterAsync(pad, h)
	seen := press(t, p, 1, 2, 3, 4)
	got := <-res
	require.NoError(t, got.err)
	assert.Equal(t, Success, got.res.Status)
	assert.Equal(t, "11", got.res.KeyID)
	assert.Equal(t, []string{"Enter PIN\n____", "Enter PIN\n*___", "Enter PIN\n**__", "Enter PIN\n***_"}, seen)

	pin, err := got.res.PIN()
	require.NoError(t, err)
	assert.Equal(t, "1234", pin)
	assert.Equal(t, Idle, pad.State())

	// the next entry uses the next key
	res = enterAsync(pad, h)
	press(t, p, 9, 9, 9, 9)
	got = <-res
	require.NoError(t, got.err)
	assert.Equal(t, "12", got.res.KeyID)

	data := rec.Payloads(posdummy.EventData)
	require.Len(t, data, 2)
	assert.Equal(t, Success, data[0].(PINResult).Status)
}

func TestEnterPINKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr    error
		name       string
		wantPIN    string
		keys       []posdummy.Stimulus
		wantStatus PINStatus
	}{
		{name: "clear", keys: []posdummy.Stimulus{1, 2, keyClear, 5, 6, 7, 8}, wantStatus: Success, wantPIN: "5678"},
		{name: "short", keys: []posdummy.Stimulus{1, keyOK}, wantErr: posdummy.ErrIllegalState},
		{name: "error", keys: []posdummy.Stimulus{1, keyError}, wantErr: posdummy.ErrHardware},
		{name: "cancel", keys: []posdummy.Stimulus{keyCancel}, wantStatus: Cancelled},
		{name: "timeout", keys: []posdummy.Stimulus{3, keyTimeout}, wantStatus: TimedOut},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pad, p, h, rec := newTestPad(t, nil)

			res := enterAsync(pad, h)
			press(t, p, tt.keys...)
			got := <-res

			if tt.wantErr != nil {
				require.ErrorIs(t, got.err, tt.wantErr)
				require.True(t, rec.WaitFor(posdummy.EventError, 1, time.Second))
				return
			}
			require.NoError(t, got.err)
			assert.Equal(t, tt.wantStatus, got.res.Status)
			if tt.wantPIN != "" {
				pin, err := got.res.PIN()
				require.NoError(t, err)
				assert.Equal(t, tt.wantPIN, pin)
			}
		})
	}
}

func TestEnterPINVariableLength(t *testing.T) {
	t.Parallel()
	pad, p, h, _ := newTestPad(t, &Config{Message: "Ready", MinPINLength: 2, MaxPINLength: 6})

	res := enterAsync(pad, h)
	seen := press(t, p, 4, 2, keyOK)
	got := <-res
	require.NoError(t, got.err)
	pin, err := got.res.PIN()
	require.NoError(t, err)
	assert.Equal(t, "42", pin)
	assert.Equal(t, "Enter PIN\n**____", seen[2])
}

func TestEnterPINTimeoutKeepsEntryOpen(t *testing.T) {
	t.Parallel()
	pad, p, h, _ := newTestPad(t, nil)

	_, err := pad.EnterPIN(context.Background(), h, 20*time.Millisecond)
	require.ErrorIs(t, err, posdummy.ErrTimeout)
	assert.Equal(t, Entry, pad.State())
	_, ok := p.NextPrompt(time.Second)
	require.True(t, ok)

	// a new call restarts the entry
	res := enterAsync(pad, h)
	require.Eventually(t, func() bool { return pad.Snapshot().Pending == KindEnterPIN }, time.Second, time.Millisecond)
	press(t, p, 1, 1, 1, 1)
	got := <-res
	require.NoError(t, got.err)
	pin, err := got.res.PIN()
	require.NoError(t, err)
	assert.Equal(t, "1111", pin)
}

func TestIdleMessageDisplayed(t *testing.T) {
	t.Parallel()
	_, p, _, _ := newTestPad(t, &Config{Message: "Locked", MaxPINLength: 4})

	require.Eventually(t, func() bool {
		shown := p.Displayed()
		return len(shown) > 0 && shown[0].Message == "Locked"
	}, time.Second, time.Millisecond)
}
