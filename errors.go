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

package posdummy

import (
	"errors"
	"fmt"
)

// Operation errors. Every error returned by a dispatched operation wraps
// exactly one of these.
var (
	ErrBusy             = errors.New("device busy")
	ErrTimeout          = errors.New("operation timeout")
	ErrIllegalState     = errors.New("illegal device state")
	ErrNotFound         = errors.New("no matching medium")
	ErrHardware         = errors.New("simulated hardware failure")
	ErrAborted          = errors.New("operation aborted")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Session errors
var (
	ErrNotClaimed = errors.New("device not claimed")
	ErrNotEnabled = errors.New("device not enabled")
	ErrClaimed    = errors.New("device already claimed")
	ErrClosed     = errors.New("device closed")
)

// ErrorType classifies errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent indicates the call will fail the same way again
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient indicates the call may succeed if repeated
	ErrorTypeTransient
	// ErrorTypeTimeout indicates the call ran out of time
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "permanent"
	}
}

// OperationError describes a failed device operation
type OperationError struct {
	Err       error
	Op        Kind
	Device    string
	Detail    string
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Device, e.Op, e.Err)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the underlying sentinel
func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError wraps err, deriving type and retryability from the sentinel it wraps
func NewOperationError(op Kind, device string, err error, detail string) *OperationError {
	errType := classify(err)
	return &OperationError{
		Err:       err,
		Op:        op,
		Device:    device,
		Detail:    detail,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// Failure builds a domain error for an operation outcome. The device name and
// operation kind are filled in by the dispatcher.
func Failure(err error, detail string) error {
	return NewOperationError("", "", err, detail)
}

func classify(err error) ErrorType {
	switch {
	case errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrBusy), errors.Is(err, ErrHardware):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsRetryable reports whether repeating the call may succeed
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Retryable
	}
	return classify(err) != ErrorTypePermanent
}

// GetErrorType returns the classification of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return classify(err)
}

// bind attaches operation and device names to an outcome error, keeping
// any detail a category already supplied.
func bind(err error, op Kind, device string) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		bound := *opErr
		if bound.Op == "" {
			bound.Op = op
		}
		if bound.Device == "" {
			bound.Device = device
		}
		return &bound
	}
	return NewOperationError(op, device, err, "")
}
