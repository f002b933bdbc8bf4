// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package saradc

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout indicates the hardware did not become idle within the
	// allowed time.
	ErrTimeout = errors.New("timeout")

	// ErrEmptyResult indicates the FIFO held no samples for the requested
	// channel.
	// The read may be retried.
	ErrEmptyResult = errors.New("no samples for channel")

	// ErrInvalidSample indicates a calibration reading was out of range.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrInvalidChannel indicates the channel is not a SAR ADC input.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrClockFailure indicates a clock could not be brought up.
	ErrClockFailure = errors.New("clock failure")

	// ErrClosed indicates the device or register window has been closed.
	ErrClosed = errors.New("closed")

	// ErrAlreadyOpen indicates the register window is already mapped.
	ErrAlreadyOpen = errors.New("already open")

	// ErrUnknownProfile indicates there is no profile for the compatible.
	ErrUnknownProfile = errors.New("unknown profile")
)

// ClockError describes a failure to get or configure a clock.
//
// ClockErrors match ErrClockFailure using errors.Is.
type ClockError struct {
	// Clock is the name of the clock.
	Clock string

	// Op is the operation that failed.
	Op string

	// Err is the underlying error, including any errors from tearing down
	// clocks already enabled.
	Err error
}

func (e *ClockError) Error() string {
	return fmt.Sprintf("clock %s: %s: %v", e.Clock, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClockError) Unwrap() error {
	return e.Err
}

// Is matches ErrClockFailure.
func (e *ClockError) Is(target error) bool {
	return target == ErrClockFailure
}
