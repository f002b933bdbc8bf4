// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package saradc

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// bl30Lock arbitrates the ADC block between this driver and the BL30
// co-processor.
//
// The mutex serialises local users, the KERNEL_BUSY and BL30_BUSY flags in
// RegDelay arbitrate with BL30.
// The flags are always read from hardware, never cached.
type bl30Lock struct {
	mu    sync.Mutex
	regs  Registers
	clock clock.Clock
	poll  time.Duration
	// zero waits forever for BL30
	timeout time.Duration
}

// Do runs fn while holding the lock.
//
// The lock is released on every return path from fn, including panics.
func (l *bl30Lock) Do(fn func() error) error {
	if err := l.acquire(); err != nil {
		return err
	}
	defer l.release()
	return fn()
}

func (l *bl30Lock) acquire() error {
	l.mu.Lock()

	// prevent BL30 from using the SAR ADC while we are using it
	l.regs.Update(RegDelay, DelayKernelBusy, DelayKernelBusy)

	// wait until BL30 releases its lock
	var deadline time.Time
	if l.timeout > 0 {
		deadline = l.clock.Now().Add(l.timeout)
	}
	for l.regs.Read(RegDelay)&DelayBL30Busy != 0 {
		if l.timeout > 0 && !l.clock.Now().Before(deadline) {
			l.release()
			return errors.Wrap(ErrTimeout, "waiting for BL30")
		}
		l.clock.Sleep(l.poll)
	}
	return nil
}

func (l *bl30Lock) release() {
	l.regs.Update(RegDelay, DelayKernelBusy, 0)
	l.mu.Unlock()
}
