// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package saradc

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// EngineTimeout is the stop and drain timeout of engines created by NewEngine.
const EngineTimeout = 20 * time.Millisecond

// StepClock is a clock that only advances when slept on, so polling loops
// see exactly one poll interval pass per poll, regardless of the host.
type StepClock struct {
	clock.Clock
	mu  sync.Mutex
	now time.Time
}

func NewStepClock() *StepClock {
	m := clock.NewMock()
	return &StepClock{Clock: m, now: m.Now()}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *StepClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *StepClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Engine exposes the sample engine to tests.
type Engine struct {
	e     *engine
	clock *StepClock
}

func NewEngine(regs Registers, bits uint, bl30Timeout time.Duration) *Engine {
	c := NewStepClock()
	return &Engine{clock: c, e: &engine{
		regs: regs,
		lock: &bl30Lock{
			regs:    regs,
			clock:   c,
			poll:    time.Microsecond,
			timeout: bl30Timeout,
		},
		clock:        c,
		poll:         time.Microsecond,
		mask:         1<<bits - 1,
		stopTimeout:  EngineTimeout,
		drainTimeout: EngineTimeout,
	}}
}

func (e *Engine) Configure(ch Channel) {
	e.e.configure(ch)
}

func (e *Engine) SetAveraging(ch Channel, mode AvgMode, n NumSamples) {
	e.e.setAveraging(ch, mode, n)
}

func (e *Engine) Start() {
	e.e.start()
}

func (e *Engine) Stop() error {
	return e.e.stop()
}

func (e *Engine) Drain(ch Channel) (int, error) {
	return e.e.drain(ch)
}

func (e *Engine) GetSample(ch Channel, mode AvgMode, n NumSamples) (int, error) {
	return e.e.getSample(ch, mode, n)
}

func (e *Engine) State() State {
	return e.e.getState()
}

func (e *Engine) Clock() *StepClock {
	return e.clock
}

func (e *Engine) Locked(fn func() error) error {
	return e.e.lock.Do(fn)
}

type SampleFunc = sampleFunc

func Calibrate(regs Registers, sample SampleFunc, bits uint) (Calibration, error) {
	return calibrate(regs, sample, bits, zap.NewNop())
}
