// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package saradc

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Channel identifies one of the eight SAR ADC inputs.
type Channel int

const (
	// ChanTempSensor is hard wired to the on-die temperature sensor.
	ChanTempSensor Channel = 6

	// ChanCalibration can be muxed to fixed reference voltages.
	ChanCalibration Channel = 7

	// NumChannels is the number of SAR ADC inputs.
	NumChannels = 8
)

// Valid returns true if the channel is a SAR ADC input.
func (ch Channel) Valid() bool {
	return ch >= 0 && ch < NumChannels
}

// AvgMode defines how the hardware combines multiple samples into one
// reading.
type AvgMode uint32

// Values match the AVG_CNTL mode field.
const (
	NoAveraging AvgMode = iota
	MeanAveraging
	MedianAveraging
)

// NumSamples is the number of samples the hardware averages over.
type NumSamples uint32

// Values match the AVG_CNTL samples field.
const (
	OneSample NumSamples = iota
	TwoSamples
	FourSamples
	EightSamples
)

// State is the state of the sample engine.
type State int

const (
	// Idle indicates the sample engine is stopped.
	Idle State = iota

	// ChannelConfigured indicates a channel has been selected.
	ChannelConfigured

	// Running indicates the sample engine has been started.
	Running

	// Draining indicates samples are being read from the FIFO.
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ChannelConfigured:
		return "configured"
	case Running:
		return "running"
	case Draining:
		return "draining"
	}
	return "unknown"
}

// engine drives the sampling pipeline.
//
// All methods other than getSample assume the caller holds the lock.
type engine struct {
	regs  Registers
	lock  *bl30Lock
	clock clock.Clock
	poll  time.Duration
	// value mask for the device resolution
	mask         uint32
	stopTimeout  time.Duration
	drainTimeout time.Duration
	// read without the lock by diagnostics
	state atomic.Int32
}

func (e *engine) setState(s State) {
	e.state.Store(int32(s))
}

func (e *engine) getState() State {
	return State(e.state.Load())
}

// configure maps the external channel to internal slot 0, the only slot
// sampled, and mirrors it into the detect and idle mode muxes.
func (e *engine) configure(ch Channel) {
	e.regs.Update(RegChanList, ChanListCountMask, FieldPrep(ChanListCountMask, 1))
	e.regs.Update(RegChanList, ChanListSlotMask(0), FieldPrep(ChanListSlotMask(0), uint32(ch)))
	e.regs.Update(RegDetectIdleSW, DetectModeMuxMask, FieldPrep(DetectModeMuxMask, uint32(ch)))
	e.regs.Update(RegDetectIdleSW, IdleModeMuxMask, FieldPrep(IdleModeMuxMask, uint32(ch)))
	e.setState(ChannelConfigured)
}

func (e *engine) setAveraging(ch Channel, mode AvgMode, n NumSamples) {
	e.regs.Update(RegAvgCntl, AvgCntlSamplesMask(ch), FieldPrep(AvgCntlSamplesMask(ch), uint32(n)))
	e.regs.Update(RegAvgCntl, AvgCntlModeMask(ch), FieldPrep(AvgCntlModeMask(ch), uint32(mode)))
}

func (e *engine) start() {
	// enable must reach the hardware before start
	e.regs.Update(Reg0, Reg0SampleEnable, Reg0SampleEnable)
	e.regs.Update(Reg0, Reg0SampleStart, Reg0SampleStart)
	e.setState(Running)
}

// stop stops sampling and disables the sample engine.
//
// If the engine does not go idle the enable is left set, as forcing it
// could disturb a conversion shared with BL30.
func (e *engine) stop() error {
	e.regs.Update(Reg0, Reg0SamplingStop, Reg0SamplingStop)
	if err := e.waitIdle(e.stopTimeout); err != nil {
		return errors.Wrap(err, "stopping sample engine")
	}
	e.regs.Update(Reg0, Reg0SampleEnable, 0)
	e.setState(Idle)
	return nil
}

// waitIdle polls the busy mask until clear.
//
// The mask is only tested as a whole as the layout of the busy bits within
// it varies between revisions.
func (e *engine) waitIdle(timeout time.Duration) error {
	deadline := e.clock.Now().Add(timeout)
	for e.regs.Read(Reg0)&Reg0BusyMask != 0 {
		if !e.clock.Now().Before(deadline) {
			return ErrTimeout
		}
		e.clock.Sleep(e.poll)
	}
	return nil
}

func (e *engine) fifoCount() uint32 {
	return FieldGet(Reg0FIFOCountMask, e.regs.Read(Reg0))
}

// drain empties the FIFO and returns the mean of the entries tagged with the
// channel.
// Entries for other channels are discarded.
func (e *engine) drain(ch Channel) (int, error) {
	e.state.CompareAndSwap(int32(Running), int32(Draining))
	if err := e.waitIdle(e.drainTimeout); err != nil {
		return 0, errors.Wrap(err, "waiting for samples")
	}
	sum, count := 0, 0
	for popped := 0; popped < FIFOSize && e.fifoCount() > 0; popped++ {
		v := e.regs.Read(RegFIFORead)
		if Channel(FieldGet(FIFOChanIDMask, v)) != ch {
			continue
		}
		sum += int(FieldGet(FIFOValueMask, v) & e.mask)
		count++
	}
	if count == 0 {
		return 0, ErrEmptyResult
	}
	return sum / count, nil
}

// getSample performs one complete sample acquisition under the lock.
func (e *engine) getSample(ch Channel, mode AvgMode, n NumSamples) (int, error) {
	var val int
	err := e.lock.Do(func() error {
		// clear stale values from the FIFO, ignoring errors
		e.drain(ch)

		e.setAveraging(ch, mode, n)
		e.configure(ch)
		e.start()
		v, err := e.drain(ch)
		val = v
		return multierr.Append(err, e.stop())
	})
	return val, err
}
