// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

// Package sim provides a register level simulation of the SAR ADC, for
// testing drivers without hardware.
//
// The simulation models the parts of the block a driver interacts with:
// the FIFO, the busy mask, the sample engine enable/start/stop bits, the
// BL30 and kernel busy flags, and the channel 7 mux.
// Conversions are not modelled, instead the samples delivered to the FIFO
// when sampling is started are provided by Queue or a Source.
package sim

import (
	"sync"

	"github.com/warthog618/saradc"
)

// Source returns the samples generated by a conversion of the channel.
// For channel 7 mux is the setting of the channel 7 mux.
type Source func(ch saradc.Channel, mux saradc.Chan7Mux) []uint16

// Access is a record of a write to a register.
type Access struct {
	Offset uint32
	Value  uint32
}

// ADC is a simulated SAR ADC register block.
//
// ADC implements saradc.Registers.
type ADC struct {
	mu   sync.Mutex
	regs [saradc.WindowSize / 4]uint32
	fifo []uint32

	// Samples to deliver on the next start.
	queued []uint32
	source Source

	// Number of Reg0 reads the busy mask remains set after a start or stop.
	busyPolls int
	busy      int
	stuck     bool
	hangStart bool
	hangStop  bool

	// Number of RegDelay reads the BL30 flag remains set, -1 for forever.
	bl30Busy int

	starts int
	writes []Access
}

// New creates a simulated ADC with all registers cleared.
func New() *ADC {
	return &ADC{}
}

// Read returns the value of the register at offset, with the side effects
// of the hardware.
//
// Reading RegFIFORead pops the FIFO, reading Reg0 counts down the busy
// mask, and reading RegDelay counts down the BL30 busy flag.
func (a *ADC) Read(offset uint32) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch offset {
	case saradc.Reg0:
		v := a.reg0()
		if a.busy > 0 {
			a.busy--
		}
		return v
	case saradc.RegDelay:
		v := a.regs[offset/4] &^ saradc.DelayBL30Busy
		if a.bl30Busy != 0 {
			v |= saradc.DelayBL30Busy
			if a.bl30Busy > 0 {
				a.bl30Busy--
			}
		}
		return v
	case saradc.RegFIFORead:
		if len(a.fifo) == 0 {
			return 0
		}
		v := a.fifo[0]
		a.fifo = a.fifo[1:]
		a.regs[saradc.RegLastRead/4] = v
		return v
	}
	return a.regs[offset/4]
}

func (a *ADC) reg0() uint32 {
	v := a.regs[0] &^ (saradc.Reg0BusyMask | saradc.Reg0FIFOCountMask |
		saradc.Reg0FIFOFull | saradc.Reg0FIFOEmpty)
	if a.busy > 0 || a.stuck {
		v |= 1 << 28 // sample busy
	}
	n := uint32(len(a.fifo))
	switch {
	case n == 0:
		v |= saradc.Reg0FIFOEmpty
	case n >= saradc.FIFOSize:
		v |= saradc.Reg0FIFOFull
		n = saradc.FIFOSize - 1
	}
	return v | saradc.FieldPrep(saradc.Reg0FIFOCountMask, n)
}

// Write sets the value of the register at offset.
func (a *ADC) Write(offset, value uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store(offset, value)
}

// Update sets the bits of the register at offset selected by mask.
//
// The read portion has none of the side effects of Read.
func (a *ADC) Update(offset, mask, value uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store(offset, a.regs[offset/4]&^mask|value&mask)
}

func (a *ADC) store(offset, value uint32) {
	a.writes = append(a.writes, Access{Offset: offset, Value: value})
	if offset == saradc.RegFIFORead {
		return
	}
	if offset == saradc.Reg0 {
		// start and stop are self clearing strobes
		if value&saradc.Reg0SamplingStop != 0 {
			value &^= saradc.Reg0SamplingStop
			a.busy = a.busyPolls
			if a.hangStop {
				a.stuck = true
				a.hangStop = false
			}
		}
		if value&saradc.Reg0SampleStart != 0 {
			value &^= saradc.Reg0SampleStart
			if value&saradc.Reg0SampleEnable != 0 {
				a.regs[0] = value
				a.convert()
				return
			}
		}
	}
	a.regs[offset/4] = value
}

// convert delivers the samples for a start to the FIFO.
func (a *ADC) convert() {
	a.starts++
	a.busy = a.busyPolls
	if a.hangStart {
		a.stuck = true
		a.hangStart = false
	}
	if a.queued != nil {
		a.push(a.queued...)
		a.queued = nil
		return
	}
	if a.source == nil {
		return
	}
	ch := saradc.Channel(saradc.FieldGet(saradc.ChanListSlotMask(0), a.regs[saradc.RegChanList/4]))
	mux := saradc.Chan7Mux(saradc.FieldGet(saradc.Reg3Chan7MuxSelMask, a.regs[saradc.Reg3/4]))
	for _, v := range a.source(ch, mux) {
		a.push(Entry(ch, v))
	}
}

func (a *ADC) push(ee ...uint32) {
	for _, e := range ee {
		if len(a.fifo) >= saradc.FIFOSize {
			return
		}
		a.fifo = append(a.fifo, e)
	}
}

// Entry returns the FIFO value for a sample from the channel.
func Entry(ch saradc.Channel, v uint16) uint32 {
	return saradc.FieldPrep(saradc.FIFOChanIDMask, uint32(ch)) |
		uint32(v)&saradc.FIFOValueMask
}

// Entries returns the FIFO values for samples from the channel.
func Entries(ch saradc.Channel, vv ...uint16) []uint32 {
	ee := make([]uint32, len(vv))
	for i, v := range vv {
		ee[i] = Entry(ch, v)
	}
	return ee
}

// Preload places entries directly in the FIFO, as if left over from a
// previous sample.
func (a *ADC) Preload(ee ...uint32) {
	a.mu.Lock()
	a.push(ee...)
	a.mu.Unlock()
}

// Queue stages entries to be delivered to the FIFO by the next start.
func (a *ADC) Queue(ee ...uint32) {
	a.mu.Lock()
	a.queued = append(a.queued, ee...)
	a.mu.Unlock()
}

// SetSource sets the source of samples for starts with nothing queued.
func (a *ADC) SetSource(s Source) {
	a.mu.Lock()
	a.source = s
	a.mu.Unlock()
}

// SetBusyPolls sets the number of Reg0 reads the busy mask remains set
// after a start or stop.
func (a *ADC) SetBusyPolls(n int) {
	a.mu.Lock()
	a.busyPolls = n
	a.mu.Unlock()
}

// SetStuckBusy sets or clears a busy mask that never clears.
func (a *ADC) SetStuckBusy(stuck bool) {
	a.mu.Lock()
	a.stuck = stuck
	a.mu.Unlock()
}

// HangOnStart makes the busy mask stick after the next start.
func (a *ADC) HangOnStart() {
	a.mu.Lock()
	a.hangStart = true
	a.mu.Unlock()
}

// HangOnStop makes the busy mask stick after the next stop.
func (a *ADC) HangOnStop() {
	a.mu.Lock()
	a.hangStop = true
	a.mu.Unlock()
}

// SetBL30Busy holds the BL30 busy flag for n reads of RegDelay, or forever
// if n is negative.
func (a *ADC) SetBL30Busy(n int) {
	a.mu.Lock()
	a.bl30Busy = n
	a.mu.Unlock()
}

// SetBL30Initialized sets the flag indicating BL30 has initialized the ADC.
func (a *ADC) SetBL30Initialized() {
	a.mu.Lock()
	a.regs[saradc.Reg3/4] |= saradc.Reg3BL30Initialized
	a.mu.Unlock()
}

// Peek returns the value of the register without side effects.
func (a *ADC) Peek(offset uint32) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if offset == saradc.Reg0 {
		return a.reg0()
	}
	return a.regs[offset/4]
}

// FIFOLen returns the number of entries in the FIFO.
func (a *ADC) FIFOLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fifo)
}

// Starts returns the number of times sampling has been started.
func (a *ADC) Starts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts
}

// Writes returns the writes made to the registers, in order.
func (a *ADC) Writes() []Access {
	a.mu.Lock()
	defer a.mu.Unlock()
	ww := make([]Access, len(a.writes))
	copy(ww, a.writes)
	return ww
}

// Ramp returns a Source that produces eight samples at a level unique to
// each channel, and the reference voltages for channel 7 with resolution
// bits.
func Ramp(bits uint) Source {
	max := uint16(1<<bits - 1)
	return func(ch saradc.Channel, mux saradc.Chan7Mux) []uint16 {
		v := uint16(uint32(ch+1) * uint32(max) / (saradc.NumChannels + 1))
		if ch == saradc.ChanCalibration && mux < saradc.NumCalibrationPoints {
			v = uint16(uint32(mux) * uint32(max) / 4)
		}
		vv := make([]uint16, 8)
		for i := range vv {
			vv[i] = v
		}
		return vv
	}
}
