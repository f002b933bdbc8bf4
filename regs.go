// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package saradc

import "math/bits"

// Registers provides access to the SAR ADC register window.
//
// Offsets are byte offsets from the start of the window and must be 32-bit
// aligned.
// Update performs a read/modify/write of the bits in mask, and must appear
// indivisible to other users of the same Registers.
type Registers interface {
	Read(offset uint32) uint32
	Write(offset, value uint32)
	Update(offset, mask, value uint32)
}

// WindowSize is the size of the register window in bytes.
const WindowSize = 0x38

// Register offsets.
const (
	Reg0            uint32 = 0x00
	RegChanList     uint32 = 0x04
	RegAvgCntl      uint32 = 0x08
	Reg3            uint32 = 0x0c
	RegDelay        uint32 = 0x10
	RegLastRead     uint32 = 0x14
	RegFIFORead     uint32 = 0x18
	RegAuxSW        uint32 = 0x1c
	RegChan10SW     uint32 = 0x20
	RegDetectIdleSW uint32 = 0x24
	RegDelta10      uint32 = 0x28
	Reg11           uint32 = 0x2c
	Reg13           uint32 = 0x34
)

// Reg0 fields.
const (
	Reg0PanelDetect   uint32 = 1 << 31
	Reg0BusyMask      uint32 = 7 << 28 // delta, avg and sample busy
	Reg0FIFOFull      uint32 = 1 << 27
	Reg0FIFOEmpty     uint32 = 1 << 26
	Reg0FIFOCountMask uint32 = 0x1f << 21
	Reg0CurrChanMask  uint32 = 7 << 16
	Reg0TempSenSel    uint32 = 1 << 15
	Reg0SamplingStop  uint32 = 1 << 14
	Reg0FIFOIRQEn     uint32 = 1 << 3
	Reg0SampleStart   uint32 = 1 << 2
	Reg0ContinuousEn  uint32 = 1 << 1
	Reg0SampleEnable  uint32 = 1 << 0
)

// RegChanList fields.
const (
	ChanListCountMask uint32 = 7 << 24
)

// ChanListSlotMask returns the mask of the channel index held in the slot.
func ChanListSlotMask(slot uint) uint32 {
	return 7 << (slot * 3)
}

// AvgCntlSamplesMask returns the mask of the number of samples field for the
// channel.
func AvgCntlSamplesMask(ch Channel) uint32 {
	return 3 << (uint(ch) * 2)
}

// AvgCntlModeMask returns the mask of the averaging mode field for the
// channel.
func AvgCntlModeMask(ch Channel) uint32 {
	return 3 << (16 + uint(ch)*2)
}

// Reg3 fields.
const (
	Reg3UseSCDelay        uint32 = 1 << 31
	Reg3ClkEn             uint32 = 1 << 30
	Reg3BL30Initialized   uint32 = 1 << 28
	Reg3SamplingPhase     uint32 = 1 << 26
	Reg3Chan7MuxSelMask   uint32 = 7 << 23
	Reg3DetectEn          uint32 = 1 << 22
	Reg3ADCEn             uint32 = 1 << 21
	Reg3ClkDivMask        uint32 = 0x3f << 10
	Reg3ClkDivShift              = 10
	Reg3ClkDivWidth              = 5
	Reg3ADCEnBit                 = 21
	Reg3BlockDelaySelMask uint32 = 3 << 8
	Reg3BlockDelayMask    uint32 = 0xff
)

// RegDelay fields.
const (
	DelayInputSelMask   uint32 = 3 << 24
	DelayInputCountMask uint32 = 0xff << 16
	DelayBL30Busy       uint32 = 1 << 15
	DelayKernelBusy     uint32 = 1 << 14
	DelaySampleSelMask  uint32 = 3 << 8
	DelaySampleCntMask  uint32 = 0xff
)

// RegFIFORead fields.
const (
	FIFOChanIDMask uint32 = 7 << 12
	FIFOValueMask  uint32 = 0xfff
)

// RegDetectIdleSW fields.
const (
	DetectModeMuxMask uint32 = 7 << 23
	IdleModeMuxMask   uint32 = 7 << 7
)

// Reg11 fields.
const (
	Reg11BandgapEn uint32 = 1 << 13
)

// Reg13 fields.
const (
	Reg13CalibrationMask uint32 = 0x3f << 8
)

// FIFOSize is the number of entries in the hardware FIFO.
const FIFOSize = 32

// FieldGet extracts the field described by mask from v.
func FieldGet(mask, v uint32) uint32 {
	return (v & mask) >> bits.TrailingZeros32(mask)
}

// FieldPrep shifts v into the field described by mask.
func FieldPrep(mask, v uint32) uint32 {
	return (v << bits.TrailingZeros32(mask)) & mask
}
