// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package saradc

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Chan7Mux selects the input of channel 7.
type Chan7Mux uint32

// Values match the REG3 channel 7 mux field.
const (
	MuxVSS Chan7Mux = iota
	MuxVDDDiv4
	MuxVDDDiv2
	MuxVDDMul3Div4
	MuxVDD
	NumCalibrationPoints

	// MuxChannel7 connects channel 7 to its external input.
	MuxChannel7 Chan7Mux = 7
)

// NominalShift is the fixed point shift of the calibration coefficient.
const NominalShift = 12

// CalibrationNominal holds the expected 10-bit codes for the channel 7 mux
// reference voltages.
var CalibrationNominal = [NumCalibrationPoints]int{0, 256, 512, 768, 1023}

// NominalFor returns the expected codes for the channel 7 mux reference
// voltages at the given resolution.
//
// Calibrated readings are in the same units as raw readings, so the
// millivolt scale of the resolution applies to both.
func NominalFor(bits uint) [NumCalibrationPoints]int {
	nominal := CalibrationNominal
	if bits <= 10 {
		return nominal
	}
	for i := range nominal {
		nominal[i] <<= bits - 10
	}
	return nominal
}

// Calibration is a linear correction applied to raw readings.
//
// The zero value is the identity transform.
type Calibration struct {
	// RefVal is the raw code measured at the reference point.
	RefVal int

	// RefNominal is the expected code at the reference point.
	RefNominal int

	// Coef is the slope scaled by 1<<NominalShift.
	// Zero disables the correction.
	Coef int

	// Max is the largest code the device can report.
	Max int
}

// Fit derives the calibration from readings of the reference voltages.
//
// The midpoint is the reference, and the slope is only calculated if the
// readings increase between the 1/4 and 3/4 points.
func Fit(val, nominal [NumCalibrationPoints]int, max int) Calibration {
	c := Calibration{
		RefVal:     val[MuxVDDDiv2],
		RefNominal: nominal[MuxVDDDiv2],
		Max:        max,
	}
	if val[MuxVDDMul3Div4] > val[MuxVDDDiv4] {
		c.Coef = (nominal[MuxVDDMul3Div4] - nominal[MuxVDDDiv4]) << NominalShift
		c.Coef /= val[MuxVDDMul3Div4] - val[MuxVDDDiv4]
	}
	return c
}

// Apply returns the calibrated value for the raw reading, clamped to the
// range of the device.
func (c Calibration) Apply(raw int) int {
	nominal := raw
	if c.Coef > 0 && raw > 0 {
		nominal = ((raw-c.RefVal)*c.Coef)>>NominalShift + c.RefNominal
	}
	if nominal < 0 {
		return 0
	}
	if nominal > c.Max {
		return c.Max
	}
	return nominal
}

type sampleFunc func(ch Channel, mode AvgMode, n NumSamples) (int, error)

// calibrate samples the channel 7 reference voltages and fits the
// calibration to them.
//
// The channel 7 mux is returned to the external input on all paths.
func calibrate(regs Registers, sample sampleFunc, bits uint, log *zap.Logger) (Calibration, error) {
	defer regs.Update(Reg3, Reg3Chan7MuxSelMask, FieldPrep(Reg3Chan7MuxSelMask, uint32(MuxChannel7)))

	var val [NumCalibrationPoints]int
	for i := MuxVSS; i < NumCalibrationPoints; i++ {
		regs.Update(Reg3, Reg3Chan7MuxSelMask, FieldPrep(Reg3Chan7MuxSelMask, uint32(i)))
		v, err := sample(ChanCalibration, NoAveraging, OneSample)
		if err != nil {
			return Calibration{}, errors.Wrapf(err, "calibration point %d", i)
		}
		if v < 0 {
			return Calibration{}, errors.Wrapf(ErrInvalidSample, "calibration point %d: %d", i, v)
		}
		val[i] = v
		log.Debug("calibration", zap.Int("point", int(i)), zap.Int("value", v))
	}
	c := Fit(val, NominalFor(bits), 1<<bits-1)
	log.Debug("calibration end", zap.Int("coef", c.Coef), zap.Int("ref", c.RefVal))
	return c, nil
}
