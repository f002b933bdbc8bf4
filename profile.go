// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package saradc

import (
	"time"

	"github.com/pkg/errors"
)

// Policy defines how raw readings are converted.
type Policy int

const (
	// LinearCalibration corrects every reading using a calibration
	// measured from the channel 7 reference voltages at bring-up.
	LinearCalibration Policy = iota

	// VRefScale reports raw readings and leaves conversion to the caller
	// using the reference voltage.
	VRefScale
)

func (p Policy) String() string {
	switch p {
	case LinearCalibration:
		return "linear-calibration"
	case VRefScale:
		return "vref-scale"
	}
	return "unknown"
}

// Profile describes the variant of the SAR ADC in a particular SoC.
type Profile struct {
	// Compatible is the device tree compatible of the SoC variant.
	Compatible string

	// Resolution is the width of samples in bits.
	Resolution uint

	// Policy is the conversion policy for the variant.
	Policy Policy

	// HasSana indicates the variant has a "sana" analog clock.
	HasSana bool

	// HasReg13 indicates the variant has the REG13 calibration field.
	HasReg13 bool

	// DrainTimeout is the time allowed for sampling to complete.
	DrainTimeout time.Duration
}

// VRefMillivolts is the ADC reference voltage.
const VRefMillivolts = 1800

var profiles = []Profile{
	{
		Compatible:   "amlogic,meson8b-saradc",
		Resolution:   10,
		Policy:       LinearCalibration,
		DrainTimeout: time.Millisecond,
	},
	{
		Compatible:   "amlogic,meson-gxbb-saradc",
		Resolution:   10,
		Policy:       LinearCalibration,
		DrainTimeout: time.Millisecond,
	},
	{
		Compatible:   "amlogic,meson-gxl-saradc",
		Resolution:   12,
		Policy:       LinearCalibration,
		DrainTimeout: time.Millisecond,
	},
	{
		Compatible:   "amlogic,meson8-saradc",
		Resolution:   10,
		Policy:       VRefScale,
		HasSana:      true,
		DrainTimeout: 10 * time.Millisecond,
	},
	{
		Compatible:   "amlogic,meson-gxm-saradc",
		Resolution:   12,
		Policy:       VRefScale,
		HasReg13:     true,
		DrainTimeout: 10 * time.Millisecond,
	},
}

// ProfileFor returns the profile for the compatible.
func ProfileFor(compatible string) (Profile, error) {
	for _, p := range profiles {
		if p.Compatible == compatible {
			return p, nil
		}
	}
	return Profile{}, errors.Wrap(ErrUnknownProfile, compatible)
}

// Profiles returns all the supported profiles.
func Profiles() []Profile {
	pp := make([]Profile, len(profiles))
	copy(pp, profiles)
	return pp
}

// Mask returns the mask of valid sample bits.
func (p Profile) Mask() uint32 {
	return 1<<p.Resolution - 1
}
