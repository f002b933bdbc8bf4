// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package clk

// Fixed is a root clock with a fixed rate, such as a crystal oscillator.
type Fixed struct {
	name string
	rate uint64
	ref  refcount
}

// NewFixed creates a fixed rate clock.
func NewFixed(name string, rate uint64) *Fixed {
	return &Fixed{name: name, rate: rate}
}

// Name returns the name of the clock.
func (f *Fixed) Name() string {
	return f.name
}

// Enable enables the clock.
func (f *Fixed) Enable() error {
	return f.ref.get(func() error { return nil })
}

// Disable disables the clock.
func (f *Fixed) Disable() error {
	return f.ref.put(func() error { return nil })
}

// Enabled returns true if the clock has been enabled.
func (f *Fixed) Enabled() bool {
	return f.ref.enabled()
}

// Rate returns the fixed rate.
func (f *Fixed) Rate() uint64 {
	return f.rate
}

// SetRate only accepts the fixed rate.
func (f *Fixed) SetRate(hz uint64) error {
	if hz != f.rate {
		return ErrRate
	}
	return nil
}

// Parent returns nil as a fixed clock is a root.
func (f *Fixed) Parent() Clock {
	return nil
}

// SetParent fails as a fixed clock cannot be reparented.
func (f *Fixed) SetParent(p Clock) error {
	if p == nil {
		return nil
	}
	return ErrParent
}
