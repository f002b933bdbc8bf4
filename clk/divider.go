// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package clk

import (
	"sync"

	"github.com/pkg/errors"
)

// Divider is a clock that divides its parent by a register field.
//
// The field holds the divisor minus one, so the output rate is
// parent / (field + 1).
// The divider has no gate of its own, so enabling it only enables its parent.
type Divider struct {
	name   string
	regs   Regmap
	offset uint32
	shift  uint
	width  uint

	mu     sync.Mutex // guards parent
	parent Clock
	ref    refcount
}

// NewDivider creates a divider clock over the width bits at shift in the
// register at offset.
func NewDivider(name string, parent Clock, regs Regmap, offset uint32, shift, width uint) *Divider {
	return &Divider{
		name:   name,
		parent: parent,
		regs:   regs,
		offset: offset,
		shift:  shift,
		width:  width,
	}
}

// Name returns the name of the clock.
func (d *Divider) Name() string {
	return d.name
}

// Enable enables the parent clock.
func (d *Divider) Enable() error {
	return d.ref.get(func() error { return enableParent(d.Parent()) })
}

// Disable disables the parent clock.
func (d *Divider) Disable() error {
	return d.ref.put(func() error { return disableParent(d.Parent()) })
}

// Enabled returns true if the clock has been enabled.
func (d *Divider) Enabled() bool {
	return d.ref.enabled()
}

func (d *Divider) mask() uint32 {
	return (1<<d.width - 1) << d.shift
}

// Div returns the divisor currently programmed in the register.
func (d *Divider) Div() uint32 {
	return (d.regs.Read(d.offset)&d.mask())>>d.shift + 1
}

// Rate returns the parent rate divided by the programmed divisor.
func (d *Divider) Rate() uint64 {
	p := d.Parent()
	if p == nil {
		return 0
	}
	return p.Rate() / uint64(d.Div())
}

// SetRate programs the smallest divisor that does not exceed the requested
// rate.
func (d *Divider) SetRate(hz uint64) error {
	p := d.Parent()
	if p == nil {
		return errors.Wrap(ErrParent, d.name)
	}
	if hz == 0 {
		return errors.Wrapf(ErrRate, "%s: zero rate", d.name)
	}
	prate := p.Rate()
	div := (prate + hz - 1) / hz
	if div == 0 {
		div = 1
	}
	if div-1 > 1<<d.width-1 {
		return errors.Wrapf(ErrRate, "%s: %d Hz from %d Hz", d.name, hz, prate)
	}
	d.regs.Update(d.offset, d.mask(), uint32(div-1)<<d.shift)
	return nil
}

// Parent returns the parent clock.
func (d *Divider) Parent() Clock {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parent
}

// SetParent accepts only the clock the divider was created with.
func (d *Divider) SetParent(p Clock) error {
	if cur := d.Parent(); cur != nil && p != nil && cur.Name() == p.Name() {
		return nil
	}
	return errors.Wrap(ErrParent, d.name)
}
