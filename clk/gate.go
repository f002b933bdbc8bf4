// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package clk

import "github.com/pkg/errors"

// Gate is a clock controlled by a single enable bit in a register.
type Gate struct {
	name   string
	parent Clock
	regs   Regmap
	offset uint32
	mask   uint32
	ref    refcount
}

// NewGate creates a gate over the bit in the register at offset.
//
// The parent may be nil, in which case the gate reports a zero rate.
func NewGate(name string, parent Clock, regs Regmap, offset uint32, bit uint) *Gate {
	return &Gate{
		name:   name,
		parent: parent,
		regs:   regs,
		offset: offset,
		mask:   1 << bit,
	}
}

// Name returns the name of the clock.
func (g *Gate) Name() string {
	return g.name
}

// Enable sets the gate bit, after enabling the parent.
func (g *Gate) Enable() error {
	return g.ref.get(func() error {
		if err := enableParent(g.parent); err != nil {
			return err
		}
		g.regs.Update(g.offset, g.mask, g.mask)
		return nil
	})
}

// Disable clears the gate bit, then disables the parent.
func (g *Gate) Disable() error {
	return g.ref.put(func() error {
		g.regs.Update(g.offset, g.mask, 0)
		return disableParent(g.parent)
	})
}

// Enabled returns true if the gate has been enabled.
func (g *Gate) Enabled() bool {
	return g.ref.enabled()
}

// IsSet returns the state of the gate bit in hardware.
func (g *Gate) IsSet() bool {
	return g.regs.Read(g.offset)&g.mask != 0
}

// Rate returns the parent rate.
func (g *Gate) Rate() uint64 {
	if g.parent == nil {
		return 0
	}
	return g.parent.Rate()
}

// SetRate passes the request through to the parent.
func (g *Gate) SetRate(hz uint64) error {
	if g.parent == nil {
		return errors.Wrap(ErrRate, g.name)
	}
	return g.parent.SetRate(hz)
}

// Parent returns the parent clock.
func (g *Gate) Parent() Clock {
	return g.parent
}

// SetParent fails as a gate has a fixed parent.
func (g *Gate) SetParent(p Clock) error {
	if p == g.parent {
		return nil
	}
	return errors.Wrap(ErrParent, g.name)
}
