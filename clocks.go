// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

package saradc

import (
	"github.com/pkg/errors"
	"github.com/warthog618/saradc/clk"
	"go.uber.org/multierr"
)

// Clock names requested from the clock Provider.
const (
	ClkIn   = "clkin"
	ClkCore = "core"
	ClkSana = "sana"
	ClkSel  = "adc_sel"
	ClkADC  = "adc_clk"
	ClkDiv  = "adc_div"
)

// DefaultClockRate is the ADC sampling clock rate.
const DefaultClockRate = 1200000

// registrar is implemented by Providers that accept new clocks, such as
// clk.Registry.
type registrar interface {
	Register(c clk.Clock) error
	Unregister(name string)
}

// clockTree sequences the clocks feeding the ADC.
type clockTree struct {
	clkin clk.Clock
	core  clk.Clock
	sana  clk.Clock
	sel   clk.Clock
	gate  clk.Clock
	div   clk.Clock

	// clocks synthesized from REG3 and the registrar holding them
	reg         registrar
	synthesized []string

	// clocks enabled by the tree, in order of enabling
	enabled []clk.Clock
	// the length of enabled after bringUp
	upMark int
}

func getClock(p clk.Provider, name string, optional bool) (clk.Clock, error) {
	c, err := p.Clock(name)
	if err == nil {
		return c, nil
	}
	if optional && errors.Is(err, clk.ErrNotFound) {
		return nil, nil
	}
	return nil, &ClockError{Clock: name, Op: "get", Err: err}
}

// newClockTree gets the clocks from the provider, and synthesizes the divider
// and gate from REG3 if the provider has neither.
//
// The synthesized clocks are named after the node so that multiple devices
// can share a registrar.
func newClockTree(p clk.Provider, regs Registers, prof Profile, node string) (*clockTree, error) {
	t := &clockTree{}
	var err error
	if t.clkin, err = getClock(p, ClkIn, false); err != nil {
		return nil, err
	}
	if t.core, err = getClock(p, ClkCore, false); err != nil {
		return nil, err
	}
	if prof.HasSana {
		if t.sana, err = getClock(p, ClkSana, true); err != nil {
			return nil, err
		}
	}
	if t.gate, err = getClock(p, ClkADC, true); err != nil {
		return nil, err
	}
	if t.div, err = getClock(p, ClkDiv, true); err != nil {
		return nil, err
	}
	if t.sel, err = getClock(p, ClkSel, true); err != nil {
		return nil, err
	}
	if t.gate == nil && t.div == nil {
		if err = t.synthesize(p, regs, node); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// synthesize creates the divider and gate from their REG3 fields, as older
// SoCs have no clock controller providing them.
func (t *clockTree) synthesize(p clk.Provider, regs Registers, node string) error {
	t.div = clk.NewDivider(node+"#adc_div", t.clkin, regs, Reg3, Reg3ClkDivShift, Reg3ClkDivWidth)
	t.gate = clk.NewGate(node+"#adc_en", nil, regs, Reg3, Reg3ADCEnBit)
	r, ok := p.(registrar)
	if !ok {
		return nil
	}
	for _, c := range []clk.Clock{t.div, t.gate} {
		if err := r.Register(c); err != nil {
			t.reg = r
			t.unregister()
			return &ClockError{Clock: c.Name(), Op: "register", Err: err}
		}
		t.synthesized = append(t.synthesized, c.Name())
	}
	t.reg = r
	return nil
}

func (t *clockTree) unregister() {
	if t.reg == nil {
		return
	}
	for _, name := range t.synthesized {
		t.reg.Unregister(name)
	}
	t.synthesized = nil
}

func (t *clockTree) enable(c clk.Clock) error {
	if c == nil {
		return nil
	}
	if err := c.Enable(); err != nil {
		return err
	}
	t.enabled = append(t.enabled, c)
	return nil
}

// unwind disables clocks enabled since mark, in reverse order.
func (t *clockTree) unwind(mark int) (err error) {
	for i := len(t.enabled) - 1; i >= mark; i-- {
		c := t.enabled[i]
		if derr := c.Disable(); derr != nil {
			err = multierr.Append(err, errors.Wrapf(derr, "disable %s", c.Name()))
		}
	}
	t.enabled = t.enabled[:mark]
	return err
}

func (t *clockTree) fail(mark int, c clk.Clock, op string, err error) error {
	return &ClockError{Clock: c.Name(), Op: op, Err: multierr.Append(err, t.unwind(mark))}
}

// bringUp sets the ADC clock to rate.
//
// The selector is enabled and parented to clkin, then the divider is
// enabled and its rate set.
// On failure all clocks enabled by bringUp are disabled.
func (t *clockTree) bringUp(rate uint64) error {
	mark := len(t.enabled)
	if t.sel != nil {
		if err := t.enable(t.sel); err != nil {
			return t.fail(mark, t.sel, "enable", err)
		}
		if err := t.sel.SetParent(t.clkin); err != nil {
			return t.fail(mark, t.sel, "set parent", err)
		}
	}
	if t.div != nil {
		if err := t.enable(t.div); err != nil {
			return t.fail(mark, t.div, "enable", err)
		}
		if err := t.div.SetRate(rate); err != nil {
			return t.fail(mark, t.div, "set rate", err)
		}
	}
	t.upMark = len(t.enabled)
	return nil
}

// powerOn enables the clocks needed while the ADC is powered.
//
// On failure all clocks enabled by powerOn are disabled.
func (t *clockTree) powerOn() error {
	mark := len(t.enabled)
	for _, c := range []clk.Clock{t.core, t.sana, t.gate} {
		if c == nil {
			continue
		}
		if err := t.enable(c); err != nil {
			return t.fail(mark, c, "enable", err)
		}
	}
	return nil
}

// powerOff disables the clocks enabled by powerOn.
func (t *clockTree) powerOff() error {
	if len(t.enabled) < t.upMark {
		return nil
	}
	return t.unwind(t.upMark)
}

// teardown disables all clocks enabled by the tree.
func (t *clockTree) teardown() error {
	t.upMark = 0
	return t.unwind(0)
}
