// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

// Package clk provides the small slice of a clock framework needed to bring
// up the SAR ADC sampling clock.
//
// Clocks are reference counted, so enabling a child enables its parent, and
// the parent is only gated once every child has been disabled.
// Clocks that are backed by hardware registers (Divider and Gate) access
// those registers through a Regmap, so they can be synthesized directly from
// the control registers of the device they clock.
package clk

import (
	"sync"

	"github.com/pkg/errors"
)

// Clock is a node in the clock tree.
type Clock interface {
	// Name returns the unique name of the clock.
	Name() string

	// Enable prepares and enables the clock, and its parents.
	Enable() error

	// Disable disables and unprepares the clock, and its parents.
	Disable() error

	// Enabled returns true if the clock is currently enabled.
	Enabled() bool

	// Rate returns the rate of the clock in Hz.
	Rate() uint64

	// SetRate sets the rate of the clock in Hz.
	SetRate(hz uint64) error

	// Parent returns the current parent of the clock, or nil for a root.
	Parent() Clock

	// SetParent reparents the clock.
	SetParent(p Clock) error
}

// Provider returns clocks by name.
type Provider interface {
	Clock(name string) (Clock, error)
}

// Regmap is the register access needed by register backed clocks.
type Regmap interface {
	Read(offset uint32) uint32
	Update(offset, mask, value uint32)
}

var (
	// ErrNotFound indicates the named clock is not available.
	ErrNotFound = errors.New("clock not found")

	// ErrExists indicates a clock with the same name is already registered.
	ErrExists = errors.New("clock already registered")

	// ErrRate indicates the requested rate cannot be generated by the clock.
	ErrRate = errors.New("rate not supported")

	// ErrParent indicates the requested parent is not valid for the clock.
	ErrParent = errors.New("invalid parent")
)

// Registry is a Provider that clocks can be added to and removed from.
type Registry struct {
	mu     sync.Mutex
	clocks map[string]Clock
}

// NewRegistry creates a Registry containing the provided clocks.
func NewRegistry(cc ...Clock) *Registry {
	r := &Registry{clocks: make(map[string]Clock)}
	for _, c := range cc {
		r.clocks[c.Name()] = c
	}
	return r
}

// Register adds the clock to the registry.
//
// The clock name must be unique within the registry.
func (r *Registry) Register(c Clock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clocks[c.Name()]; ok {
		return errors.Wrap(ErrExists, c.Name())
	}
	r.clocks[c.Name()] = c
	return nil
}

// Unregister removes the named clock from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.clocks, name)
	r.mu.Unlock()
}

// Alias registers an existing clock under an additional name.
func (r *Registry) Alias(alias, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clocks[name]
	if !ok {
		return errors.Wrap(ErrNotFound, name)
	}
	if _, ok := r.clocks[alias]; ok {
		return errors.Wrap(ErrExists, alias)
	}
	r.clocks[alias] = c
	return nil
}

// Clock returns the named clock.
func (r *Registry) Clock(name string) (Clock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clocks[name]; ok {
		return c, nil
	}
	return nil, errors.Wrap(ErrNotFound, name)
}

// refcount tracks the enable count shared by all clock types.
type refcount struct {
	mu    sync.Mutex
	count int
}

// get increments the count and calls on for the first reference.
// The count is left unchanged if on fails.
func (r *refcount) get(on func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		if err := on(); err != nil {
			return err
		}
	}
	r.count++
	return nil
}

// put decrements the count and calls off when the last reference is dropped.
func (r *refcount) put(off func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	r.count--
	if r.count == 0 {
		return off()
	}
	return nil
}

func (r *refcount) enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count > 0
}

func enableParent(p Clock) error {
	if p == nil {
		return nil
	}
	return p.Enable()
}

func disableParent(p Clock) error {
	if p == nil {
		return nil
	}
	return p.Disable()
}
