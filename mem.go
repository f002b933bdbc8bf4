// SPDX-License-Identifier: MIT
//
// Copyright © 2017 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package saradc

import (
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MMIO provides access to a register window mapped from physical memory.
//
// Reads and writes are single 32-bit accesses that the compiler can neither
// elide nor merge.
// The Update read/modify/write is serialised by a lock, but that only
// protects against other users of the same MMIO, not other bus masters.
type MMIO struct {
	// The lock covers read/modify/write access to the mem block.
	// Individual reads and writes can skip the lock on the assumption that
	// register writes are atomic.
	mu   sync.Mutex
	base int64
	mem8 []byte
	mem  []uint32
}

var (
	// maplock covers mapped
	maplock sync.Mutex
	// the bases currently mapped, to prevent two drivers sharing a block.
	mapped = map[int64]bool{}
)

// DevMem is the default physical memory device.
const DevMem = "/dev/mem"

// Map memory maps the SAR ADC register window at the physical address base
// from the memory device at path, typically DevMem.
//
// The base need not be page aligned.
// A base can only be mapped once at a time.
func Map(path string, base int64) (*MMIO, error) {
	maplock.Lock()
	defer maplock.Unlock()
	if mapped[base] {
		return nil, ErrAlreadyOpen
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	pageSize := int64(os.Getpagesize())
	pageBase := base &^ (pageSize - 1)
	offset := base - pageBase
	length := (offset + WindowSize + pageSize - 1) &^ (pageSize - 1)

	mem8, err := unix.Mmap(
		int(file.Fd()),
		pageBase,
		int(length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap 0x%x", base)
	}

	// Convert the window within the mapped bytes to a []uint32.
	mem := unsafe.Slice((*uint32)(unsafe.Pointer(&mem8[offset])), WindowSize/4)
	mapped[base] = true
	return &MMIO{base: base, mem8: mem8, mem: mem}, nil
}

// Close unmaps the register window.
func (m *MMIO) Close() error {
	maplock.Lock()
	defer maplock.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mem == nil {
		return ErrClosed
	}
	delete(mapped, m.base)
	m.mem = nil
	return unix.Munmap(m.mem8)
}

// Base returns the physical address of the register window.
func (m *MMIO) Base() int64 {
	return m.base
}

// Read returns the value of the register at offset.
func (m *MMIO) Read(offset uint32) uint32 {
	return atomic.LoadUint32(&m.mem[offset/4])
}

// Write sets the value of the register at offset.
func (m *MMIO) Write(offset, value uint32) {
	atomic.StoreUint32(&m.mem[offset/4], value)
}

// Update sets the bits of the register at offset selected by mask to the
// corresponding bits in value.
func (m *MMIO) Update(offset, mask, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &m.mem[offset/4]
	atomic.StoreUint32(r, atomic.LoadUint32(r)&^mask|value&mask)
}
