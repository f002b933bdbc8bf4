// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

// Package saradc provides a user space driver for the Amlogic Meson SAR
// (Successive Approximation Register) ADC.
//
// The ADC block is shared with the BL30 co-processor, so every reading is
// performed while holding a lock implemented by flags in the ADC registers.
// Readings are taken by polling the hardware, the interrupt is only used as
// a wake signal.
//
// Example of use:
//
//	regs, err := saradc.Map(saradc.DevMem, 0xc1108680)
//	...
//	defer regs.Close()
//	clocks := clk.NewRegistry(clk.NewFixed(saradc.ClkIn, 24000000), ...)
//	cfg := saradc.DefaultConfig("amlogic,meson8b-saradc")
//	adc, err := saradc.New(regs, clocks, cfg)
//	...
//	defer adc.Close()
//	v, err := adc.Read(2, saradc.Raw)
//
// Supported SoC variants are described by Profiles, selected by device tree
// compatible.
// Older variants correct every reading with a calibration measured at
// bring-up, while newer variants report raw codes scaled by VRef.
//
// The library does not support sampling multiple channels at once, nor
// continuous sampling.
package saradc

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/warthog618/saradc/clk"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Precision is the type of reading requested.
type Precision int

const (
	// Raw is a single unaveraged sample.
	Raw Precision = iota

	// Averaged is the mean of eight samples, averaged by the hardware.
	Averaged
)

// Config defines the static configuration of a Device.
type Config struct {
	// Compatible selects the Profile.
	Compatible string

	// Node is the location of the device, used to name synthesized clocks.
	// Defaults to saradc@<Base> if empty.
	Node string

	// Base is the physical address of the register window.
	Base int64

	// ClockRate is the ADC sampling clock rate in Hz.
	ClockRate uint64

	// PollInterval is the sleep between polls of the hardware.
	// Defaults to DefaultPollInterval if zero.
	PollInterval time.Duration

	// StopTimeout is the time allowed for the engine to stop.
	// Defaults to DefaultStopTimeout if zero.
	StopTimeout time.Duration

	// DrainTimeout is the time allowed for sampling to complete.
	// Defaults to the Profile DrainTimeout if zero.
	DrainTimeout time.Duration

	// BL30Timeout is the time allowed for BL30 to release the ADC.
	// Zero waits indefinitely.
	BL30Timeout time.Duration
}

const (
	// DefaultPollInterval is the default sleep between polls of the hardware.
	DefaultPollInterval = time.Microsecond

	// DefaultStopTimeout is the default time allowed for the engine to stop.
	DefaultStopTimeout = 10 * time.Millisecond
)

// DefaultConfig returns the default configuration for the compatible.
func DefaultConfig(compatible string) Config {
	return Config{
		Compatible:   compatible,
		ClockRate:    DefaultClockRate,
		PollInterval: DefaultPollInterval,
		StopTimeout:  DefaultStopTimeout,
	}
}

// Device is a SAR ADC.
type Device struct {
	// mu guards closed, sampling is serialised by the engine lock.
	mu     sync.RWMutex
	closed bool

	regs            Registers
	profile         Profile
	cfg             Config
	log             *zap.Logger
	clock           clock.Clock
	clocks          *clockTree
	engine          *engine
	calib           Calibration
	bl30Initialized bool
	irqs            atomic.Uint64
}

// Option modifies the construction of a Device.
type Option func(*Device)

// WithLogger sets the logger used by the Device.
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) {
		d.log = l
	}
}

// WithClock sets the time source used for polling the hardware.
func WithClock(c clock.Clock) Option {
	return func(d *Device) {
		d.clock = c
	}
}

// New creates a Device, brings up its clocks, powers it on and, for
// calibrated profiles, calibrates it.
//
// On error all clocks enabled by New are disabled and the hardware is
// powered off.
func New(regs Registers, clocks clk.Provider, cfg Config, options ...Option) (*Device, error) {
	prof, err := ProfileFor(cfg.Compatible)
	if err != nil {
		return nil, err
	}
	if cfg.Node == "" {
		cfg.Node = fmt.Sprintf("saradc@%x", cfg.Base)
	}
	if cfg.ClockRate == 0 {
		cfg.ClockRate = DefaultClockRate
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = prof.DrainTimeout
	}
	d := &Device{
		regs:    regs,
		profile: prof,
		cfg:     cfg,
		log:     zap.NewNop(),
		clock:   clock.New(),
		calib:   Calibration{Max: int(prof.Mask())},
	}
	for _, option := range options {
		option(d)
	}
	d.log = d.log.With(zap.String("node", cfg.Node))
	d.engine = &engine{
		regs: regs,
		lock: &bl30Lock{
			regs:    regs,
			clock:   d.clock,
			poll:    cfg.PollInterval,
			timeout: cfg.BL30Timeout,
		},
		clock:        d.clock,
		poll:         cfg.PollInterval,
		mask:         prof.Mask(),
		stopTimeout:  cfg.StopTimeout,
		drainTimeout: cfg.DrainTimeout,
	}
	if d.clocks, err = newClockTree(clocks, regs, prof, cfg.Node); err != nil {
		return nil, err
	}
	if err = d.init(); err != nil {
		d.clocks.unregister()
		return nil, err
	}
	if err = d.hwEnable(); err != nil {
		return nil, d.abort(err)
	}
	if prof.Policy == LinearCalibration {
		d.calib, err = calibrate(regs, d.engine.getSample, prof.Resolution, d.log)
		if err != nil {
			return nil, d.abort(multierr.Append(err, d.hwDisable()))
		}
	}
	return d, nil
}

// abort undoes init after a bring-up failure.
func (d *Device) abort(err error) error {
	if !d.bl30Initialized {
		err = multierr.Append(err, d.clocks.teardown())
	}
	d.clocks.unregister()
	return err
}

// init prepares the hardware for sampling, unless BL30 has already done so.
func (d *Device) init() error {
	if d.regs.Read(Reg3)&Reg3BL30Initialized != 0 {
		d.bl30Initialized = true
		d.log.Info("already initialized by BL30")
		return nil
	}
	d.log.Info("initializing SAR ADC", zap.String("compatible", d.profile.Compatible))

	// leave the engine stopped, whatever state it was left in
	d.regs.Update(Reg0, Reg0SamplingStop, Reg0SamplingStop)
	d.regs.Update(Reg0, Reg0SampleEnable, 0)

	// update the channel 6 MUX to select the temperature sensor
	d.regs.Update(Reg0, Reg0TempSenSel, Reg0TempSenSel)

	// disable all channels by default
	d.regs.Write(RegChanList, 0)

	d.regs.Update(Reg3, Reg3SamplingPhase, 0)
	d.regs.Update(Reg3, Reg3UseSCDelay, Reg3UseSCDelay)

	// delay between two samples = (10+1) * 1uS
	d.regs.Update(RegDelay, DelaySampleCntMask, FieldPrep(DelaySampleCntMask, 10))
	d.regs.Update(RegDelay, DelaySampleSelMask, FieldPrep(DelaySampleSelMask, 0))

	// delay between two samples = (10+1) * 1uS
	d.regs.Update(RegDelay, DelayInputCountMask, FieldPrep(DelayInputCountMask, 10))
	d.regs.Update(RegDelay, DelayInputSelMask, FieldPrep(DelayInputSelMask, 1))

	if d.profile.HasReg13 {
		d.regs.Update(Reg13, Reg13CalibrationMask, 0)
	}
	return d.clocks.bringUp(d.cfg.ClockRate)
}

func (d *Device) hwEnable() error {
	d.regs.Update(Reg11, Reg11BandgapEn, Reg11BandgapEn)
	d.regs.Update(Reg3, Reg3ADCEn, Reg3ADCEn)
	d.clock.Sleep(5 * time.Microsecond)
	d.regs.Update(Reg3, Reg3ClkEn, Reg3ClkEn)
	if err := d.clocks.powerOn(); err != nil {
		d.powerDown()
		return err
	}
	return nil
}

func (d *Device) hwDisable() error {
	err := d.clocks.powerOff()
	d.powerDown()
	return err
}

func (d *Device) powerDown() {
	d.regs.Update(Reg3, Reg3ClkEn, 0)
	d.regs.Update(Reg3, Reg3ADCEn, 0)
	d.regs.Update(Reg11, Reg11BandgapEn, 0)
}

// Close powers down the ADC and disables its clocks.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	err := d.hwDisable()
	if !d.bl30Initialized {
		err = multierr.Append(err, d.clocks.teardown())
	}
	d.clocks.unregister()
	return err
}

// Read returns a reading from the channel.
//
// For calibrated profiles the reading is corrected by the calibration.
// ErrEmptyResult and ErrTimeout indicate transient failures and the read
// may be retried.
func (d *Device) Read(ch Channel, p Precision) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0, ErrClosed
	}
	if !ch.Valid() {
		return 0, errors.Wrapf(ErrInvalidChannel, "%d", ch)
	}
	mode, n := NoAveraging, OneSample
	if p == Averaged {
		mode, n = MeanAveraging, EightSamples
	}
	v, err := d.engine.getSample(ch, mode, n)
	if err != nil {
		d.log.Error("failed to read sample", zap.Int("channel", int(ch)), zap.Error(err))
		return 0, errors.Wrapf(err, "channel %d", ch)
	}
	if d.profile.Policy == LinearCalibration {
		v = d.calib.Apply(v)
	}
	return v, nil
}

// ReadMillivolts returns a reading from the channel scaled to millivolts.
func (d *Device) ReadMillivolts(ch Channel, p Precision) (float64, error) {
	v, err := d.Read(ch, p)
	if err != nil {
		return 0, err
	}
	return float64(v) * d.Scale(), nil
}

// Resolution returns the width of readings in bits.
func (d *Device) Resolution() uint {
	return d.profile.Resolution
}

// VRef returns the reference voltage in millivolts.
func (d *Device) VRef() int {
	return VRefMillivolts
}

// Scale returns the millivolts represented by one LSB.
func (d *Device) Scale() float64 {
	return float64(VRefMillivolts) / float64(uint64(1)<<d.profile.Resolution)
}

// Profile returns the profile of the device.
func (d *Device) Profile() Profile {
	return d.profile
}

// Calibration returns the calibration measured at bring-up.
//
// The zero Coef indicates readings are not corrected.
func (d *Device) Calibration() Calibration {
	return d.calib
}

// BL30Initialized returns true if BL30 had initialized the ADC before the
// Device was created.
func (d *Device) BL30Initialized() bool {
	return d.bl30Initialized
}

// State returns the state of the sample engine.
//
// It does not wait for an in-flight Read.
func (d *Device) State() State {
	return d.engine.getState()
}

// HandleIRQ records an interrupt from the ADC.
//
// The interrupt is only a wake signal, readings never wait on it.
func (d *Device) HandleIRQ(count uint32) {
	n := d.irqs.Add(1)
	d.log.Debug("irq", zap.Uint32("count", count), zap.Uint64("seen", n))
}

// Interrupts returns the number of interrupts handled.
func (d *Device) Interrupts() uint64 {
	return d.irqs.Load()
}
