// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

// Test suite for the Device, run against the simulator.
package saradc_test

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/saradc"
	"github.com/warthog618/saradc/clk"
	"github.com/warthog618/saradc/sim"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	meson8b = "amlogic,meson8b-saradc"
	meson8  = "amlogic,meson8-saradc"
	gxl     = "amlogic,meson-gxl-saradc"
	gxm     = "amlogic,meson-gxm-saradc"
	base    = 0xc1108680
	node    = "saradc@c1108680"
)

func rampADC(bits uint) *sim.ADC {
	a := sim.New()
	a.SetSource(sim.Ramp(bits))
	return a
}

func rootClocks() (*clk.Registry, *clk.Fixed, *clk.Fixed) {
	clkin := clk.NewFixed(saradc.ClkIn, 24000000)
	core := clk.NewFixed(saradc.ClkCore, 24000000)
	return clk.NewRegistry(clkin, core), clkin, core
}

func testConfig(compatible string) saradc.Config {
	cfg := saradc.DefaultConfig(compatible)
	cfg.Base = base
	return cfg
}

func TestNew(t *testing.T) {
	a := rampADC(10)
	reg, clkin, core := rootClocks()
	d, err := saradc.New(a, reg, testConfig(meson8b))
	require.Nil(t, err)
	require.NotNil(t, d)

	div, err := reg.Clock(node + "#adc_div")
	require.Nil(t, err)
	assert.Equal(t, uint64(1200000), div.Rate())
	assert.True(t, div.Enabled())
	gate, err := reg.Clock(node + "#adc_en")
	require.Nil(t, err)
	assert.True(t, gate.Enabled())
	assert.True(t, clkin.Enabled())
	assert.True(t, core.Enabled())

	r3 := a.Peek(saradc.Reg3)
	assert.Equal(t, uint32(19), saradc.FieldGet(0x1f<<saradc.Reg3ClkDivShift, r3))
	assert.NotZero(t, r3&saradc.Reg3ADCEn)
	assert.NotZero(t, r3&saradc.Reg3ClkEn)
	assert.NotZero(t, r3&saradc.Reg3UseSCDelay)
	assert.Zero(t, r3&saradc.Reg3SamplingPhase)
	assert.Equal(t, saradc.MuxChannel7, chan7Mux(a))
	assert.NotZero(t, a.Peek(saradc.Reg11)&saradc.Reg11BandgapEn)
	assert.NotZero(t, a.Peek(saradc.Reg0)&saradc.Reg0TempSenSel)
	dly := a.Peek(saradc.RegDelay)
	assert.Equal(t, uint32(10), saradc.FieldGet(saradc.DelaySampleCntMask, dly))
	assert.Equal(t, uint32(0), saradc.FieldGet(saradc.DelaySampleSelMask, dly))
	assert.Equal(t, uint32(10), saradc.FieldGet(saradc.DelayInputCountMask, dly))
	assert.Equal(t, uint32(1), saradc.FieldGet(saradc.DelayInputSelMask, dly))
	assert.Zero(t, dly&saradc.DelayKernelBusy)

	assert.False(t, d.BL30Initialized())
	assert.Equal(t, uint(10), d.Resolution())
	assert.Equal(t, 1800, d.VRef())
	assert.Equal(t, saradc.LinearCalibration, d.Profile().Policy)
	c := d.Calibration()
	assert.Equal(t, 4096, c.Coef)
	assert.Equal(t, 511, c.RefVal)
	assert.Equal(t, 512, c.RefNominal)
	assert.Equal(t, 1023, c.Max)
	assert.Equal(t, saradc.Idle, d.State())

	err = d.Close()
	assert.Nil(t, err)
}

func TestRead(t *testing.T) {
	a := rampADC(10)
	reg, _, _ := rootClocks()
	d, err := saradc.New(a, reg, testConfig(meson8b))
	require.Nil(t, err)
	defer d.Close()

	// ramp reads 341 on channel 2, corrected by the calibration
	for _, p := range []saradc.Precision{saradc.Raw, saradc.Averaged} {
		v, err := d.Read(2, p)
		assert.Nil(t, err)
		assert.Equal(t, 342, v)
	}
	avg := a.Peek(saradc.RegAvgCntl)
	assert.Equal(t, uint32(saradc.EightSamples), saradc.FieldGet(saradc.AvgCntlSamplesMask(2), avg))
	assert.Equal(t, uint32(saradc.MeanAveraging), saradc.FieldGet(saradc.AvgCntlModeMask(2), avg))

	mv, err := d.ReadMillivolts(2, saradc.Raw)
	assert.Nil(t, err)
	assert.InDelta(t, 342*1800.0/1024, mv, 0.001)

	for _, ch := range []saradc.Channel{-1, saradc.NumChannels, 12} {
		_, err = d.Read(ch, saradc.Raw)
		assert.True(t, errors.Is(err, saradc.ErrInvalidChannel), ch)
	}

	// no samples
	a.SetSource(nil)
	_, err = d.Read(4, saradc.Raw)
	assert.Equal(t, "channel 4: no samples for channel", err.Error())
	assert.True(t, errors.Is(err, saradc.ErrEmptyResult))
	assert.Zero(t, a.Peek(saradc.RegDelay)&saradc.DelayKernelBusy)
	assert.Equal(t, saradc.Idle, d.State())
}

func TestReadCalibrated12Bit(t *testing.T) {
	a := rampADC(12)
	reg, _, _ := rootClocks()
	d, err := saradc.New(a, reg, testConfig(gxl))
	require.Nil(t, err)
	defer d.Close()

	c := d.Calibration()
	assert.Equal(t, 4096, c.Coef)
	assert.Equal(t, 2047, c.RefVal)
	assert.Equal(t, 2048, c.RefNominal)
	assert.Equal(t, 4095, c.Max)

	// ramp reads 1365 on channel 2, corrected in 12-bit codes
	v, err := d.Read(2, saradc.Raw)
	assert.Nil(t, err)
	assert.Equal(t, 1366, v)
	mv, err := d.ReadMillivolts(2, saradc.Raw)
	assert.Nil(t, err)
	assert.InDelta(t, 1366*1800.0/4096, mv, 0.001)
	assert.InDelta(t, 600, mv, 1)

	// full scale maps to full scale
	assert.Equal(t, 4095, c.Apply(4095))
	assert.Equal(t, 1024, c.Apply(1023))
}

func TestZeroConfig(t *testing.T) {
	a := rampADC(10)
	a.SetBusyPolls(2)
	reg, _, _ := rootClocks()
	c := saradc.NewStepClock()
	d, err := saradc.New(a, reg, saradc.Config{Compatible: meson8b}, saradc.WithClock(c))
	require.Nil(t, err)
	defer d.Close()

	_, err = reg.Clock("saradc@0#adc_div")
	assert.Nil(t, err)
	start := c.Now()
	v, err := d.Read(2, saradc.Raw)
	assert.Nil(t, err)
	assert.Equal(t, 342, v)
	assert.Equal(t, saradc.Idle, d.State())
	assert.Zero(t, a.Peek(saradc.Reg0)&saradc.Reg0SampleEnable)
	// busy after start and after stop, each polled out
	assert.Equal(t, 4*saradc.DefaultPollInterval, c.Since(start))
}

func TestStateDuringRead(t *testing.T) {
	a := rampADC(10)
	reg, _, _ := rootClocks()
	d, err := saradc.New(a, reg, testConfig(meson8b))
	require.Nil(t, err)
	defer d.Close()

	a.SetBL30Busy(-1)
	done := make(chan error)
	go func() {
		_, err := d.Read(2, saradc.Raw)
		done <- err
	}()
	require.Eventually(t, func() bool { return kernelBusy(a) }, time.Second, time.Millisecond)

	state := make(chan saradc.State)
	go func() {
		state <- d.State()
	}()
	select {
	case s := <-state:
		assert.Equal(t, saradc.Idle, s)
	case <-time.After(time.Second):
		t.Error("State blocked by Read")
	}

	a.SetBL30Busy(0)
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(time.Second):
		t.Fatal("Read did not complete")
	}
}

func TestReadConcurrent(t *testing.T) {
	a := rampADC(12)
	reg, _, _ := rootClocks()
	d, err := saradc.New(a, reg, testConfig(gxm))
	require.Nil(t, err)
	defer d.Close()

	var wg sync.WaitGroup
	for ch := saradc.Channel(0); ch < saradc.ChanCalibration; ch++ {
		wg.Add(1)
		go func(ch saradc.Channel) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				v, err := d.Read(ch, saradc.Raw)
				assert.Nil(t, err)
				assert.Equal(t, (int(ch)+1)*4095/9, v)
			}
		}(ch)
	}
	wg.Wait()
	assert.Zero(t, a.Peek(saradc.RegDelay)&saradc.DelayKernelBusy)
}

func TestVRefScale(t *testing.T) {
	a := rampADC(12)
	a.Write(saradc.Reg13, 0xffffffff)
	reg, _, _ := rootClocks()
	d, err := saradc.New(a, reg, testConfig(gxm))
	require.Nil(t, err)
	defer d.Close()

	// not calibrated
	assert.Zero(t, a.Starts())
	assert.Zero(t, d.Calibration().Coef)
	assert.Equal(t, uint32(0xffffffff)&^saradc.Reg13CalibrationMask, a.Peek(saradc.Reg13))

	v, err := d.Read(2, saradc.Raw)
	assert.Nil(t, err)
	assert.Equal(t, 1365, v)
	assert.Equal(t, uint(12), d.Resolution())
	assert.InDelta(t, 1800.0/4096, d.Scale(), 1e-9)
}

func TestBL30Initialized(t *testing.T) {
	a := rampADC(10)
	a.SetBL30Initialized()
	reg, clkin, core := rootClocks()
	lc, logs := observer.New(zap.InfoLevel)
	d, err := saradc.New(a, reg, testConfig(meson8b), saradc.WithLogger(zap.New(lc)))
	require.Nil(t, err)
	assert.True(t, d.BL30Initialized())
	assert.Equal(t, 1, logs.FilterMessage("already initialized by BL30").Len())
	assert.Zero(t, logs.FilterMessage("initializing SAR ADC").Len())

	// hardware init and clock bring-up skipped
	assert.Zero(t, a.Peek(saradc.Reg0)&saradc.Reg0TempSenSel)
	assert.Zero(t, saradc.FieldGet(saradc.DelaySampleCntMask, a.Peek(saradc.RegDelay)))
	assert.Zero(t, saradc.FieldGet(0x1f<<saradc.Reg3ClkDivShift, a.Peek(saradc.Reg3)))
	assert.False(t, clkin.Enabled())
	assert.True(t, core.Enabled())

	v, err := d.Read(2, saradc.Raw)
	assert.Nil(t, err)
	assert.Equal(t, 342, v)

	assert.Nil(t, d.Close())
	assert.False(t, core.Enabled())
	_, err = reg.Clock(node + "#adc_div")
	assert.True(t, errors.Is(err, clk.ErrNotFound))
}

func TestBL30Timeout(t *testing.T) {
	a := rampADC(12)
	reg, _, _ := rootClocks()
	cfg := testConfig(gxm)
	cfg.BL30Timeout = time.Millisecond
	c := saradc.NewStepClock()
	d, err := saradc.New(a, reg, cfg, saradc.WithClock(c))
	require.Nil(t, err)
	defer d.Close()

	a.SetBL30Busy(-1)
	start := c.Now()
	_, err = d.Read(1, saradc.Raw)
	assert.True(t, errors.Is(err, saradc.ErrTimeout))
	assert.Equal(t, time.Millisecond, c.Since(start))
	assert.Zero(t, a.Peek(saradc.RegDelay)&saradc.DelayKernelBusy)

	a.SetBL30Busy(3)
	v, err := d.Read(1, saradc.Raw)
	assert.Nil(t, err)
	assert.Equal(t, 910, v)
}

func TestClose(t *testing.T) {
	a := rampADC(10)
	reg, clkin, core := rootClocks()
	d, err := saradc.New(a, reg, testConfig(meson8b))
	require.Nil(t, err)

	err = d.Close()
	assert.Nil(t, err)
	assert.False(t, clkin.Enabled())
	assert.False(t, core.Enabled())
	r3 := a.Peek(saradc.Reg3)
	assert.Zero(t, r3&saradc.Reg3ADCEn)
	assert.Zero(t, r3&saradc.Reg3ClkEn)
	assert.Zero(t, a.Peek(saradc.Reg11)&saradc.Reg11BandgapEn)
	for _, name := range []string{node + "#adc_div", node + "#adc_en"} {
		_, err = reg.Clock(name)
		assert.True(t, errors.Is(err, clk.ErrNotFound), name)
	}

	err = d.Close()
	assert.Equal(t, saradc.ErrClosed, err)
	_, err = d.Read(1, saradc.Raw)
	assert.Equal(t, saradc.ErrClosed, err)

	// node can be reused once closed
	d, err = saradc.New(a, reg, testConfig(meson8b))
	require.Nil(t, err)
	assert.Nil(t, d.Close())
}

func TestDuplicateNode(t *testing.T) {
	reg, _, _ := rootClocks()
	d, err := saradc.New(rampADC(10), reg, testConfig(meson8b))
	require.Nil(t, err)
	defer d.Close()

	a := rampADC(10)
	_, err = saradc.New(a, reg, testConfig(meson8b))
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, saradc.ErrClockFailure))
	assert.True(t, errors.Is(err, clk.ErrExists))
	var ce *saradc.ClockError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, node+"#adc_div", ce.Clock)
	assert.Equal(t, "register", ce.Op)
	assert.Empty(t, a.Writes())

	// the first device is unaffected
	_, err = reg.Clock(node + "#adc_div")
	assert.Nil(t, err)
	v, err := d.Read(2, saradc.Raw)
	assert.Nil(t, err)
	assert.Equal(t, 342, v)

	// a distinct node may share the registry
	cfg := testConfig(meson8b)
	cfg.Node = "saradc@c8100600"
	d2, err := saradc.New(a, reg, cfg)
	require.Nil(t, err)
	assert.Nil(t, d2.Close())
}

func TestNewFailure(t *testing.T) {
	_, err := saradc.New(sim.New(), clk.NewRegistry(), testConfig("amlogic,meson-axg-saradc"))
	assert.True(t, errors.Is(err, saradc.ErrUnknownProfile))

	_, err = saradc.New(sim.New(), clk.NewRegistry(), testConfig(meson8b))
	assert.True(t, errors.Is(err, saradc.ErrClockFailure))
	assert.True(t, errors.Is(err, clk.ErrNotFound))
	var ce *saradc.ClockError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, saradc.ClkIn, ce.Clock)
	assert.Equal(t, "get", ce.Op)

	clkin := clk.NewFixed(saradc.ClkIn, 24000000)
	_, err = saradc.New(sim.New(), clk.NewRegistry(clkin), testConfig(meson8b))
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, saradc.ClkCore, ce.Clock)
}

func TestCalibrationFailure(t *testing.T) {
	// no samples for calibration
	a := sim.New()
	reg, clkin, core := rootClocks()
	_, err := saradc.New(a, reg, testConfig(meson8b))
	assert.True(t, errors.Is(err, saradc.ErrEmptyResult))
	assert.False(t, clkin.Enabled())
	assert.False(t, core.Enabled())
	assert.Zero(t, a.Peek(saradc.Reg3)&saradc.Reg3ADCEn)
	assert.Zero(t, a.Peek(saradc.Reg3)&saradc.Reg3ClkEn)
	assert.Zero(t, a.Peek(saradc.Reg11)&saradc.Reg11BandgapEn)
	assert.Equal(t, saradc.MuxChannel7, chan7Mux(a))
	_, err = reg.Clock(node + "#adc_div")
	assert.True(t, errors.Is(err, clk.ErrNotFound))
}

func TestInterrupts(t *testing.T) {
	reg, _, _ := rootClocks()
	d, err := saradc.New(rampADC(12), reg, testConfig(gxm))
	require.Nil(t, err)
	defer d.Close()
	assert.Zero(t, d.Interrupts())
	d.HandleIRQ(4)
	d.HandleIRQ(5)
	assert.Equal(t, uint64(2), d.Interrupts())
}

func TestProfiles(t *testing.T) {
	patterns := []struct {
		compatible string
		bits       uint
		policy     saradc.Policy
		sana       bool
		mask       uint32
	}{
		{meson8b, 10, saradc.LinearCalibration, false, 0x3ff},
		{"amlogic,meson-gxbb-saradc", 10, saradc.LinearCalibration, false, 0x3ff},
		{"amlogic,meson-gxl-saradc", 12, saradc.LinearCalibration, false, 0xfff},
		{meson8, 10, saradc.VRefScale, true, 0x3ff},
		{gxm, 12, saradc.VRefScale, false, 0xfff},
	}
	assert.Len(t, saradc.Profiles(), len(patterns))
	for _, p := range patterns {
		tf := func(t *testing.T) {
			prof, err := saradc.ProfileFor(p.compatible)
			require.Nil(t, err)
			assert.Equal(t, p.bits, prof.Resolution)
			assert.Equal(t, p.policy, prof.Policy)
			assert.Equal(t, p.sana, prof.HasSana)
			assert.Equal(t, p.mask, prof.Mask())
			assert.NotZero(t, prof.DrainTimeout)
		}
		t.Run(p.compatible, tf)
	}
}
