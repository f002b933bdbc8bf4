// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warthog618/config"
	"github.com/warthog618/saradc"
	"github.com/warthog618/saradc/clk"
	"github.com/warthog618/saradc/sim"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger() (*zap.Logger, error) {
	level := zap.WarnLevel
	if rootOpts.Verbose {
		level = zap.DebugLevel
	}
	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	return cfg.Build()
}

func parseBase(cfg *config.Config) (int64, error) {
	s := cfg.MustGet("base").String()
	base, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, errors.Errorf("can't parse base '%s'", s)
	}
	return base, nil
}

// openRegisters maps the register window, or creates a simulated one.
func openRegisters(cfg *config.Config) (saradc.Registers, func() error, error) {
	if cfg.MustGet("sim").Bool() {
		prof, err := saradc.ProfileFor(cfg.MustGet("compatible").String())
		if err != nil {
			return nil, nil, err
		}
		a := sim.New()
		a.SetSource(sim.Ramp(prof.Resolution))
		return a, func() error { return nil }, nil
	}
	base, err := parseBase(cfg)
	if err != nil {
		return nil, nil, err
	}
	m, err := saradc.Map(cfg.MustGet("mem").String(), base)
	if err != nil {
		if os.IsPermission(err) {
			err = errors.Wrap(err, "mapping registers requires root")
		}
		return nil, nil, err
	}
	return m, m.Close, nil
}

// device is a Device and the resources it was created from.
type device struct {
	*saradc.Device
	log       *zap.Logger
	closeRegs func() error
}

func (d *device) Close() error {
	err := multierr.Combine(d.Device.Close(), d.closeRegs())
	d.log.Sync()
	return err
}

// openDevice creates the Device described by the configuration.
//
// User space has no clock framework, so the input and core clocks are
// modelled as fixed clocks that are already running, and the ADC divider
// and gate are synthesized from the ADC registers.
func openDevice(cmd *cobra.Command) (*device, error) {
	cfg := loadConfig(cmd)
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	regs, closeRegs, err := openRegisters(cfg)
	if err != nil {
		return nil, err
	}
	base, err := parseBase(cfg)
	if err != nil {
		closeRegs()
		return nil, err
	}
	dcfg := saradc.DefaultConfig(cfg.MustGet("compatible").String())
	dcfg.Base = base
	dcfg.Node = cfg.MustGet("node").String()
	dcfg.BL30Timeout = cfg.MustGet("bl30.timeout").Duration()
	rate := uint64(cfg.MustGet("clkin").Uint())
	clocks := clk.NewRegistry(
		clk.NewFixed(saradc.ClkIn, rate),
		clk.NewFixed(saradc.ClkCore, rate))
	d, err := saradc.New(regs, clocks, dcfg, saradc.WithLogger(log))
	if err != nil {
		closeRegs()
		return nil, err
	}
	return &device{Device: d, log: log, closeRegs: closeRegs}, nil
}
