// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"github.com/warthog618/saradc"
	"github.com/warthog618/saradc/clk"
)

// This example periodically reads all channels of the SAR ADC of an Amlogic
// Meson SoC. The default register window and SoC variant are defined in
// loadConfig, but can be altered via configuration (env, flag or config file).
// It must be run as root to map the registers.
func main() {
	cfg := loadConfig()
	base, err := strconv.ParseInt(cfg.MustGet("base").String(), 0, 64)
	if err != nil {
		panic(err)
	}
	regs, err := saradc.Map(saradc.DevMem, base)
	if err != nil {
		panic(err)
	}
	defer regs.Close()
	clocks := clk.NewRegistry(
		clk.NewFixed(saradc.ClkIn, 24000000),
		clk.NewFixed(saradc.ClkCore, 24000000))
	dcfg := saradc.DefaultConfig(cfg.MustGet("compatible").String())
	dcfg.Base = base
	adc, err := saradc.New(regs, clocks, dcfg)
	if err != nil {
		panic(err)
	}
	defer adc.Close()
	period := cfg.MustGet("period").Duration()
	for i := 0; i < 10; i++ {
		for ch := saradc.Channel(0); ch < saradc.NumChannels; ch++ {
			d, err := adc.Read(ch, saradc.Averaged)
			if err != nil {
				fmt.Printf("error reading ch%d: %s\n", ch, err)
				continue
			}
			fmt.Printf("ch%d=0x%04x ", ch, d)
		}
		fmt.Println()
		time.Sleep(period)
	}
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"base":       "0xc1108680",
		"compatible": "amlogic,meson8b-saradc",
		"period":     "1s",
	}
	def := dict.New(dict.WithMap(defaultConfig))
	flags := []pflag.Flag{
		{Short: 'c', Name: "config-file"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags)),
		env.New(env.WithEnvPrefix("POLLER_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "poller.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
