// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/saradc"
)

const (
	// meson8b
	defaultBase       = "0xc1108680"
	defaultCompatible = "amlogic,meson8b-saradc"
	defaultUIO        = "/dev/uio0"
	defaultClkIn      = 24000000
)

// loadConfig builds the configuration from, in order of priority, the
// command line, the environment, the config file and the defaults.
func loadConfig(cmd *cobra.Command) *config.Config {
	defaultConfig := map[string]interface{}{
		"mem":        saradc.DevMem,
		"base":       defaultBase,
		"compatible": defaultCompatible,
		"node":       "",
		"uio":        defaultUIO,
		"clkin":      defaultClkIn,
		"bl30": map[string]interface{}{
			"timeout": "0s",
		},
		"sim": false,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		dict.New(dict.WithMap(flagConfig(cmd))),
		env.New(env.WithEnvPrefix("SARADC_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "saradc.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}

// flagConfig returns the flags explicitly set on the command line as a
// config tree, with hyphenated names split into nested keys.
func flagConfig(cmd *cobra.Command) map[string]interface{} {
	m := map[string]interface{}{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == "verbose" {
			return
		}
		path := strings.Split(f.Name, "-")
		node := m
		for _, k := range path[:len(path)-1] {
			n, ok := node[k].(map[string]interface{})
			if !ok {
				n = map[string]interface{}{}
				node[k] = n
			}
			node = n
		}
		node[path[len(path)-1]] = f.Value.String()
	})
	return m
}
