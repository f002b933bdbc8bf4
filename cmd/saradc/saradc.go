// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/warthog618/saradc"
)

var version = "v0.1.0"

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config-file", "c", "", "JSON config file (default saradc.json)")
	pf.String("mem", saradc.DevMem, "physical memory device")
	pf.String("base", defaultBase, "physical address of the SAR ADC register window")
	pf.String("compatible", defaultCompatible, "device tree compatible of the SoC variant")
	pf.String("node", "", "device node name, used to name synthesized clocks")
	pf.String("uio", defaultUIO, "UIO device for the SAR ADC interrupt")
	pf.Uint64("clkin", defaultClkIn, "rate of the input clock in Hz")
	pf.Duration("bl30-timeout", 0, "time to wait for BL30 to release the ADC (0 waits forever)")
	pf.Bool("sim", false, "use a simulated ADC rather than the hardware")
	pf.BoolVar(&rootOpts.Verbose, "verbose", false, "log driver activity to stderr")
	rootCmd.SetHelpTemplate(rootCmd.HelpTemplate() + extendedRootHelp)
}

var extendedRootHelp = `
Configuration:
  Global flags may also be set in the environment, prefixed with SARADC_,
  such as SARADC_BASE=0xc1108680, or in the JSON config file.
`

var (
	rootCmd = &cobra.Command{
		Use:   "saradc",
		Short: "saradc is a utility to read the Amlogic Meson SAR ADC",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		Version: version,
	}
	rootOpts = struct {
		Verbose bool
	}{}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "saradc %s: %s\n", cmd.Name(), err)
}

func parseChannel(arg string) (saradc.Channel, error) {
	c, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("can't parse channel '%s'", arg)
	}
	ch := saradc.Channel(c)
	if c >= saradc.NumChannels {
		return 0, fmt.Errorf("unknown channel '%d'", c)
	}
	return ch, nil
}

func parseChannels(args []string) ([]saradc.Channel, error) {
	cc := []saradc.Channel(nil)
	for _, arg := range args {
		ch, err := parseChannel(arg)
		if err != nil {
			return nil, err
		}
		cc = append(cc, ch)
	}
	return cc, nil
}
