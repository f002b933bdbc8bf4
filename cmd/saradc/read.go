// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warthog618/saradc"
)

func init() {
	readCmd.Flags().BoolVarP(&readOpts.All, "all", "a", false, "read all channels")
	readCmd.Flags().BoolVarP(&readOpts.Short, "short", "s", false, "single line output format")
	readCmd.Flags().BoolVarP(&readOpts.Averaged, "averaged", "A", false, "read the mean of eight samples")
	readCmd.Flags().BoolVarP(&readOpts.Millivolts, "millivolts", "m", false, "report readings in millivolts")
	readCmd.SetHelpTemplate(readCmd.HelpTemplate() + extendedReadHelp)
	rootCmd.AddCommand(readCmd)
}

var (
	readCmd = &cobra.Command{
		Use:     "read <channel1>...",
		Short:   "Read a channel or channels",
		Example: "  saradc read 0 2\n  saradc read -a -m",
		PreRunE: preread,
		RunE:    read,
	}
	readOpts = struct {
		All        bool
		Short      bool
		Averaged   bool
		Millivolts bool
	}{}
)

var extendedReadHelp = `
Channels:
  Channels are numbered 0-7. Channel 6 is the temperature sensor, and
  channel 7 the calibration channel.

A failed read of a channel is reported and the remaining channels are still
read.
`

func preread(cmd *cobra.Command, args []string) error {
	if !readOpts.All {
		return cobra.MinimumNArgs(1)(cmd, args)
	}
	return nil
}

func read(cmd *cobra.Command, args []string) (err error) {
	var cc []saradc.Channel
	if readOpts.All {
		cc = make([]saradc.Channel, saradc.NumChannels)
		for i := range cc {
			cc[i] = saradc.Channel(i)
		}
	} else {
		cc, err = parseChannels(args)
		if err != nil {
			return err
		}
	}
	d, err := openDevice(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	p := saradc.Raw
	if readOpts.Averaged {
		p = saradc.Averaged
	}
	vv := make([]string, len(cc))
	for i, ch := range cc {
		if readOpts.Millivolts {
			mv, err := d.ReadMillivolts(ch, p)
			if err != nil {
				logErr(cmd, err)
				vv[i] = "-"
				continue
			}
			vv[i] = fmt.Sprintf("%.1f", mv)
			continue
		}
		v, err := d.Read(ch, p)
		if err != nil {
			logErr(cmd, err)
			vv[i] = "-"
			continue
		}
		vv[i] = fmt.Sprintf("%d", v)
	}
	if readOpts.Short {
		printValuesShort(vv)
	} else {
		printValues(cc, vv)
	}
	return nil
}

func printValues(cc []saradc.Channel, vv []string) {
	for i, ch := range cc {
		fmt.Printf("ch%d: %s\n", ch, vv[i])
	}
}

func printValuesShort(vv []string) {
	fmt.Printf("%s", vv[0])
	for _, v := range vv[1:] {
		fmt.Printf(" %s", v)
	}
	fmt.Println()
}
