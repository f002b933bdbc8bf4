// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(detectCmd)
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Identify the SAR ADC",
	Args:  cobra.NoArgs,
	RunE:  detect,
}

func detect(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	p := d.Profile()
	fmt.Printf("compatible:       %s\n", p.Compatible)
	fmt.Printf("resolution:       %d bits\n", d.Resolution())
	fmt.Printf("policy:           %s\n", p.Policy)
	fmt.Printf("vref:             %d mV\n", d.VRef())
	fmt.Printf("bl30 initialized: %t\n", d.BL30Initialized())
	fmt.Printf("state:            %s\n", d.State())
	return nil
}
