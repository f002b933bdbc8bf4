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
	rootCmd.AddCommand(calibrateCmd)
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Calibrate the SAR ADC and display the calibration",
	Long: `Measure the channel 7 reference voltages and display the linear
correction derived from them.

Only variants with the linear-calibration policy are calibrated.`,
	Args: cobra.NoArgs,
	RunE: calibrate,
}

func calibrate(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	if d.Profile().Policy != saradc.LinearCalibration {
		fmt.Printf("%s is not calibrated, scale is %.4f mV/LSB\n",
			d.Profile().Compatible, d.Scale())
		return nil
	}
	c := d.Calibration()
	fmt.Printf("ref value:   %d\n", c.RefVal)
	fmt.Printf("ref nominal: %d\n", c.RefNominal)
	fmt.Printf("coef:        %d (%.4f)\n", c.Coef, float64(c.Coef)/(1<<saradc.NominalShift))
	if c.Coef == 0 {
		fmt.Println("readings are not corrected")
	}
	return nil
}
