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
	rootCmd.AddCommand(regsCmd)
}

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Display the SAR ADC registers",
	Long: `Display the SAR ADC register window without initializing the ADC.

The FIFO read port is not read, as reading it pops the FIFO.`,
	Args: cobra.NoArgs,
	RunE: regs,
}

var regNames = map[uint32]string{
	saradc.Reg0:            "reg0",
	saradc.RegChanList:     "chan_list",
	saradc.RegAvgCntl:      "avg_cntl",
	saradc.Reg3:            "reg3",
	saradc.RegDelay:        "delay",
	saradc.RegLastRead:     "last_rd",
	saradc.RegFIFORead:     "fifo_rd",
	saradc.RegAuxSW:        "aux_sw",
	saradc.RegChan10SW:     "chan_10_sw",
	saradc.RegDetectIdleSW: "detect_idle_sw",
	saradc.RegDelta10:      "delta_10",
	saradc.Reg11:           "reg11",
	saradc.Reg13:           "reg13",
}

func regs(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	r, closeRegs, err := openRegisters(cfg)
	if err != nil {
		return err
	}
	defer closeRegs()
	for off := uint32(0); off < saradc.WindowSize; off += 4 {
		name, ok := regNames[off]
		if !ok {
			continue
		}
		if off == saradc.RegFIFORead {
			fmt.Printf("0x%02x %-15s --------\n", off, name)
			continue
		}
		fmt.Printf("0x%02x %-15s %08x\n", off, name, r.Read(off))
	}
	v := r.Read(saradc.Reg0)
	fmt.Printf("fifo count: %d, busy: %t\n",
		saradc.FieldGet(saradc.Reg0FIFOCountMask, v), v&saradc.Reg0BusyMask != 0)
	v = r.Read(saradc.RegDelay)
	fmt.Printf("bl30 busy: %t, kernel busy: %t, bl30 initialized: %t\n",
		v&saradc.DelayBL30Busy != 0, v&saradc.DelayKernelBusy != 0,
		r.Read(saradc.Reg3)&saradc.Reg3BL30Initialized != 0)
	return nil
}
