// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/saradc"
)

func init() {
	monCmd.Flags().UintVarP(&monOpts.NumEvents, "num-events", "n", 0, "exit after n interrupts")
	monCmd.Flags().BoolVarP(&monOpts.Quiet, "quiet", "q", false, "don't display event details")
	rootCmd.AddCommand(monCmd)
}

var (
	monCmd = &cobra.Command{
		Use:   "mon",
		Short: "Monitor the SAR ADC interrupt",
		Long:  `Wait for SAR ADC interrupts from the UIO device and print them to standard output.`,
		Args:  cobra.NoArgs,
		RunE:  mon,
	}
	monOpts = struct {
		Quiet     bool
		NumEvents uint
	}{}
)

type event struct {
	Time  time.Time
	Count uint32
}

func mon(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if cfg.MustGet("sim").Bool() {
		return errors.New("the simulated ADC has no interrupt")
	}
	d, err := openDevice(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	evtchan := make(chan event)
	done := make(chan struct{})
	eh := func(count uint32) {
		d.HandleIRQ(count)
		select {
		case evtchan <- event{Time: time.Now(), Count: count}:
		case <-done:
		}
	}
	w, err := saradc.NewWatcher(cfg.MustGet("uio").String(), eh)
	if err != nil {
		return err
	}
	defer func() {
		close(done)
		w.Close()
	}()
	monWait(evtchan, w.Done())
	return w.Err()
}

// monWait displays events until the count is reached, the process is
// interrupted, or the watcher stops.
func monWait(evtchan <-chan event, stopped <-chan struct{}) {
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, os.Kill)
	defer signal.Stop(sigdone)
	count := uint(0)
	for {
		select {
		case evt := <-evtchan:
			if !monOpts.Quiet {
				fmt.Printf("irq: %d %s\n", evt.Count, evt.Time.Format(time.RFC3339Nano))
			}
			count++
			if monOpts.NumEvents > 0 && count >= monOpts.NumEvents {
				return
			}
		case <-sigdone:
			return
		case <-stopped:
			return
		}
	}
}
