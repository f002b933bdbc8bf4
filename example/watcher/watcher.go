// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warthog618/saradc"
)

// Watches the SAR ADC interrupt, exported to user space by the generic UIO
// platform driver as /dev/uio0, and reports each interrupt.
func main() {
	// capture exit signals to ensure resources are released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	w, err := saradc.NewWatcher("/dev/uio0", func(count uint32) {
		fmt.Printf("SAR ADC interrupt %d\n", count)
	})
	if err != nil {
		panic(err)
	}
	defer w.Close()

	// In a real application the main thread would do something useful here.
	// But we'll just run for a minute then exit.
	fmt.Println("Watching SAR ADC...")
	select {
	case <-time.After(time.Minute):
	case <-quit:
	}
}
