// SPDX-License-Identifier: MIT
//
// Copyright © 2017 Kent Gibson <warthog618@gmail.com>.

//go:build linux

// Interrupt capabilities for the SAR ADC, via a UIO device.

package saradc

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Watcher calls a handler for each interrupt reported by a UIO device.
//
// The handler is called from the Watcher goroutine, so it should not block.
type Watcher struct {
	fd      int
	epfd    int
	wake    [2]int
	rearm   func(fd int) error
	handler func(count uint32)
	done    chan struct{}
	once    sync.Once
	// the error that stopped the watch, valid once done is closed
	err error
}

// NewWatcher opens the UIO device at path, such as /dev/uio0, and calls the
// handler with the interrupt count each time the interrupt fires.
//
// The interrupt is re-enabled after each event, as required by the generic
// UIO platform driver.
func NewWatcher(path string, handler func(count uint32)) (*Watcher, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err = enableIRQ(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}
	w, err := newWatcher(fd, enableIRQ, handler)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return w, nil
}

// newWatcher takes ownership of fd and watches it for interrupt events,
// calling rearm, if not nil, after each event.
func newWatcher(fd int, rearm func(fd int) error, handler func(uint32)) (*Watcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll create")
	}
	w := &Watcher{
		fd:      fd,
		epfd:    epfd,
		rearm:   rearm,
		handler: handler,
		done:    make(chan struct{}),
	}
	// The pipe wakes EpollWait on Close, as closing epfd does not.
	if err = unix.Pipe2(w.wake[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(epfd)
		return nil, errors.Wrap(err, "pipe")
	}
	for _, f := range []int{fd, w.wake[0]} {
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(f)}
		if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, f, &event); err != nil {
			w.closeFds(false)
			return nil, errors.Wrap(err, "epoll add")
		}
	}
	go w.watch()
	return w, nil
}

// enableIRQ unmasks the interrupt of the UIO device.
func enableIRQ(fd int) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], 1)
	_, err := unix.Write(fd, buf[:])
	return errors.Wrap(err, "enable irq")
}

func (w *Watcher) watch() {
	defer close(w.done)
	var events [2]unix.EpollEvent
	var buf [4]byte
	for {
		n, err := unix.EpollWait(w.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			w.err = errors.Wrap(err, "epoll wait")
			return
		}
		for _, event := range events[:n] {
			if int(event.Fd) == w.wake[0] {
				return
			}
			if _, err := unix.Read(w.fd, buf[:]); err != nil {
				w.err = errors.Wrap(err, "read irq")
				return
			}
			count := binary.NativeEndian.Uint32(buf[:])
			if w.rearm != nil {
				if err := w.rearm(w.fd); err != nil {
					// no further events can arrive
					w.err = err
					w.handler(count)
					return
				}
			}
			w.handler(count)
		}
	}
}

// Done returns a channel that is closed when the watcher stops, either
// from Close or from a failure watching the device.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that stopped the watcher.
//
// It returns nil while the watcher is running, and after a Close.
func (w *Watcher) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

func (w *Watcher) closeFds(owned bool) {
	unix.Close(w.wake[0])
	unix.Close(w.wake[1])
	unix.Close(w.epfd)
	if owned {
		unix.Close(w.fd)
	}
}

// Close stops the watcher and closes the UIO device.
// His watch has ended.
func (w *Watcher) Close() {
	w.once.Do(func() {
		unix.Write(w.wake[1], []byte{0})
		<-w.done
		w.closeFds(true)
	})
}
