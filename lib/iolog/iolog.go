// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package iolog emits the device I/O trace produced by the buffer
// cache's miss and writeback paths, in the fio-iolog text format.
package iolog

import (
	"fmt"
	"io"
)

// Sink is the interface the replacement-policy engine writes device
// I/O events to. Both Writer and JSONWriter implement it.
type Sink interface {
	Read(byteOffset, byteLength uint64) error
	Write(byteOffset, byteLength uint64) error
	Close() error
}

var _ Sink = (*Writer)(nil)

// Writer emits a device I/O trace in the fio-iolog text format: a
// header naming the device, one line per I/O, and a closing footer.
type Writer struct {
	w      io.Writer
	device string
	opened bool
}

// NewWriter creates a Writer and immediately emits the header
// ("fio version 2 iolog", "<device> add", "<device> open").
func NewWriter(w io.Writer, device string) (*Writer, error) {
	lw := &Writer{w: w, device: device}
	if _, err := fmt.Fprintln(lw.w, "fio version 2 iolog"); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(lw.w, "%s add\n", device); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(lw.w, "%s open\n", device); err != nil {
		return nil, err
	}
	lw.opened = true
	return lw, nil
}

func (lw *Writer) emit(kind string, byteOffset, byteLength uint64) error {
	_, err := fmt.Fprintf(lw.w, "%s %s %d %d\n", lw.device, kind, byteOffset, byteLength)
	return err
}

// Read emits a read I/O record.
func (lw *Writer) Read(byteOffset, byteLength uint64) error {
	return lw.emit("read", byteOffset, byteLength)
}

// Write emits a write I/O record.
func (lw *Writer) Write(byteOffset, byteLength uint64) error {
	return lw.emit("write", byteOffset, byteLength)
}

// Close emits the closing footer ("<device> close"). The underlying
// io.Writer is not closed; a caller that opened a file is responsible
// for closing it.
func (lw *Writer) Close() error {
	if !lw.opened {
		return nil
	}
	lw.opened = false
	_, err := fmt.Fprintf(lw.w, "%s close\n", lw.device)
	return err
}
