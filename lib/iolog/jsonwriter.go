// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package iolog

import (
	"bufio"
	"io"

	"git.lukeshu.com/go/lowmemjson"
)

// Event is one record of a JSONWriter's structured I/O log, mirroring
// the lines Writer emits in fio-iolog text form.
type Event struct {
	Kind       string `json:"kind"` // "read" or "write"
	ByteOffset uint64 `json:"byte_offset"`
	ByteLength uint64 `json:"byte_length"`
}

var _ Sink = (*JSONWriter)(nil)

// JSONWriter accumulates the same sequence of events as Writer, but
// as structured records, for tests that want to assert on the
// emitted sequence without parsing the textual trace format.
type JSONWriter struct {
	Device string  `json:"device"`
	Events []Event `json:"events"`
}

// NewJSONWriter constructs an empty JSONWriter for the named device.
func NewJSONWriter(device string) *JSONWriter {
	return &JSONWriter{Device: device}
}

// Read implements Sink.
func (jw *JSONWriter) Read(byteOffset, byteLength uint64) error {
	jw.Events = append(jw.Events, Event{Kind: "read", ByteOffset: byteOffset, ByteLength: byteLength})
	return nil
}

// Write implements Sink.
func (jw *JSONWriter) Write(byteOffset, byteLength uint64) error {
	jw.Events = append(jw.Events, Event{Kind: "write", ByteOffset: byteOffset, ByteLength: byteLength})
	return nil
}

// Close implements Sink; JSONWriter has no underlying handle to close.
func (jw *JSONWriter) Close() error { return nil }

// Dump encodes the accumulated events as indented JSON, in the same
// lowmemjson.ReEncoder configuration the teacher uses for its golden
// JSON dumps.
func (jw *JSONWriter) Dump(w io.Writer) (err error) {
	buffer := bufio.NewWriter(w)
	defer func() {
		if ferr := buffer.Flush(); err == nil && ferr != nil {
			err = ferr
		}
	}()
	return lowmemjson.Encode(&lowmemjson.ReEncoder{
		Out:                   buffer,
		Indent:                "\t",
		ForceTrailingNewlines: true,
		CompactIfUnder:        120,
	}, jw)
}

// LoadJSONWriter decodes a JSONWriter previously produced by Dump, for
// round-trip verification against a live event sequence.
func LoadJSONWriter(r io.Reader) (*JSONWriter, error) {
	var jw JSONWriter
	if err := lowmemjson.DecodeThenEOF(bufio.NewReader(r), &jw); err != nil {
		return nil, err
	}
	return &jw, nil
}
