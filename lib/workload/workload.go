// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package workload parses the trace input that drives the buffer
// cache simulator: one access or policy-switch record per line.
package workload

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/datawire/dlib/dlog"

	"zncachesim/lib/cachesim"
	"zncachesim/lib/textui"
)

// RecordKind distinguishes the two record shapes a trace line may parse to.
type RecordKind uint8

const (
	// RecordAccess is an `<lba> <op>` line.
	RecordAccess RecordKind = iota
	// RecordPolicySwitch is a `P <code>` line.
	RecordPolicySwitch
)

// Record is one parsed trace line.
type Record struct {
	Kind RecordKind

	// Set when Kind == RecordAccess.
	LBA cachesim.LBA
	Op  cachesim.Op

	// Set when Kind == RecordPolicySwitch.
	PolicyCode int

	// RawToken preserves the original policy-code text for
	// diagnostics, so a warning about an invalid code can quote
	// exactly what the trace contained.
	RawToken string
}

type constError string

func (e constError) Error() string { return string(e) }

// ErrMalformedRecord is wrapped by ParseLine when a non-blank,
// non-comment line doesn't match either record shape.
const ErrMalformedRecord = constError("malformed trace record")

// ParseLine parses one trace line into a Record. The caller is
// responsible for skipping blank lines and lines beginning with '#'
// before calling ParseLine; a line consisting only of whitespace
// after that filtering is still treated as malformed.
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Record{}, fmt.Errorf("%w: %q", ErrMalformedRecord, line)
	}

	if strings.EqualFold(fields[0], "P") {
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return Record{}, fmt.Errorf("%w: %q: %v", ErrMalformedRecord, line, err)
		}
		return Record{Kind: RecordPolicySwitch, PolicyCode: code, RawToken: fields[1]}, nil
	}

	lba, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q: %v", ErrMalformedRecord, line, err)
	}
	op, err := parseOp(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q: %v", ErrMalformedRecord, line, err)
	}
	return Record{Kind: RecordAccess, LBA: cachesim.LBA(lba), Op: op}, nil
}

func parseOp(s string) (cachesim.Op, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("invalid op %q", s)
	}
	switch s[0] {
	case 'R', 'r':
		return cachesim.Read, nil
	case 'W', 'w':
		return cachesim.Write, nil
	default:
		return 0, fmt.Errorf("invalid op %q", s)
	}
}

// MalformedHandler is invoked once per line that fails to parse, with
// the 1-based line number and the parse error. It does not stop the
// scan; §7 of the design classifies a malformed record as non-fatal.
type MalformedHandler func(lineNum int, err error)

// Scanner reads trace records from an io.Reader, skipping blank lines
// and '#' comments, and reports progress the way the teacher's JSON
// file reader does for large inputs.
type Scanner struct {
	ctx            context.Context //nolint:containedctx // progress reporting needs it in Scan
	scanner        *bufio.Scanner
	lineNum        int
	onMalformed    MalformedHandler
	progress       textui.Portion[int64]
	progressWriter *textui.Progress[textui.Portion[int64]]
	current        Record
}

// NewScanner constructs a Scanner over r. sizeHint is the denominator
// of the reported scan progress, as a fraction of total bytes (pass
// the trace file's size when known). With a sizeHint of 0 the progress
// line reads "100% (N/0)", N being the bytes consumed so far.
func NewScanner(ctx context.Context, r io.Reader, sizeHint int64, onMalformed MalformedHandler) *Scanner {
	return &Scanner{
		ctx:            ctx,
		scanner:        bufio.NewScanner(r),
		onMalformed:    onMalformed,
		progress:       textui.Portion[int64]{D: sizeHint},
		progressWriter: textui.NewProgress[textui.Portion[int64]](ctx, dlog.LogLevelInfo, textui.Tunable(1*time.Second)),
	}
}

// Scan advances to the next well-formed record, skipping over blank
// lines, comments, and (after reporting them via onMalformed)
// malformed lines. It returns false at EOF or on a read error from
// the underlying reader (distinguishable via Err).
func (s *Scanner) Scan() bool {
	for s.scanner.Scan() {
		s.lineNum++
		s.progress.N += int64(len(s.scanner.Bytes())) + 1
		s.progressWriter.Set(s.progress)

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := ParseLine(line)
		if err != nil {
			if s.onMalformed != nil {
				s.onMalformed(s.lineNum, err)
			}
			continue
		}
		s.current = rec
		return true
	}
	// The progress reporter only starts on its first Set; with no
	// line read there is nothing for Done to wait on.
	if s.lineNum > 0 {
		s.progressWriter.Done()
	}
	return false
}

// Record returns the record produced by the most recent successful Scan.
func (s *Scanner) Record() Record { return s.current }

// LineNum returns the 1-based line number of the most recent successful Scan.
func (s *Scanner) LineNum() int { return s.lineNum }

// Err returns the first non-EOF error encountered by the underlying reader.
func (s *Scanner) Err() error { return s.scanner.Err() }
