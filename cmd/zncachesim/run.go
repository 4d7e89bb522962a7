// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/davecgh/go-spew/spew"

	"zncachesim/lib/cachesim"
	"zncachesim/lib/iolog"
	"zncachesim/lib/textui"
	"zncachesim/lib/workload"
)

type runOptions struct {
	Frames        int
	Policy        string
	ZoneSizePages uint64
	Device        string
	TracePath     string
	IOLogPath     string
	JSONIOLogPath string
	DumpFrames    bool
}

func run(ctx context.Context, opts runOptions) (err error) {
	maybeSetErr := func(_err error) {
		if err == nil && _err != nil {
			err = _err
		}
	}

	initialPolicy, perr := cachesim.ParsePolicyName(opts.Policy)
	if perr != nil {
		return fmt.Errorf("configuration error: %w", perr)
	}

	traceFile, oerr := os.Open(opts.TracePath)
	if oerr != nil {
		return fmt.Errorf("configuration error: %w", oerr)
	}
	defer func() {
		maybeSetErr(traceFile.Close())
	}()
	traceInfo, serr := traceFile.Stat()
	if serr != nil {
		return fmt.Errorf("configuration error: %w", serr)
	}

	iologOut := os.Stdout
	if opts.IOLogPath != "-" {
		fh, cerr := os.Create(opts.IOLogPath)
		if cerr != nil {
			return fmt.Errorf("configuration error: %w", cerr)
		}
		defer func() {
			maybeSetErr(fh.Close())
		}()
		iologOut = fh
	}
	logWriter, werr := iolog.NewWriter(iologOut, opts.Device)
	if werr != nil {
		return fmt.Errorf("configuration error: %w", werr)
	}

	var jsonSink *iolog.JSONWriter
	var sink iolog.Sink = logWriter
	if opts.JSONIOLogPath != "" {
		jsonSink = iolog.NewJSONWriter(opts.Device)
		sink = teeSink{logWriter, jsonSink}
	}

	engine, eerr := cachesim.NewEngine(cachesim.Config{
		Frames:        opts.Frames,
		InitialPolicy: initialPolicy,
		ZoneSizePages: opts.ZoneSizePages,
		Device:        opts.Device,
		WorkloadPath:  opts.TracePath,
		Sink:          sink,
	})
	if eerr != nil {
		return fmt.Errorf("configuration error: %w", eerr)
	}

	scanner := workload.NewScanner(ctx, traceFile, traceInfo.Size(), func(lineNum int, perr error) {
		dlog.Warnf(ctx, "trace line %d: %v", lineNum, perr)
	})
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := scanner.Record()
		switch rec.Kind {
		case workload.RecordAccess:
			if _, err := engine.Access(ctx, rec.LBA, rec.Op); err != nil {
				return fmt.Errorf("trace line %d: %w", scanner.LineNum(), err)
			}
		case workload.RecordPolicySwitch:
			newPolicy, perr := cachesim.ParsePolicyCode(rec.PolicyCode)
			if perr != nil {
				dlog.Warnf(ctx, "trace line %d: %v %q, retaining current policy", scanner.LineNum(), perr, rec.RawToken)
				continue
			}
			engine.SwitchPolicy(ctx, newPolicy)
		}
	}
	if serr := scanner.Err(); serr != nil {
		return fmt.Errorf("reading %s: %w", opts.TracePath, serr)
	}

	if opts.DumpFrames {
		cfg := spew.NewDefaultConfig()
		cfg.DisablePointerAddresses = true
		cfg.Fdump(os.Stderr, engine.Frames())
	}

	if err := engine.Shutdown(ctx); err != nil {
		return err
	}

	if jsonSink != nil {
		fh, cerr := os.Create(opts.JSONIOLogPath)
		if cerr != nil {
			return cerr
		}
		defer func() {
			maybeSetErr(fh.Close())
		}()
		if derr := jsonSink.Dump(fh); derr != nil {
			return derr
		}
	}

	printSummary(engine.Summary())
	return nil
}

// teeSink fans every event out to all of its members, in order,
// stopping at the first error.
type teeSink []iolog.Sink

func (t teeSink) Read(byteOffset, byteLength uint64) error {
	for _, s := range t {
		if err := s.Read(byteOffset, byteLength); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) Write(byteOffset, byteLength uint64) error {
	for _, s := range t {
		if err := s.Write(byteOffset, byteLength); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) Close() error {
	for _, s := range t {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(s cachesim.Summary) {
	zoneDesc := "disabled"
	if s.ZoneSizePages > 0 {
		zoneDesc = fmt.Sprintf("%d pages/zone", s.ZoneSizePages)
	}
	textui.Fprintf(os.Stdout, "\n")
	textui.Fprintf(os.Stdout, "policy:        %v\n", s.Policy)
	textui.Fprintf(os.Stdout, "buffer size:   %v frames\n", s.BufferSize)
	textui.Fprintf(os.Stdout, "workload:      %v\n", s.WorkloadPath)
	textui.Fprintf(os.Stdout, "device:        %v\n", s.Device)
	textui.Fprintf(os.Stdout, "zns:           %v\n", zoneDesc)
	textui.Fprintf(os.Stdout, "accesses:      %v\n", s.Accesses)
	textui.Fprintf(os.Stdout, "hits:          %v\n", s.Hits)
	textui.Fprintf(os.Stdout, "misses:        %v\n", s.Misses)
	textui.Fprintf(os.Stdout, "hit rate:      %v\n", textui.Portion[uint64]{N: s.Hits, D: s.Accesses})
	textui.Fprintf(os.Stdout, "final p:       %v\n", s.FinalP)
	textui.Fprintf(os.Stdout, "final q:       %v\n", s.FinalQ)
}
