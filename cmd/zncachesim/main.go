// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command zncachesim replays a trace of block-device accesses through
// a simulated fixed-size page buffer cache, exercising one of nine
// replacement policies, and reports hit/miss statistics plus a
// fio-iolog trace of the resulting device I/O.
package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"zncachesim/lib/profile"
	"zncachesim/lib/textui"
)

func dlogLevelToLogrus(lvl dlog.LogLevel) logrus.Level {
	switch lvl {
	case dlog.LogLevelError:
		return logrus.ErrorLevel
	case dlog.LogLevelWarn:
		return logrus.WarnLevel
	case dlog.LogLevelInfo:
		return logrus.InfoLevel
	case dlog.LogLevelDebug:
		return logrus.DebugLevel
	case dlog.LogLevelTrace:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

func main() {
	verbosity := textui.LogLevelFlag{Level: dlog.LogLevelInfo}
	opts := runOptions{}

	argparser := &cobra.Command{
		Use:   "zncachesim TRACE-FILE",
		Short: "Simulate a page buffer cache in front of a zoned-namespace device",

		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),

		SilenceErrors: true,
		SilenceUsage:  true,

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)

	flags := argparser.Flags()
	flags.Var(&verbosity, "verbosity", "set the log verbosity")
	flags.IntVarP(&opts.Frames, "frames", "n", 0, "number of buffer frames `N` (required)")
	flags.StringVar(&opts.Policy, "policy", "LRU", "initial replacement policy `name`")
	flags.Uint64Var(&opts.ZoneSizePages, "zone-size-pages", 0, "ZNS zone size in pages (0 disables ZNS checking)")
	flags.StringVar(&opts.Device, "device", "/dev/nvme0n1", "device `name` recorded in the I/O trace and run summary")
	flags.StringVar(&opts.IOLogPath, "iolog", "-", "write the fio-iolog device trace to `path` (\"-\" for stdout)")
	flags.StringVar(&opts.JSONIOLogPath, "json-iolog", "", "additionally dump the device trace as structured JSON to `path`")
	flags.BoolVar(&opts.DumpFrames, "dump-frames", false, "spew the final buffer frame table to stderr at shutdown")
	if err := argparser.MarkFlagRequired("frames"); err != nil {
		panic(err)
	}

	stopProfiling := profile.AddProfileFlags(flags, "")

	argparser.RunE = func(cmd *cobra.Command, args []string) (err error) {
		opts.TracePath = args[0]

		ctx := cmd.Context()
		logger := logrus.New()
		logger.SetLevel(dlogLevelToLogrus(verbosity.Level))
		ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

		grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
			EnableSignalHandling: true,
		})
		grp.Go("main", func(ctx context.Context) error {
			return run(ctx, opts)
		})
		return grp.Wait()
	}

	err := argparser.ExecuteContext(context.Background())
	if stopErr := stopProfiling(); err == nil {
		err = stopErr
	}
	if err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
