// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging sets up the structured logger carried in every context.
//
// Components log through goa.design/clue/log directly; this package only
// builds the root context from configuration.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"goa.design/clue/log"
)

// Options selects format, level and destination.
type Options struct {
	// Level is "debug", "info", "warn" or "error". Only debug changes output.
	Level string
	// Format is "terminal", "json", "text" or "auto" (terminal on a TTY).
	Format string
	// File, when set, receives log output instead of stderr.
	File string
}

// Context returns a context carrying a configured clue logger, plus a closer
// for the log file (a no-op when logging to stderr).
func Context(parent context.Context, opts Options) (context.Context, func() error, error) {
	var out io.Writer = os.Stderr
	closer := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
			return parent, closer, err
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return parent, closer, err
		}
		out = f
		closer = f.Close
	}

	// Interactive client: no buffering until the next error.
	logOpts := []log.LogOption{
		log.WithFormat(formatFor(opts.Format, opts.File != "")),
		log.WithOutput(out),
		log.WithDisableBuffering(func(context.Context) bool { return true }),
	}
	if strings.EqualFold(opts.Level, "debug") {
		logOpts = append(logOpts, log.WithDebug())
	}
	return log.Context(parent, logOpts...), closer, nil
}

// Discard returns a context whose logger drops everything. Used by tests and
// by commands whose stderr is the user's terminal and must stay clean.
func Discard(parent context.Context) context.Context {
	return log.Context(parent, log.WithOutput(io.Discard))
}

func formatFor(name string, toFile bool) log.FormatFunc {
	switch strings.ToLower(name) {
	case "json":
		return log.FormatJSON
	case "text":
		return log.FormatText
	case "terminal":
		return log.FormatTerminal
	}
	if !toFile && log.IsTerminal() {
		return log.FormatTerminal
	}
	return log.FormatJSON
}
