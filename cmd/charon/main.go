// main.go: charon, pipe stdin into a rotating log file
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// charon reads lines from stdin and appends each one to a FileChannel,
// rotating, compressing and archiving the file as its attributes say.
//
// Usage:
//
//	charon [options] PATH
//
// Options:
//
//	-c, --config FILE    attribute file (.yaml, .yml or .json)
//	-a, --attr K=V       attribute, repeatable, applied after --config
//	    --source NAME    message source (default: charon)
//	    --priority P     message priority (default: info)
//	    --stats          print channel counters on exit
//	    --async          queue lines in front of the file
//	    --verbose        debug diagnostics on stderr
//
// Exit codes:
//
//	0: stdin fully written and the channel closed cleanly
//	1: a write, rotation or close failed
//	2: invalid options or attributes
//
// Examples:
//
//	myapp | charon -a rotate=size -a rotate.size=10m -a archive=number app.log
//	myapp | charon --config charon.yaml --stats /var/log/myapp/app.log
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/agilira/charon"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Version information, injected with -ldflags "-X main.Version=..."
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

const maxLineSize = 1024 * 1024

// usageError marks problems with the command line or the attributes.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and maps its outcome to an exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	started := false
	app := createApp(stdin, stdout, stderr, &started)

	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		var cfgErr *charon.ConfigError
		switch {
		case errors.As(err, &usageErr), errors.As(err, &cfgErr):
			fmt.Fprintf(stderr, "charon: %v\n", err)
			return 2
		case !started:
			// Flag parsing failed; cli already printed the details
			return 2
		default:
			fmt.Fprintf(stderr, "charon: %v\n", err)
			return 1
		}
	}
	return 0
}

func createApp(stdin io.Reader, stdout, stderr io.Writer, started *bool) *cli.Command {
	return &cli.Command{
		Name:      "charon",
		Usage:     "append stdin to a rotating, compressing log file",
		ArgsUsage: "PATH",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "attribute file (.yaml, .yml or .json)",
			},
			&cli.StringSliceFlag{
				Name:    "attr",
				Aliases: []string{"a"},
				Usage:   "attribute as key=value, repeatable",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "message source",
				Value: "charon",
			},
			&cli.StringFlag{
				Name:  "priority",
				Usage: "message priority",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "print channel counters on exit",
			},
			&cli.BoolFlag{
				Name:  "async",
				Usage: "queue lines in front of the file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "debug diagnostics on stderr",
			},
		},
		// Exit codes are decided by run, never by cli.
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*started = true
			return pipe(ctx, cmd, stdin, stdout, stderr)
		},
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadAttributes merges the attribute file and the --attr entries.
func loadAttributes(configPath string, pairs []string) (*charon.AttributeStore, error) {
	attrs := charon.NewAttributeStore()
	if configPath != "" {
		loaded, err := charon.LoadAttributeFile(configPath)
		if err != nil {
			return nil, &usageError{err: err}
		}
		attrs = loaded
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, usagef("--attr %q: want key=value", pair)
		}
		if err := attrs.Put(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

func pipe(ctx context.Context, cmd *cli.Command, stdin io.Reader, stdout, stderr io.Writer) error {
	if cmd.NArg() != 1 {
		return usagef("expected exactly one PATH argument, got %d", cmd.NArg())
	}
	path := cmd.Args().First()

	prio, err := charon.ParsePriority(cmd.String("priority"))
	if err != nil {
		return &usageError{err: err}
	}

	attrs, err := loadAttributes(cmd.String("config"), cmd.StringSlice("attr"))
	if err != nil {
		return err
	}

	logger := newLogger(stderr, cmd.Bool("verbose"))
	ch, err := charon.New(path,
		charon.WithAttributes(attrs),
		charon.WithLogger(logger),
		charon.WithErrorCallback(func(operation string, err error) {
			logger.Debug("housekeeping error reported", slog.String("operation", operation), slog.Any("error", err))
		}),
	)
	if err != nil {
		return &usageError{err: err}
	}

	var sink charon.Channel = ch
	var asyncFailures atomic.Int64
	if cmd.Bool("async") {
		sink = charon.NewAsyncChannel(ch, charon.AsyncOptions{
			ErrorCallback: func(operation string, err error) {
				asyncFailures.Add(1)
				logger.Error("queued message failed", slog.String("operation", operation), slog.Any("error", err))
			},
		})
	}

	if err := sink.Open(); err != nil {
		_ = sink.Close()
		return err
	}

	source := cmd.String("source")
	pumpErr := pump(ctx, stdin, func(line string) error {
		return sink.Log(charon.NewMessage(source, line, prio))
	}, logger)
	closeErr := sink.Close()

	if cmd.Bool("stats") {
		printStats(stdout, ch.Stats())
	}

	if n := asyncFailures.Load(); n > 0 {
		pumpErr = errors.Join(pumpErr, fmt.Errorf("%d queued messages failed", n))
	}
	return errors.Join(pumpErr, closeErr)
}

// pump feeds stdin lines to logLine until EOF or cancellation. A failed
// line is logged and remembered; later lines are still written.
//
// On cancellation pump returns at once, but the reading goroutine stays
// blocked in Scan until r yields data, EOF or an error. Reads from os.Stdin
// cannot be interrupted, so in the CLI it ends with the process; callers
// that keep running must close r to release it.
func pump(ctx context.Context, r io.Reader, logLine func(string) error, logger *slog.Logger) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var firstErr error
	for {
		select {
		case <-ctx.Done():
			logger.Debug("interrupted, closing channel")
			return firstErr
		case line, ok := <-lines:
			if !ok {
				var err error
				select {
				case err = <-scanErr:
				default:
				}
				if err != nil {
					err = fmt.Errorf("read stdin: %w", err)
				}
				return errors.Join(firstErr, err)
			}
			if err := logLine(line); err != nil {
				logger.Error("write failed", slog.Any("error", err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
}

func printStats(w io.Writer, s charon.Stats) {
	lastWrite := "never"
	if s.LastWriteTime >= 0 {
		lastWrite = time.Unix(s.LastWriteTime, 0).UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(w, "writes:     %s\n", humanize.Comma(int64(s.Writes))) // #nosec G115 -- display only
	fmt.Fprintf(w, "rotations:  %s\n", humanize.Comma(int64(s.Rotations))) // #nosec G115 -- display only
	fmt.Fprintf(w, "size:       %s\n", humanize.IBytes(uint64(max(s.CurrentSize, 0))))
	fmt.Fprintf(w, "last write: %s\n", lastWrite)
}
