// main_test.go: Tests for the charon CLI
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const swallow = "What... is the air-speed velocity of an unladen swallow?"

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"charon"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func lines(n int) string {
	return strings.Repeat(swallow+"\n", n)
}

func TestRun_PlainAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	res := runCLI(t, "one\ntwo\nthree\n", path)
	require.Equal(t, 0, res.code, res.stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", string(data))
}

func TestRun_AttrFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	res := runCLI(t, lines(3),
		"--attr", "rotate=size",
		"--attr", "rotate.size=57",
		"-a", "archive=number",
		path)
	require.Equal(t, 0, res.code, res.stderr)

	for _, name := range []string{"app.log", "app.log.0", "app.log.1", "app.log.2"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	config := filepath.Join(dir, "charon.yaml")
	require.NoError(t, os.WriteFile(config, []byte("rotate: size\nrotate.size: 100\narchive: number\n"), 0600))

	// --attr overrides the file
	res := runCLI(t, lines(4), "--config", config, "--attr", "rotate.size=57", path)
	require.Equal(t, 0, res.code, res.stderr)

	assert.FileExists(t, filepath.Join(dir, "app.log.3"))
}

func TestRun_Stats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	res := runCLI(t, lines(3), "--stats", path)
	require.Equal(t, 0, res.code, res.stderr)

	assert.Contains(t, res.stdout, "writes:     3\n")
	assert.Contains(t, res.stdout, "rotations:  0\n")
	assert.Contains(t, res.stdout, "size:       171 B\n")
}

func TestRun_Async(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	res := runCLI(t, lines(50), "--async", path)
	require.Equal(t, 0, res.code, res.stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, lines(50), string(data))
}

func TestRun_UsageErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	tests := []struct {
		name string
		args []string
	}{
		{"no_path", nil},
		{"two_paths", []string{path, path + "2"}},
		{"unknown_flag", []string{"--bogus", path}},
		{"unknown_attr", []string{"--attr", "rotation=size", path}},
		{"invalid_value", []string{"--attr", "rotate.size=1kb", path}},
		{"malformed_attr", []string{"--attr", "rotate", path}},
		{"bad_priority", []string{"--priority", "loud", path}},
		{"missing_config", []string{"--config", filepath.Join(dir, "missing.yaml"), path}},
		{"bad_config_ext", []string{"--config", filepath.Join(dir, "charon.toml"), path}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "line\n", tt.args...)
			assert.Equal(t, 2, res.code, "stderr: %s", res.stderr)
			assert.NoFileExists(t, path)
		})
	}
}

func TestRun_DirectoryPath(t *testing.T) {
	dir := t.TempDir()

	res := runCLI(t, "line\n", dir)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "is a directory")
}

func TestLoadAttributes(t *testing.T) {
	attrs, err := loadAttributes("", []string{"archive = timestamp", "timestamp.local=true"})
	require.NoError(t, err)
	assert.Equal(t, "timestamp", attrs.Settings().Archive)
	assert.True(t, attrs.Settings().LocalTime)

	_, err = loadAttributes("", []string{"=none"})
	var usageErr *usageError
	assert.ErrorAs(t, err, &usageErr)
}

func TestPump_ContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	var got []string
	logLine := func(line string) error {
		got = append(got, line)
		if line == "b" {
			return boom
		}
		return nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := pump(context.Background(), strings.NewReader("a\nb\nc\n"), logLine, logger)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPump_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pr, pw := io.Pipe()
	// The reader stays blocked in Scan until the pipe closes
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := pump(ctx, pr, func(string) error {
		t.Error("no line was written")
		return nil
	}, logger)
	assert.NoError(t, err)
}

func TestPump_CancelKeepsEarlierFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("boom")
	logLine := func(string) error {
		cancel()
		return boom
	}

	go func() {
		_, _ = io.WriteString(pw, "a\n")
	}()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := pump(ctx, pr, logLine, logger)
	assert.ErrorIs(t, err, boom)
}
