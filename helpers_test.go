// helpers_test.go: Shared test fixtures
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testSource = "Bridgekeeper"
	testText   = "What... is the air-speed velocity of an unladen swallow?"
)

// testLine is what one testText message puts on disk.
const testLine = testText + "\n"

func testMessage() Message {
	return NewMessage(testSource, testText, PriorityDebug)
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 14, 3, 27, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// newTestChannel creates a channel at dir/tmpFile.log driven by clock and
// applies attrs as key/value pairs.
func newTestChannel(t *testing.T, dir string, clock Clock, attrs ...string) *FileChannel {
	t.Helper()
	require.Zero(t, len(attrs)%2, "attrs must be key/value pairs")

	ch, err := New(filepath.Join(dir, "tmpFile.log"), WithClock(clock))
	require.NoError(t, err)
	for i := 0; i < len(attrs); i += 2 {
		require.NoError(t, ch.PutAttr(attrs[i], attrs[i+1]))
	}
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

// regularFiles lists the regular files in dir, sorted.
func regularFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
