// clock.go: Time source for write and rotation bookkeeping
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// Clock supplies the current time to a FileChannel.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// sharedTimeCache is started on first use and lives for the process:
// channels reopen after Close, so no single channel owns it.
var sharedTimeCache = sync.OnceValue(func() *timecache.TimeCache {
	return timecache.NewWithResolution(time.Millisecond)
})

type cachedClock struct{}

func (cachedClock) Now() time.Time { return sharedTimeCache().CachedTime() }

// DefaultClock returns the millisecond-resolution cached clock used when
// no clock is configured.
func DefaultClock() Clock { return cachedClock{} }
