// clock_test.go: Tests for time sources
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockFunc(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var clock Clock = ClockFunc(func() time.Time { return at })
	assert.Equal(t, at, clock.Now())
}

func TestDefaultClock(t *testing.T) {
	clock := DefaultClock()
	assert.Same(t, sharedTimeCache(), sharedTimeCache())
	assert.WithinDuration(t, time.Now(), clock.Now(), time.Second)
}
