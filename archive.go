// archive.go: Archive policies for rotated-out files
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ArchivePolicy decides where a file being rotated out goes.
// Archive is called exactly once per rotation with the path of the closed
// file; ok=false means the file is discarded.
type ArchivePolicy interface {
	Archive(closedPath string, now time.Time) (dest string, ok bool)
}

type noArchive struct{}

func (noArchive) Archive(string, time.Time) (string, bool) { return "", false }

// NoArchive discards rotated files.
func NoArchive() ArchivePolicy { return noArchive{} }

// NumberArchive names archives path.0, path.1, ... The counter lives in
// memory and starts at 0 for every new policy; it is never recovered from
// the directory.
type NumberArchive struct {
	next uint64
}

// Archive implements ArchivePolicy.
func (p *NumberArchive) Archive(closedPath string, _ time.Time) (string, bool) {
	n := p.next
	p.next++
	return closedPath + "." + strconv.FormatUint(n, 10), true
}

// Sequence returns the number the next archive will get.
func (p *NumberArchive) Sequence() uint64 { return p.next }

// TimestampLayout is the layout used for timestamp archive names.
const TimestampLayout = "2006-01-02-15-04-05"

// TimestampArchive names archives path.<timestamp>. Two archives within the
// same second get increasing ".N" suffixes, and names already on disk are
// skipped, so an existing archive is never overwritten.
type TimestampArchive struct {
	LocalTime bool

	lastStamp string
	dup       int
	exists    func(string) bool
}

// NewTimestampArchive returns a timestamp policy using UTC unless localTime.
func NewTimestampArchive(localTime bool) *TimestampArchive {
	return &TimestampArchive{LocalTime: localTime}
}

// Archive implements ArchivePolicy.
func (p *TimestampArchive) Archive(closedPath string, now time.Time) (string, bool) {
	if !p.LocalTime {
		now = now.UTC()
	}
	stamp := now.Format(TimestampLayout)
	if stamp == p.lastStamp {
		p.dup++
	} else {
		p.lastStamp = stamp
		p.dup = 0
	}

	exists := p.exists
	if exists == nil {
		exists = pathExists
	}
	for {
		dest := closedPath + "." + stamp
		if p.dup > 0 {
			dest = fmt.Sprintf("%s.%d", dest, p.dup)
		}
		if !exists(dest) {
			return dest, true
		}
		p.dup++
	}
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// archivePolicyFor builds the policy selected by s.
func archivePolicyFor(s Settings) ArchivePolicy {
	switch s.Archive {
	case ArchiveNumber:
		return &NumberArchive{}
	case ArchiveTimestamp:
		return NewTimestampArchive(s.LocalTime)
	}
	return noArchive{}
}
