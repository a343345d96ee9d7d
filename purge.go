// purge.go: Purge policies and archive housekeeping
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

const checksumSuffix = ".sha256"

// PurgePolicy prunes archived files. It runs after every successful archive
// step with the directory of the channel and the archives currently on disk.
type PurgePolicy interface {
	Purge(dir string, archived []string) error
}

type noPurge struct{}

func (noPurge) Purge(string, []string) error { return nil }

// NoPurge keeps every archive.
func NoPurge() PurgePolicy { return noPurge{} }

// CountPurge keeps the Keep most recently modified archives.
type CountPurge struct {
	Keep int
}

// Purge implements PurgePolicy.
func (p CountPurge) Purge(_ string, archived []string) error {
	files := statArchives(archived)
	if p.Keep <= 0 || len(files) <= p.Keep {
		return nil
	}

	// Oldest first
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	var errs []error
	for _, f := range files[:len(files)-p.Keep] {
		if err := removeArchive(f.name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AgePurge removes archives last modified more than MaxAge ago.
type AgePurge struct {
	MaxAge time.Duration
	Clock  Clock
}

// Purge implements PurgePolicy.
func (p AgePurge) Purge(_ string, archived []string) error {
	if p.MaxAge <= 0 {
		return nil
	}
	clock := p.Clock
	if clock == nil {
		clock = DefaultClock()
	}
	now := clock.Now()

	var errs []error
	for _, f := range statArchives(archived) {
		if now.Sub(f.modTime) > p.MaxAge {
			if err := removeArchive(f.name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// purgePolicyFor builds the policy selected by s. A count or age mode whose
// parameter is still unset keeps everything.
func purgePolicyFor(s Settings, clock Clock) PurgePolicy {
	switch s.Purge {
	case PurgeCount:
		if s.PurgeCount > 0 {
			return CountPurge{Keep: s.PurgeCount}
		}
	case PurgeAge:
		if s.PurgeAge > 0 {
			return AgePurge{MaxAge: s.PurgeAge, Clock: clock}
		}
	}
	return noPurge{}
}

// fileInfo holds file information for sorting
type fileInfo struct {
	name    string
	modTime time.Time
}

func statArchives(names []string) []fileInfo {
	files := make([]fileInfo, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(name)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, fileInfo{name: name, modTime: info.ModTime()})
	}
	return files
}

func removeArchive(name string) error {
	if err := os.Remove(name); err != nil {
		return fsErr("remove", name, err)
	}
	if err := os.Remove(name + checksumSuffix); err != nil && !os.IsNotExist(err) {
		return fsErr("remove", name+checksumSuffix, err)
	}
	return nil
}

// listArchives returns the archives of the logical path: the names a
// number or timestamp policy produces. Checksum sidecars and unrelated
// siblings such as path.lock are skipped.
func listArchives(path string) ([]string, error) {
	matches, err := filepath.Glob(escapeGlob(path) + ".*")
	if err != nil {
		return nil, err
	}
	archives := matches[:0]
	for _, m := range matches {
		if len(m) > len(path)+1 && isArchiveSuffix(m[len(path)+1:]) {
			archives = append(archives, m)
		}
	}
	return archives, nil
}

// isArchiveSuffix matches "N", "<timestamp>" and "<timestamp>.N".
func isArchiveSuffix(s string) bool {
	if isDigits(s) {
		return true
	}
	if len(s) < len(TimestampLayout) {
		return false
	}
	if _, err := time.Parse(TimestampLayout, s[:len(TimestampLayout)]); err != nil {
		return false
	}
	rest := s[len(TimestampLayout):]
	return rest == "" || (rest[0] == '.' && isDigits(rest[1:]))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func escapeGlob(path string) string {
	if runtime.GOOS == "windows" {
		return path
	}
	var b strings.Builder
	for _, r := range path {
		if strings.ContainsRune(`*?[\`, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// writeChecksum creates a SHA-256 sidecar "<hex>  <base>\n" next to filename.
func writeChecksum(filename string) error {
	file, err := os.Open(filename) // #nosec G304 -- filename is an archive produced by this channel
	if err != nil {
		return fsErr("open", filename, err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fsErr("read", filename, err)
	}

	content := fmt.Sprintf("%s  %s\n", hex.EncodeToString(hash.Sum(nil)), filepath.Base(filename))
	if err := os.WriteFile(filename+checksumSuffix, []byte(content), 0600); err != nil {
		return fsErr("write", filename+checksumSuffix, err)
	}
	return nil
}
