// errors.go: Typed errors surfaced by channels
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"errors"
	"fmt"
)

// Sentinel causes, matched with errors.Is through the typed errors below.
var (
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrInvalidValue     = errors.New("invalid attribute value")
	ErrAttributeLocked  = errors.New("attribute cannot change while the channel is open")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrIsDirectory      = errors.New("path is a directory")
	ErrArchiveExists    = errors.New("archive destination already exists")
	ErrClosed           = errors.New("channel is closed")
)

// ConfigError reports an unknown attribute key or a malformed value.
// It is only returned while configuring, never from Log.
type ConfigError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config %q=%q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FileSystemError reports a failure to create, open, rename, remove or
// close a file, or a path that names a directory.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error { return e.Err }

// CodecError reports a compression backend failing to encode or finalize.
type CodecError struct {
	Codec string
	Op    string
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s codec %s: %v", e.Codec, e.Op, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

func configErr(key, value string, err error) error {
	return &ConfigError{Key: key, Value: value, Err: err}
}

func fsErr(op, path string, err error) error {
	return &FileSystemError{Op: op, Path: path, Err: err}
}
