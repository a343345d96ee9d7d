// filechannel.go: FileChannel, the rotating and compressing file sink
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var _ Channel = (*FileChannel)(nil)

// FileChannel appends message lines to a file and rotates it according to
// its attributes. It composes four policies:
//
//   - RotationPolicy decides when the current file is rotated
//   - ArchivePolicy decides whether the rotated file is renamed or discarded
//   - CompressionCodec encodes every byte written to the open file
//   - PurgePolicy prunes archives after each archive step
//
// The logical path never changes: it always names the file currently being
// written. Archived files sit next to it as path.N or path.<timestamp>;
// compressed files keep the same names.
//
// Basic usage:
//
//	ch, err := charon.New("app.log")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ch.Close()
//
//	_ = ch.PutAttr("rotate", "size")
//	_ = ch.PutAttr("rotate.size", "10m")
//	_ = ch.PutAttr("archive", "number")
//	_ = ch.PutAttr("compression_mode", "gzip")
//
//	ch.Log(charon.NewMessage("api", "request served", charon.PriorityInfo))
//
// All methods are safe for concurrent use. A single mutex serializes writes
// and rotations, so no caller ever observes a write interleaved with a
// rotation in progress.
type FileChannel struct {
	mu sync.Mutex

	path     string
	attrs    *AttributeStore
	rotation RotationPolicy
	archive  ArchivePolicy
	purge    PurgePolicy
	codec    CompressionCodec

	clock         Clock
	logger        *slog.Logger
	errorCallback func(operation string, err error)
	fileMode      os.FileMode

	// Open file state, owned exclusively by the channel
	file *os.File
	enc  Encoder

	currentSize    int64
	lastWriteTime  int64 // unix seconds, -1 when the file never existed
	rotationAnchor time.Time
	everOpened     bool

	writes    uint64
	rotations uint64
}

// Option configures a FileChannel at construction time.
type Option func(*FileChannel)

// WithClock sets the time source. Defaults to DefaultClock().
func WithClock(clock Clock) Option {
	return func(c *FileChannel) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used for the channel's own diagnostics.
// By default they are discarded. The logger must not write into the
// channel it observes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *FileChannel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorCallback registers a function called when housekeeping that does
// not fail the current call (checksum sidecars, purge) goes wrong.
func WithErrorCallback(fn func(operation string, err error)) Option {
	return func(c *FileChannel) {
		c.errorCallback = fn
	}
}

// WithFileMode sets the permissions of created log files (default 0644).
func WithFileMode(mode os.FileMode) Option {
	return func(c *FileChannel) {
		if mode != 0 {
			c.fileMode = mode
		}
	}
}

// WithAttributes seeds the channel with a copy of a validated attribute set.
func WithAttributes(attrs *AttributeStore) Option {
	return func(c *FileChannel) {
		if attrs != nil {
			c.attrs = attrs.Clone()
		}
	}
}

// New creates a FileChannel for path. Nothing is created on disk until the
// channel is opened or the first message is logged. If path already names a
// regular file its size and modification time become the channel's state,
// and later writes append to it.
func New(path string, opts ...Option) (*FileChannel, error) {
	cleaned, err := cleanPath(path)
	if err != nil {
		return nil, fsErr("create channel", path, err)
	}

	c := &FileChannel{
		path:          cleaned,
		attrs:         NewAttributeStore(),
		clock:         DefaultClock(),
		logger:        slog.New(slog.DiscardHandler),
		fileMode:      defaultFileMode,
		lastWriteTime: -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	s := c.attrs.Settings()
	c.rotation = rotationPolicyFor(s)
	c.archive = archivePolicyFor(s)
	c.purge = purgePolicyFor(s, c.clock)
	c.codec = CodecFor(s.Compression)

	c.currentSize, c.lastWriteTime = statOnDisk(c.path)
	return c, nil
}

// statOnDisk reports size and mtime of a regular file at path, or 0 and -1.
func statOnDisk(path string) (int64, int64) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0, -1
	}
	return info.Size(), info.ModTime().Unix()
}

// Path returns the logical path of the channel.
func (c *FileChannel) Path() string {
	return c.path
}

// Size returns the number of logical bytes in the current file. Until the
// channel has been opened once it is read from the filesystem.
func (c *FileChannel) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.everOpened {
		size, _ := statOnDisk(c.path)
		return size
	}
	return c.currentSize
}

// LastWriteTime returns the unix time in seconds of the last write, or -1
// if the file has never existed. Until the channel has been opened once it
// is read from the filesystem.
func (c *FileChannel) LastWriteTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.everOpened {
		_, mtime := statOnDisk(c.path)
		return mtime
	}
	return c.lastWriteTime
}

// PutAttr validates and applies one attribute. compression_mode and archive
// cannot change once the channel has opened a file, even after Close.
func (c *FileChannel) PutAttr(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.everOpened && (key == AttrCompression || key == AttrArchive) {
		if current := c.attrs.Get(key, defaultAttrValue(key)); current != value {
			return configErr(key, value, ErrAttributeLocked)
		}
	}

	before := c.attrs.Settings()
	if err := c.attrs.Put(key, value); err != nil {
		return err
	}
	c.applySettings(before, c.attrs.Settings())
	return nil
}

// GetAttr returns the configured value of key, or def.
func (c *FileChannel) GetAttr(key, def string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrs.Get(key, def)
}

func defaultAttrValue(key string) string {
	switch key {
	case AttrCompression:
		return CompressionNone
	case AttrArchive:
		return ArchiveNone
	}
	return ""
}

// applySettings rebuilds the policies affected by a settings change. The
// archive policy is kept while its mode is unchanged so the number
// sequence survives unrelated attribute updates.
func (c *FileChannel) applySettings(before, after Settings) {
	c.rotation = rotationPolicyFor(after)
	c.purge = purgePolicyFor(after, c.clock)
	if before.Compression != after.Compression {
		c.codec = CodecFor(after.Compression)
	}
	if before.Archive != after.Archive {
		c.archive = archivePolicyFor(after)
	} else if ts, ok := c.archive.(*TimestampArchive); ok {
		ts.LocalTime = after.LocalTime
	}
}

// Open opens the logical path for appending, creating it when missing.
// Opening an open channel is a no-op. A path naming a directory fails with
// a *FileSystemError wrapping ErrIsDirectory.
func (c *FileChannel) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *FileChannel) openLocked() error {
	if c.file != nil {
		return nil
	}

	if info, err := os.Stat(c.path); err == nil && info.IsDir() {
		return fsErr("open", c.path, ErrIsDirectory)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fsErr("mkdir", dir, err)
		}
	}

	file, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, c.fileMode) // #nosec G304 -- path is the channel's configured log file
	if err != nil {
		return fsErr("open", c.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fsErr("stat", c.path, err)
	}

	var enc Encoder
	if resumer, ok := c.codec.(streamResumer); ok && info.Size() > 0 {
		_ = file.Close()
		if file, enc, err = c.resumeStream(resumer); err != nil {
			return err
		}
	} else if enc, err = c.codec.Wrap(file); err != nil {
		_ = file.Close()
		return err
	}

	c.file = file
	c.enc = enc
	c.currentSize = info.Size()
	c.lastWriteTime = info.ModTime().Unix()
	c.rotationAnchor = c.clock.Now()
	c.everOpened = true

	c.logger.Debug("log file opened",
		slog.String("path", c.path),
		slog.Int64("size", c.currentSize),
		slog.String("compression", c.codec.Name()))
	return nil
}

// fileSink lets an encoder outlive the handle it started writing to.
type fileSink struct {
	w io.Writer
}

func (s *fileSink) Write(p []byte) (int, error) { return s.w.Write(p) }

// resumeStream re-encodes the content already at the logical path into one
// open stream, so the file never holds a second stream its decoder would
// skip. The original stays in place until the rewritten copy replaces it.
func (c *FileChannel) resumeStream(codec streamResumer) (*os.File, Encoder, error) {
	existing, err := os.Open(c.path)
	if err != nil {
		return nil, nil, fsErr("open", c.path, err)
	}
	content, err := codec.Decode(existing)
	_ = existing.Close()
	if err != nil {
		return nil, nil, err
	}

	dir, base := filepath.Split(c.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".resume-*")
	if err != nil {
		return nil, nil, fsErr("create", dir, err)
	}
	tmpName := tmp.Name()
	fail := func(err error) (*os.File, Encoder, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, nil, err
	}

	sink := &fileSink{w: tmp}
	enc, err := codec.Wrap(sink)
	if err != nil {
		return fail(err)
	}
	if _, err := enc.Write(content); err != nil {
		return fail(err)
	}
	if f, ok := enc.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fail(err)
		}
	}
	if err := tmp.Chmod(c.fileMode); err != nil {
		return fail(fsErr("chmod", tmpName, err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, nil, fsErr("close", tmpName, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return nil, nil, fsErr("rename", tmpName, err)
	}

	file, err := os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND, c.fileMode) // #nosec G304 -- path is the channel's configured log file
	if err != nil {
		return nil, nil, fsErr("open", c.path, err)
	}
	sink.w = file

	c.logger.Debug("compressed stream resumed",
		slog.String("path", c.path),
		slog.Int("bytes", len(content)),
		slog.String("compression", codec.Name()))
	return file, enc, nil
}

// Log writes msg.Text followed by a newline through the active codec, then
// rotates if the rotation policy says so. A closed channel is opened first.
//
// A write failure is returned as is (*CodecError or *FileSystemError) with
// the size already counting whatever the encoder accepted. A rotation
// failure is returned after the message itself has been committed; the
// old content stays on disk and the channel keeps writing.
func (c *FileChannel) Log(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.openLocked(); err != nil {
		return err
	}

	n, err := c.enc.Write([]byte(msg.Text + "\n"))
	c.currentSize += int64(n)
	if err != nil {
		var codecErr *CodecError
		if errors.As(err, &codecErr) {
			return err
		}
		return fsErr("write", c.path, err)
	}

	now := c.clock.Now()
	c.lastWriteTime = now.Unix()
	c.writes++

	state := ChannelState{
		CurrentSize:    c.currentSize,
		RotationAnchor: c.rotationAnchor,
		Now:            now,
	}
	if c.rotation.ShouldRotate(state) {
		return c.rotateLocked(now)
	}
	return nil
}

// Rotate forces a rotation of the current file, opening it first if needed.
func (c *FileChannel) Rotate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.openLocked(); err != nil {
		return err
	}
	return c.rotateLocked(c.clock.Now())
}

// rotateLocked finalizes the codec, archives or discards the closed file,
// purges, and opens a fresh file at the logical path.
func (c *FileChannel) rotateLocked(now time.Time) error {
	if err := c.closeLocked(); err != nil {
		return err
	}

	committedSize := c.currentSize
	lastWrite := c.lastWriteTime
	anchor := c.rotationAnchor

	dest, keep := c.archive.Archive(c.path, now)
	var archiveErr error
	switch {
	case !keep:
		if err := os.Remove(c.path); err != nil {
			archiveErr = fsErr("remove", c.path, err)
		}
	case pathExists(dest):
		archiveErr = fsErr("rename", dest, ErrArchiveExists)
	default:
		if err := os.Rename(c.path, dest); err != nil {
			archiveErr = fsErr("rename", c.path, err)
		}
	}

	if archiveErr != nil {
		c.logger.Warn("rotation failed",
			slog.String("path", c.path),
			slog.String("archive", dest),
			slog.Any("error", archiveErr))

		// Keep writing after the old content.
		if err := c.openLocked(); err != nil {
			return errors.Join(archiveErr, err)
		}
		c.currentSize = committedSize
		c.lastWriteTime = lastWrite
		c.rotationAnchor = anchor
		return archiveErr
	}

	c.rotations++
	c.logger.Debug("log file rotated",
		slog.String("path", c.path),
		slog.String("archive", dest),
		slog.Int64("size", committedSize))

	if keep {
		c.afterArchive(dest)
	}

	if err := c.openLocked(); err != nil {
		return err
	}
	c.currentSize = 0
	c.lastWriteTime = lastWrite
	c.rotationAnchor = now
	return nil
}

// afterArchive runs the housekeeping that follows a successful rename.
// Failures are reported, never returned.
func (c *FileChannel) afterArchive(dest string) {
	if c.attrs.Settings().Checksum {
		if err := writeChecksum(dest); err != nil {
			c.reportError("checksum", err)
		}
	}

	if _, none := c.purge.(noPurge); none {
		return
	}
	archived, err := listArchives(c.path)
	if err != nil {
		c.reportError("purge", fsErr("list", c.path, err))
		return
	}
	if err := c.purge.Purge(filepath.Dir(c.path), archived); err != nil {
		c.reportError("purge", err)
	}
}

// Close finalizes the codec and releases the file. Closing a closed channel
// is a no-op.
func (c *FileChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *FileChannel) closeLocked() error {
	if c.file == nil {
		return nil
	}

	finishErr := c.enc.Finish()
	closeErr := c.file.Close()
	c.file, c.enc = nil, nil

	if finishErr != nil {
		return finishErr
	}
	if closeErr != nil && !errors.Is(closeErr, fs.ErrClosed) {
		return fsErr("close", c.path, closeErr)
	}

	c.logger.Debug("log file closed", slog.String("path", c.path))
	return nil
}

// reportError invokes the error callback if set
func (c *FileChannel) reportError(operation string, err error) {
	c.logger.Warn("channel housekeeping failed",
		slog.String("operation", operation),
		slog.String("path", c.path),
		slog.Any("error", err))
	if c.errorCallback != nil {
		c.errorCallback(operation, err)
	}
}

// Stats is a snapshot of a channel's counters.
type Stats struct {
	Writes          uint64 `json:"writes"`
	Rotations       uint64 `json:"rotations"`
	ArchiveSequence uint64 `json:"archive_sequence"`
	CurrentSize     int64  `json:"current_size"`
	LastWriteTime   int64  `json:"last_write_time"`
	Open            bool   `json:"open"`
}

// Stats returns the channel's counters.
func (c *FileChannel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var seq uint64
	if n, ok := c.archive.(*NumberArchive); ok {
		seq = n.Sequence()
	}
	return Stats{
		Writes:          c.writes,
		Rotations:       c.rotations,
		ArchiveSequence: seq,
		CurrentSize:     c.currentSize,
		LastWriteTime:   c.lastWriteTime,
		Open:            c.file != nil,
	}
}
