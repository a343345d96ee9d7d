// Package charon provides a rotating, compressing, archiving log file channel.
//
// A FileChannel appends one line per message to a file at a stable logical
// path and decides on its own when to close that file, what to do with it,
// and how bytes are encoded on their way to disk. Every decision is an
// attribute of the channel, set with PutAttr or loaded from a YAML/JSON file.
//
// # Quick Start
//
//	ch, err := charon.New("/var/log/app/app.log")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ch.Close()
//
//	ch.PutAttr("rotate", "size")
//	ch.PutAttr("rotate.size", "10m")
//	ch.PutAttr("archive", "number")
//
//	ch.Log(charon.NewMessage("api", "listening on :8080", charon.PriorityInfo))
//
// # Attributes
//
//	compression_mode  none | gzip | bzip2 | zlib | zstd
//	archive           none | number | timestamp
//	rotate            none | size | interval
//	rotate.size       bytes with optional k or m suffix: "57", "1k", "1m"
//	rotate.interval   HH:MM:SS
//	purge             none | count | age
//	purge.count       archives to keep (newest by modification time)
//	purge.age         maximum archive age: "36h", "7d", "2w"
//	checksum          none | sha256 (writes <archive>.sha256)
//	timestamp.local   true | false (timestamp archives in local time)
//
// Unknown keys and malformed values fail at PutAttr with a *ConfigError.
// compression_mode and archive cannot change once the channel has opened a
// file, even after Close. A size, interval, count or age mode whose parameter is not set yet
// is inert.
//
// # Rotation
//
// The rotation policy runs after every write, once the write has been
// counted. Size rotation therefore lets a file exceed its threshold by at
// most one message, and a message at least as large as the threshold causes
// exactly one rotation. Interval rotation measures from the moment the
// current file was opened or last rotated.
//
// On rotation the channel finalizes the codec, renames the file to its
// archive name (or removes it when archive is none), runs the purge policy
// and opens a fresh file at the same path.
//
// # Archive Names
//
//	archive=number     app.log.0, app.log.1, ...  (counter restarts at 0 with each new channel)
//	archive=timestamp  app.log.2025-06-01-14-03-27, app.log.2025-06-01-14-03-27.1, ...
//
// Compressed archives keep the same names; the codec describes content, not
// the file name. Each archive is a complete stream that decodes with the
// standard decompressor for its codec.
//
// # Restarts
//
// A channel created over an existing file reports that file's size and
// modification time and appends to it. Archive numbering is not recovered
// from the directory; a number archive that would overwrite an existing
// file fails the rotation with ErrArchiveExists instead.
//
// # Errors
//
// ConfigError, FileSystemError and CodecError wrap sentinel causes such as
// ErrUnknownAttribute, ErrIsDirectory or ErrArchiveExists:
//
//	if err := ch.Log(msg); err != nil {
//		var fsErr *charon.FileSystemError
//		if errors.As(err, &fsErr) && errors.Is(err, charon.ErrIsDirectory) {
//			// the configured path is a directory
//		}
//	}
//
// A failed rotation never deletes data: the old content stays at the
// logical path and the channel keeps appending to it until a later rotation
// succeeds. Housekeeping failures (checksums, purge) are reported through
// WithErrorCallback and WithLogger without failing the call.
//
// # Asynchronous Logging
//
// FileChannel blocks on file I/O. Callers that must not block can put an
// AsyncChannel in front of it:
//
//	async := charon.NewAsyncChannel(ch, charon.AsyncOptions{
//		BufferSize:   4096,
//		Backpressure: charon.BackpressureDrop,
//	})
//	defer async.Close() // drains, then closes ch
//
// # Thread Safety
//
// All FileChannel methods may be called concurrently; writes and rotations
// are serialized by one mutex per channel. A channel assumes it is the only
// writer of its files.
package charon
