// codec.go: Compression codecs bound to one open file
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compression modes for the "compression_mode" attribute.
const (
	CompressionNone  = "none"
	CompressionGzip  = "gzip"
	CompressionBzip2 = "bzip2"
	CompressionZlib  = "zlib"
	CompressionZstd  = "zstd"
)

// Encoder is the encoding side of one open file. Finish writes any trailing
// metadata; it does not close the underlying file.
type Encoder interface {
	io.Writer
	Finish() error
}

// CompressionCodec wraps the raw sink of the currently open file. A fresh
// Encoder is created for every file, so no codec state crosses a rotation
// and every finished file is a complete, standalone stream.
type CompressionCodec interface {
	Name() string
	Wrap(w io.Writer) (Encoder, error)
}

// CodecFor returns the codec for a compression mode.
func CodecFor(mode string) CompressionCodec {
	switch mode {
	case CompressionGzip:
		return gzipCodec{}
	case CompressionBzip2:
		return bzip2Codec{}
	case CompressionZlib:
		return zlibCodec{}
	case CompressionZstd:
		return zstdCodec{}
	}
	return plainCodec{}
}

type plainCodec struct{}

func (plainCodec) Name() string { return CompressionNone }

func (plainCodec) Wrap(w io.Writer) (Encoder, error) { return plainEncoder{w}, nil }

type plainEncoder struct{ io.Writer }

func (plainEncoder) Finish() error { return nil }

// streamEncoder adapts a compressing io.WriteCloser whose Close finalizes
// the stream without closing the destination.
type streamEncoder struct {
	codec string
	wc    io.WriteCloser
}

func (e *streamEncoder) Write(p []byte) (int, error) {
	n, err := e.wc.Write(p)
	if err != nil {
		return n, &CodecError{Codec: e.codec, Op: "write", Err: err}
	}
	return n, nil
}

// Flush pushes buffered data to the destination without ending the stream.
func (e *streamEncoder) Flush() error {
	f, ok := e.wc.(interface{ Flush() error })
	if !ok {
		return nil
	}
	if err := f.Flush(); err != nil {
		return &CodecError{Codec: e.codec, Op: "flush", Err: err}
	}
	return nil
}

func (e *streamEncoder) Finish() error {
	if err := e.wc.Close(); err != nil {
		return &CodecError{Codec: e.codec, Op: "finish", Err: err}
	}
	return nil
}

// streamResumer is implemented by codecs whose standard decoder stops at the
// end of the first stream. Reopening a non-empty file rewrites its content
// into the new stream instead of appending a second one.
type streamResumer interface {
	CompressionCodec
	Decode(r io.Reader) ([]byte, error)
}

type gzipCodec struct{}

func (gzipCodec) Name() string { return CompressionGzip }

func (gzipCodec) Wrap(w io.Writer) (Encoder, error) {
	return &streamEncoder{codec: CompressionGzip, wc: gzip.NewWriter(w)}, nil
}

type zlibCodec struct{}

func (zlibCodec) Name() string { return CompressionZlib }

func (zlibCodec) Wrap(w io.Writer) (Encoder, error) {
	return &streamEncoder{codec: CompressionZlib, wc: zlib.NewWriter(w)}, nil
}

// Decode returns the content of every zlib stream in r, in order.
func (zlibCodec) Decode(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var out bytes.Buffer
	for {
		if _, err := br.Peek(1); errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		} else if err != nil {
			return nil, &CodecError{Codec: CompressionZlib, Op: "resume", Err: err}
		}

		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, &CodecError{Codec: CompressionZlib, Op: "resume", Err: err}
		}
		_, err = io.Copy(&out, zr)
		_ = zr.Close()
		if err != nil {
			return nil, &CodecError{Codec: CompressionZlib, Op: "resume", Err: err}
		}
	}
}

type bzip2Codec struct{}

func (bzip2Codec) Name() string { return CompressionBzip2 }

func (bzip2Codec) Wrap(w io.Writer) (Encoder, error) {
	bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		return nil, &CodecError{Codec: CompressionBzip2, Op: "init", Err: err}
	}
	return &streamEncoder{codec: CompressionBzip2, wc: bw}, nil
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return CompressionZstd }

func (zstdCodec) Wrap(w io.Writer) (Encoder, error) {
	// An empty file still holds one complete frame.
	zw, err := zstd.NewWriter(w, zstd.WithZeroFrames(true))
	if err != nil {
		return nil, &CodecError{Codec: CompressionZstd, Op: "init", Err: err}
	}
	return &streamEncoder{codec: CompressionZstd, wc: zw}, nil
}
