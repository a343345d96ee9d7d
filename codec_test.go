// codec_test.go: Tests for compression codecs
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecFor(t *testing.T) {
	for _, mode := range []string{CompressionNone, CompressionGzip, CompressionBzip2, CompressionZlib, CompressionZstd} {
		assert.Equal(t, mode, CodecFor(mode).Name())
	}
	assert.Equal(t, CompressionNone, CodecFor("").Name())
}

func TestCodec_RoundTrip(t *testing.T) {
	payload := strings.Repeat(testLine, 200)

	for _, mode := range []string{CompressionNone, CompressionGzip, CompressionBzip2, CompressionZlib, CompressionZstd} {
		t.Run(mode, func(t *testing.T) {
			var buf bytes.Buffer
			enc, err := CodecFor(mode).Wrap(&buf)
			require.NoError(t, err)

			for i := 0; i < 200; i++ {
				n, err := enc.Write([]byte(testLine))
				require.NoError(t, err)
				assert.Equal(t, len(testLine), n)
			}
			require.NoError(t, enc.Finish())

			if mode != CompressionNone {
				assert.Less(t, buf.Len(), len(payload), "repetitive input should shrink")
			}

			got, err := io.ReadAll(decoderFor(t, mode, &buf))
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestCodec_EmptyStreamIsValid(t *testing.T) {
	for _, mode := range []string{CompressionGzip, CompressionBzip2, CompressionZlib, CompressionZstd} {
		t.Run(mode, func(t *testing.T) {
			var buf bytes.Buffer
			enc, err := CodecFor(mode).Wrap(&buf)
			require.NoError(t, err)
			require.NoError(t, enc.Finish())

			got, err := io.ReadAll(decoderFor(t, mode, &buf))
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

type failingWriter struct{}

var errDiskFull = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

func TestCodec_ErrorsAreCodecErrors(t *testing.T) {
	enc, err := CodecFor(CompressionGzip).Wrap(failingWriter{})
	require.NoError(t, err)

	// gzip buffers small writes; the failure surfaces on Finish at the latest
	_, werr := enc.Write([]byte(testLine))
	ferr := enc.Finish()
	err = errors.Join(werr, ferr)

	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, CompressionGzip, codecErr.Codec)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestZlibDecode_JoinsStreams(t *testing.T) {
	var buf bytes.Buffer
	for _, part := range []string{"first\n", "second\n", ""} {
		enc, err := CodecFor(CompressionZlib).Wrap(&buf)
		require.NoError(t, err)
		_, err = enc.Write([]byte(part))
		require.NoError(t, err)
		require.NoError(t, enc.Finish())
	}

	resumer, ok := CodecFor(CompressionZlib).(streamResumer)
	require.True(t, ok)

	got, err := resumer.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(got))

	got, err = resumer.Decode(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestZlibDecode_Invalid(t *testing.T) {
	resumer := CodecFor(CompressionZlib).(streamResumer)

	_, err := resumer.Decode(strings.NewReader("not a zlib stream"))
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, CompressionZlib, codecErr.Codec)
}

func TestOnlyZlibResumesStreams(t *testing.T) {
	for _, mode := range []string{CompressionNone, CompressionGzip, CompressionBzip2, CompressionZstd} {
		_, ok := CodecFor(mode).(streamResumer)
		assert.False(t, ok, mode)
	}
}
