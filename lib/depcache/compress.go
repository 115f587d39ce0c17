// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depcache

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the payload codec. Values are written to
// sidecars and must not change.
type Compression uint8

const (
	// CompressionNone stores the tar stream as is.
	CompressionNone Compression = 0

	// CompressionLZ4 uses LZ4 frames: fast, lower ratio. Suits caches
	// that are restored far more often than written.
	CompressionLZ4 Compression = 1

	// CompressionZstd uses zstd at the default level. Registry
	// indexes and source crates are text-heavy and compress well.
	CompressionZstd Compression = 2
)

func (compression Compression) String() string {
	switch compression {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(compression))
	}
}

// ParseCompression parses a codec name from configuration.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown cache compression %q", name)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressor wraps writer with the codec. Closing the result flushes
// the codec but does not close writer.
func (compression Compression) compressor(writer io.Writer) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return nopWriteCloser{writer}, nil
	case CompressionLZ4:
		return lz4.NewWriter(writer), nil
	case CompressionZstd:
		// A single encoder goroutine keeps the output identical across
		// machines with different core counts.
		return zstd.NewWriter(writer, zstd.WithEncoderConcurrency(1))
	default:
		return nil, fmt.Errorf("unknown cache compression %d", uint8(compression))
	}
}

// decompressor wraps reader with the codec. The returned close
// function releases decoder resources.
func (compression Compression) decompressor(reader io.Reader) (io.Reader, func(), error) {
	switch compression {
	case CompressionNone:
		return reader, func() {}, nil
	case CompressionLZ4:
		return lz4.NewReader(reader), func() {}, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(reader, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return decoder, decoder.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache compression %d", uint8(compression))
	}
}
