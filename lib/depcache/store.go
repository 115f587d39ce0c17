// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/bureau-release/lib/archive"
	"github.com/bureau-foundation/bureau-release/lib/cachekey"
	"github.com/bureau-foundation/bureau-release/lib/clock"
	"github.com/bureau-foundation/bureau-release/lib/codec"
)

const (
	payloadSuffix = ".payload"
	metaSuffix    = ".meta"
)

// Meta is the CBOR sidecar written next to each payload.
type Meta struct {
	Key         string      `cbor:"key"`
	Scope       string      `cbor:"scope"`
	Compression Compression `cbor:"compression"`
	Files       int         `cbor:"files"`
	Size        int64       `cbor:"size"`
	Digest      []byte      `cbor:"digest"`
	CreatedAt   time.Time   `cbor:"created_at"`
}

// Config configures a Store.
type Config struct {
	// Root is the cache directory. Created on first Put.
	Root string

	// Compression is the codec for new entries. Existing entries are
	// read with whatever codec their sidecar names.
	Compression Compression

	// Clock stamps CreatedAt. Defaults to the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Store is a dependency cache rooted at one directory. Safe for
// concurrent use by multiple goroutines and processes.
type Store struct {
	root        string
	compression Compression
	clock       clock.Clock
	logger      *slog.Logger
}

// New returns a store for config.Root.
func New(config Config) (*Store, error) {
	if config.Root == "" {
		return nil, errors.New("depcache: root is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		root:        config.Root,
		compression: config.Compression,
		clock:       config.Clock,
		logger:      config.Logger,
	}, nil
}

// Root returns the cache directory.
func (store *Store) Root() string { return store.root }

func (store *Store) paths(key cachekey.Key) (payloadPath, metaPath string) {
	stem := filepath.Join(store.root, key.Scope.String(), address(key.String()))
	return stem + payloadSuffix, stem + metaSuffix
}

// Stat returns the sidecar for key. The second result is false when
// there is no entry or the sidecar is unreadable.
func (store *Store) Stat(key cachekey.Key) (Meta, bool) {
	if key.IsZero() {
		return Meta{}, false
	}
	_, metaPath := store.paths(key)
	meta, err := readMeta(metaPath)
	if err != nil {
		return Meta{}, false
	}
	if meta.Key != key.String() {
		return Meta{}, false
	}
	return meta, true
}

func readMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	if err := codec.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return meta, nil
}

// Get restores the entry for key into destination. It returns false
// without error on a miss, including a zero key and a corrupt entry.
// Errors are reserved for failures writing destination.
func (store *Store) Get(ctx context.Context, key cachekey.Key, destination string) (bool, error) {
	if key.IsZero() {
		store.logger.Debug("cache lookup skipped", "scope", key.Scope.String())
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	meta, found := store.Stat(key)
	if !found {
		store.logger.Info("cache miss", "key", key.String())
		return false, nil
	}
	payloadPath, _ := store.paths(key)
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		store.logger.Warn("cache payload unreadable", "key", key.String(), "error", err)
		return false, nil
	}
	digest, err := hashPayload(bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	if !bytes.Equal(digest, meta.Digest) {
		store.logger.Warn("cache payload digest mismatch, ignoring entry", "key", key.String())
		return false, nil
	}

	reader, release, err := meta.Compression.decompressor(bytes.NewReader(payload))
	if err != nil {
		store.logger.Warn("cache payload codec unusable", "key", key.String(), "error", err)
		return false, nil
	}
	defer release()

	if err := os.MkdirAll(destination, 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", destination, err)
	}
	names, err := archive.ExtractTar(reader, destination)
	if err != nil {
		return false, fmt.Errorf("restoring %s into %s: %w", key, destination, err)
	}
	store.logger.Info("cache hit",
		"key", key.String(),
		"files", len(names),
		"bytes", meta.Size,
	)
	return true, nil
}

// Put stores the tree at source under key, replacing any existing
// entry. A zero key is a no-op.
func (store *Store) Put(ctx context.Context, key cachekey.Key, source string) error {
	if key.IsZero() {
		store.logger.Debug("cache write skipped", "scope", key.Scope.String())
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := archive.Walk(source)
	if err != nil {
		return fmt.Errorf("listing %s: %w", source, err)
	}

	payloadPath, metaPath := store.paths(key)
	directory := filepath.Dir(payloadPath)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	temporary, err := os.CreateTemp(directory, ".payload-*")
	if err != nil {
		return fmt.Errorf("creating temporary payload: %w", err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	hasher := payloadHasher()
	counter := &countingWriter{writer: io.MultiWriter(temporary, hasher)}
	compressor, err := store.compression.compressor(counter)
	if err != nil {
		temporary.Close()
		return err
	}
	files, err := archive.WriteTar(compressor, entries)
	if err != nil {
		compressor.Close()
		temporary.Close()
		return fmt.Errorf("archiving %s: %w", source, err)
	}
	if err := compressor.Close(); err != nil {
		temporary.Close()
		return fmt.Errorf("flushing %s payload: %w", store.compression, err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing temporary payload: %w", err)
	}

	meta := Meta{
		Key:         key.String(),
		Scope:       key.Scope.String(),
		Compression: store.compression,
		Files:       files,
		Size:        counter.written,
		Digest:      hasher.Sum(nil),
		CreatedAt:   store.clock.Now().UTC(),
	}
	metaBytes, err := codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding cache metadata: %w", err)
	}

	// Payload first: a reader that finds the new sidecar must find
	// the payload it describes.
	if err := os.Rename(temporaryPath, payloadPath); err != nil {
		return fmt.Errorf("installing payload: %w", err)
	}
	if err := writeFileAtomic(metaPath, metaBytes); err != nil {
		return fmt.Errorf("installing metadata: %w", err)
	}

	store.logger.Info("cache stored",
		"key", key.String(),
		"files", files,
		"bytes", counter.written,
		"compression", store.compression.String(),
	)
	return nil
}

// Remove deletes the entry for key. Removing a missing entry is not an
// error.
func (store *Store) Remove(key cachekey.Key) error {
	if key.IsZero() {
		return nil
	}
	payloadPath, metaPath := store.paths(key)
	for _, path := range []string{metaPath, payloadPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), ".meta-*")
	if err != nil {
		return err
	}
	defer os.Remove(temporary.Name())
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Close(); err != nil {
		return err
	}
	return os.Rename(temporary.Name(), path)
}

type countingWriter struct {
	writer  io.Writer
	written int64
}

func (counter *countingWriter) Write(p []byte) (int, error) {
	n, err := counter.writer.Write(p)
	counter.written += int64(n)
	return n, err
}
