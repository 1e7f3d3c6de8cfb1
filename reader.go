// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Archive provides read-only access to one parsed asar file.
//
// The backing source and directory tree are immutable after open, so all
// read paths are safe for concurrent use. The handle is reference-counted:
// in-flight async reads keep it alive past Close.
type Archive struct {
	// src is the backing byte source shared by all readers.
	src ByteSource
	// closer releases the source when the last reference drops.
	closer io.Closer
	// root is the parsed immutable directory tree.
	root *node
	// pool runs offloaded async read jobs.
	pool Pool
	// codec decrypts encrypted entries in ReadFile.
	codec *Codec
	// tmpFiles caches CopyFileOut results by resolved virtual path.
	tmpFiles map[string]string
	// path is the archive file path; empty for in-memory archives.
	path string
	// dataBase is absolute offset of the first payload byte.
	dataBase uint64
	// mu guards tmpFiles and the closed flag.
	mu sync.Mutex
	// refs counts live references; zero means released.
	refs atomic.Int64
	// closed reports whether Close was already called.
	closed bool
}

// Open opens and parses the archive at path.
func Open(path string) (*Archive, error) {
	return OpenWithOptions(path, OpenOptions{})
}

// OpenWithOptions opens and parses the archive at path using explicit options.
func OpenWithOptions(path string, opts OpenOptions) (*Archive, error) {
	src, err := openMmapSource(path)
	if err != nil {
		return nil, err
	}

	a, err := newArchive(src, src, path, opts)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	return a, nil
}

// NewFromBytes parses an archive already loaded into memory.
// Unpacked entries are unreachable without an on-disk archive path.
func NewFromBytes(data []byte) (*Archive, error) {
	return newArchive(newMemSource(data), nil, "", OpenOptions{})
}

// NewFromSource parses an archive from a caller-provided byte source.
// The source must stay valid until the last reference is released; close
// of the source remains the caller's responsibility.
func NewFromSource(src ByteSource, path string, opts OpenOptions) (*Archive, error) {
	return newArchive(src, nil, path, opts)
}

// newArchive parses the index and builds a live handle with one reference.
func newArchive(src ByteSource, closer io.Closer, path string, opts OpenOptions) (*Archive, error) {
	opts.applyDefaults()

	root, dataBase, err := parseIndex(src)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		src:      src,
		closer:   closer,
		root:     root,
		pool:     opts.Pool,
		codec:    opts.Codec,
		tmpFiles: make(map[string]string),
		path:     path,
		dataBase: dataBase,
	}
	a.refs.Store(1)
	return a, nil
}

// Path returns the archive file path; empty for in-memory archives.
func (a *Archive) Path() string {
	if a == nil {
		return ""
	}

	return a.path
}

// Close drops the caller's reference. The backing source is released only
// after all in-flight async reads complete. Close is idempotent.
func (a *Archive) Close() error {
	if a == nil {
		return ErrNilArchive
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.release()
	return nil
}

// acquire takes one reference, failing once the handle is fully released.
func (a *Archive) acquire() error {
	for {
		refs := a.refs.Load()
		if refs <= 0 {
			return ErrClosed
		}

		if a.refs.CompareAndSwap(refs, refs+1) {
			return nil
		}
	}
}

// release drops one reference and tears the handle down at zero.
func (a *Archive) release() {
	if a.refs.Add(-1) != 0 {
		return
	}

	a.mu.Lock()
	tmpFiles := a.tmpFiles
	a.tmpFiles = nil
	a.mu.Unlock()

	for _, path := range tmpFiles {
		_ = os.Remove(path)
	}

	if a.closer != nil {
		_ = a.closer.Close()
	}
}

// rangeCheck validates one read range against the backing source using
// overflow-checked arithmetic. Every byte leaving the archive passes this
// check before any memory is touched.
func (a *Archive) rangeCheck(offset, length uint64) error {
	end := offset + length
	if end < offset {
		return fmt.Errorf("%w: offset %d length %d overflows", ErrOutOfBounds, offset, length)
	}
	if end > uint64(a.src.Size()) {
		return fmt.Errorf("%w: range [%d, %d) exceeds source length %d", ErrOutOfBounds, offset, end, a.src.Size())
	}

	return nil
}

// copyRange fills dst from the backing source at offset.
// Callers must have validated the range with rangeCheck.
func (a *Archive) copyRange(dst []byte, offset uint64) error {
	if len(dst) == 0 {
		return nil
	}
	if offset > math.MaxInt64 {
		return fmt.Errorf("%w: offset %d", ErrOutOfBounds, offset)
	}

	n, err := a.src.ReadAt(dst, int64(offset))
	if err != nil && !(err == io.EOF && n == len(dst)) {
		return fmt.Errorf("read archive range: %w", err)
	}
	if n != len(dst) {
		return fmt.Errorf("read archive range: %w", io.ErrUnexpectedEOF)
	}

	return nil
}

// readRange performs one validated all-or-nothing copy from the source.
func (a *Archive) readRange(offset, length uint64) ([]byte, error) {
	if err := a.rangeCheck(offset, length); err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	if err := a.copyRange(buf, offset); err != nil {
		return nil, err
	}

	return buf, nil
}

// ReadSync reads length bytes at offset from the archive, blocking the
// calling goroutine for the duration of the copy.
func (a *Archive) ReadSync(offset, length uint64) ([]byte, error) {
	if a == nil {
		return nil, ErrNilArchive
	}
	if err := a.acquire(); err != nil {
		return nil, err
	}
	defer a.release()

	return a.readRange(offset, length)
}

// ReadFile reads the full visible content of the file entry at the given
// virtual path. Encrypted entries are decoded and decrypted; unpacked
// entries are read from their loose file.
func (a *Archive) ReadFile(vpath string) ([]byte, error) {
	if a == nil {
		return nil, ErrNilArchive
	}
	if err := a.acquire(); err != nil {
		return nil, err
	}
	defer a.release()

	resolved, info, err := a.resolveFile(vpath)
	if err != nil {
		return nil, err
	}

	raw, err := a.readEntryPayload(resolved, info)
	if err != nil {
		return nil, err
	}

	if !info.Encrypted {
		return raw, nil
	}

	if info.Len > uint64(math.MaxInt) {
		return nil, fmt.Errorf("%w: plaintext length %d", ErrLengthMismatch, info.Len)
	}

	return a.codec.DecodeBuffer(raw, int(info.Len))
}

// readEntryPayload reads the stored payload of one resolved file entry.
func (a *Archive) readEntryPayload(resolved string, info FileInfo) ([]byte, error) {
	if !info.Unpacked {
		return a.readRange(info.Offset, info.Size)
	}

	loosePath, err := a.unpackedPath(resolved)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(loosePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: loose file for %s", ErrEntryNotFound, resolved)
		}

		return nil, fmt.Errorf("read loose file for %s: %w", resolved, err)
	}

	return data, nil
}

// unpackedPath maps a resolved virtual path to its loose file beside the archive.
func (a *Archive) unpackedPath(resolved string) (string, error) {
	if a.path == "" {
		return "", fmt.Errorf("%w: in-memory archive has no loose file root", ErrEntryNotFound)
	}

	return filepath.Join(a.path+unpackedSuffix, filepath.FromSlash(resolved)), nil
}
