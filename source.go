// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// ByteSource provides random access to the raw archive bytes.
// Implementations must be safe for concurrent ReadAt calls; the archive
// never mutates the source after open.
type ByteSource interface {
	io.ReaderAt
	// Size returns total source length in bytes.
	Size() int64
}

// mmapSource wraps a memory-mapped archive file.
type mmapSource struct {
	r *mmap.ReaderAt
}

// openMmapSource memory-maps the archive file at path.
func openMmapSource(path string) (*mmapSource, error) {
	r, err := mmap.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("map archive: %w", err)
	}

	return &mmapSource{r: r}, nil
}

// ReadAt implements io.ReaderAt over the mapped region.
func (s *mmapSource) ReadAt(p []byte, off int64) (int, error) {
	return s.r.ReadAt(p, off)
}

// Size returns the mapped file length.
func (s *mmapSource) Size() int64 {
	return int64(s.r.Len())
}

// Close unmaps the file.
func (s *mmapSource) Close() error {
	return s.r.Close()
}

// memSource serves archive bytes from memory.
type memSource struct {
	r    *bytes.Reader
	size int64
}

// newMemSource wraps data without copying it.
func newMemSource(data []byte) *memSource {
	return &memSource{r: bytes.NewReader(data), size: int64(len(data))}
}

// ReadAt implements io.ReaderAt over the buffer.
func (s *memSource) ReadAt(p []byte, off int64) (int, error) {
	return s.r.ReadAt(p, off)
}

// Size returns the buffer length.
func (s *memSource) Size() int64 {
	return s.size
}
