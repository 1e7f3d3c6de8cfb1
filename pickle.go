// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Archive files start with two nested pickle frames:
//
//	[u32 payloadSize=4][u32 headerSize]            size pickle, 8 bytes
//	[u32 payloadSize][u32 jsonLen][json][pad to 4] header pickle, headerSize bytes
//	[file payload bytes ...]
//
// All integers are little-endian. File payload offsets recorded in the
// JSON index are relative to 8 + headerSize.

// indexFrame is the parsed pickle framing of the archive index block.
type indexFrame struct {
	// json is the raw serialized directory tree.
	json []byte
	// dataBase is absolute offset of the first payload byte.
	dataBase uint64
}

// parseIndexFrame reads and validates the leading pickle framing.
func parseIndexFrame(src ByteSource) (indexFrame, error) {
	srcLen := src.Size()

	var head [16]byte
	if err := readSourceFull(src, head[:], 0, srcLen); err != nil {
		return indexFrame{}, fmt.Errorf("%w: short pickle framing", ErrTruncated)
	}

	if binary.LittleEndian.Uint32(head[0:4]) != pickleWordLen {
		return indexFrame{}, fmt.Errorf("%w: unexpected size pickle payload", ErrMalformed)
	}

	headerSize := binary.LittleEndian.Uint32(head[4:8])
	if headerSize < 3*pickleWordLen || headerSize > maxIndexSize {
		return indexFrame{}, fmt.Errorf("%w: header pickle size %d", ErrMalformed, headerSize)
	}
	if sizePickleLen+uint64(headerSize) > uint64(srcLen) {
		return indexFrame{}, fmt.Errorf("%w: header pickle exceeds file size", ErrTruncated)
	}

	payloadSize := binary.LittleEndian.Uint32(head[8:12])
	if payloadSize < pickleWordLen || uint64(payloadSize)+pickleWordLen > uint64(headerSize) {
		return indexFrame{}, fmt.Errorf("%w: header pickle payload size %d", ErrMalformed, payloadSize)
	}

	jsonLen := binary.LittleEndian.Uint32(head[12:16])
	if uint64(jsonLen) > uint64(payloadSize)-pickleWordLen {
		return indexFrame{}, fmt.Errorf("%w: index length %d exceeds pickle payload", ErrMalformed, jsonLen)
	}

	jsonBytes := make([]byte, jsonLen)
	if err := readSourceFull(src, jsonBytes, 2*sizePickleLen, srcLen); err != nil {
		return indexFrame{}, fmt.Errorf("%w: short index block", ErrTruncated)
	}

	return indexFrame{
		json:     jsonBytes,
		dataBase: sizePickleLen + uint64(headerSize),
	}, nil
}

// readSourceFull reads exactly len(dst) bytes at offset, checking source bounds first.
func readSourceFull(src ByteSource, dst []byte, offset int64, srcLen int64) error {
	if offset < 0 || offset+int64(len(dst)) > srcLen {
		return io.ErrUnexpectedEOF
	}

	n, err := src.ReadAt(dst, offset)
	if err != nil && !(err == io.EOF && n == len(dst)) {
		return err
	}
	if n != len(dst) {
		return io.ErrUnexpectedEOF
	}

	return nil
}
