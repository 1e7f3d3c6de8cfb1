// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import "errors"

// Sentinel errors for asar operations. Use errors.Is in callers.
var (
	// ErrNotFound means the archive file does not exist.
	ErrNotFound = errors.New("archive file not found")
	// ErrTruncated means the archive is shorter than its header declares.
	ErrTruncated = errors.New("archive is truncated")
	// ErrMalformed means the archive index violates structural invariants.
	ErrMalformed = errors.New("archive index is malformed")
	// ErrEntryNotFound means no entry exists at the requested virtual path.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNotADirectory means the entry at the requested path is not a directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrNotAFile means the entry at the requested path is not a regular file.
	ErrNotAFile = errors.New("not a file")
	// ErrTooManyLinks means link resolution exceeded the substitution cap.
	ErrTooManyLinks = errors.New("too many levels of symbolic links")
	// ErrOutOfBounds means a read range escapes the backing source.
	ErrOutOfBounds = errors.New("out of bounds read")
	// ErrInvalidEncoding means a packed payload is not valid base64.
	ErrInvalidEncoding = errors.New("invalid packed payload encoding")
	// ErrLengthMismatch means decoded ciphertext cannot cover the requested plaintext length.
	ErrLengthMismatch = errors.New("ciphertext and plaintext length mismatch")
	// ErrIntegrity means a stored payload does not match its recorded hashes.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrClosed means the archive handle is already closed.
	ErrClosed = errors.New("archive already closed")
	// ErrNilArchive means the archive handle is nil.
	ErrNilArchive = errors.New("archive is nil")
	// ErrInvalidExtractPath means an entry path is invalid for an extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidFilterPattern means one or more extraction filter rules are invalid.
	ErrInvalidFilterPattern = errors.New("invalid filter rules")
)
