// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

// ReadResult is one completed or rejected async read.
type ReadResult struct {
	// Err is set when the request was rejected; Data is nil then.
	Err error
	// Data holds exactly the requested bytes on success.
	Data []byte
}

// ReadAsync reads length bytes at offset without blocking the calling
// goroutine. The range is validated synchronously: an out-of-bounds
// request is rejected immediately and never reaches the pool. Valid
// requests get a pre-allocated destination buffer, are copied on the
// pool, and deliver exactly one result on the returned channel. The
// handle stays referenced until the job completes, so a dispatched read
// survives Close. Cancellation is not supported.
func (a *Archive) ReadAsync(offset, length uint64) <-chan ReadResult {
	result := make(chan ReadResult, 1)

	if a == nil {
		result <- ReadResult{Err: ErrNilArchive}
		return result
	}
	if err := a.acquire(); err != nil {
		result <- ReadResult{Err: err}
		return result
	}
	if err := a.rangeCheck(offset, length); err != nil {
		a.release()
		result <- ReadResult{Err: err}
		return result
	}

	// The worker only fills memory it was handed; ownership of buf moves
	// to the receiver with the result.
	buf := make([]byte, length)
	a.pool.Post(func() {
		err := a.copyRange(buf, offset)
		a.release()

		if err != nil {
			result <- ReadResult{Err: err}
			return
		}

		result <- ReadResult{Data: buf}
	})

	return result
}
