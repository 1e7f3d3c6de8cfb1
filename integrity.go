// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// integrityAlgorithmSHA256 is the only hash algorithm the index records.
const integrityAlgorithmSHA256 = "SHA256"

// CheckIntegrity reads the stored payload of the file entry at vpath and
// verifies it against the hashes recorded in the index. Entries without
// integrity metadata verify trivially. The check covers the stored bytes:
// for encrypted entries that is the packed ciphertext, not the plaintext.
func (a *Archive) CheckIntegrity(vpath string) error {
	if a == nil {
		return ErrNilArchive
	}
	if err := a.acquire(); err != nil {
		return err
	}
	defer a.release()

	resolved, info, err := a.resolveFile(vpath)
	if err != nil {
		return err
	}
	if info.Integrity == nil {
		return nil
	}

	data, err := a.readEntryPayload(resolved, info)
	if err != nil {
		return err
	}

	return verifyIntegrity(vpath, data, info.Integrity)
}

// verifyIntegrity compares payload bytes against recorded hashes.
func verifyIntegrity(vpath string, data []byte, ig *Integrity) error {
	if !strings.EqualFold(ig.Algorithm, integrityAlgorithmSHA256) {
		return fmt.Errorf("%w: %s: unsupported algorithm %q", ErrIntegrity, vpath, ig.Algorithm)
	}

	if ig.Hash != "" {
		want, err := parseHexDigest(ig.Hash)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrIntegrity, vpath, err)
		}

		if digest.SHA256.FromBytes(data) != want {
			return fmt.Errorf("%w: %s: payload hash mismatch", ErrIntegrity, vpath)
		}
	}

	if len(ig.Blocks) == 0 {
		return nil
	}
	if ig.BlockSize == 0 {
		return fmt.Errorf("%w: %s: blocks without block size", ErrIntegrity, vpath)
	}

	blockCount := (uint64(len(data)) + ig.BlockSize - 1) / ig.BlockSize
	if len(data) == 0 {
		blockCount = 1
	}
	if uint64(len(ig.Blocks)) != blockCount {
		return fmt.Errorf("%w: %s: %d block hashes for %d blocks", ErrIntegrity, vpath, len(ig.Blocks), blockCount)
	}

	for i, blockHex := range ig.Blocks {
		start := uint64(i) * ig.BlockSize
		end := start + ig.BlockSize
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}

		want, err := parseHexDigest(blockHex)
		if err != nil {
			return fmt.Errorf("%w: %s: block %d: %w", ErrIntegrity, vpath, i, err)
		}

		if digest.SHA256.FromBytes(data[start:end]) != want {
			return fmt.Errorf("%w: %s: block %d hash mismatch", ErrIntegrity, vpath, i)
		}
	}

	return nil
}

// parseHexDigest converts an index hex hash into a validated digest value.
func parseHexDigest(hexHash string) (digest.Digest, error) {
	d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(hexHash))
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("hash %q: %w", hexHash, err)
	}

	return d, nil
}
