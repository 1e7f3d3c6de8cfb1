// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" //nolint:gosec // key schedule of the legacy asset format, not a security boundary
	"encoding/base64"
	"fmt"
)

// assetPassphrase is the compiled-in secret of the asset obfuscation
// scheme. The key schedule (MD5 over this passphrase) and cipher
// (AES-128-ECB) are fixed by existing archives; changing either breaks
// byte-for-byte compatibility. This is obfuscation, not confidentiality:
// ECB leaks identical plaintext blocks and the key ships in the binary.
const assetPassphrase = "testtesttesttest"

// defaultCodec decrypts entries of archives produced with the stock key.
var defaultCodec = mustNewCodec(assetPassphrase)

// Codec decodes and decrypts packed entry payloads.
// A Codec is stateless after construction and safe for concurrent use.
type Codec struct {
	block cipher.Block
}

// NewCodec derives a codec from a passphrase. The AES-128 key is the MD5
// digest of the passphrase.
func NewCodec(passphrase string) (*Codec, error) {
	key := md5.Sum([]byte(passphrase)) //nolint:gosec // fixed legacy key schedule
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("derive cipher: %w", err)
	}

	return &Codec{block: block}, nil
}

// mustNewCodec builds the compiled-in codec; the key width is constant.
func mustNewCodec(passphrase string) *Codec {
	c, err := NewCodec(passphrase)
	if err != nil {
		panic(err)
	}

	return c
}

// DecodeBuffer decodes a base64-packed payload and decrypts it in ECB
// mode, returning exactly plaintextLen bytes. The input must be aligned
// to the base64 alphabet (ErrInvalidEncoding otherwise) and must decode
// to enough whole cipher blocks to cover plaintextLen
// (ErrLengthMismatch otherwise).
func (c *Codec) DecodeBuffer(packed []byte, plaintextLen int) ([]byte, error) {
	if c == nil || c.block == nil {
		return nil, fmt.Errorf("%w: codec is not initialized", ErrInvalidEncoding)
	}
	if plaintextLen < 0 {
		return nil, fmt.Errorf("%w: negative plaintext length", ErrLengthMismatch)
	}
	if len(packed)%4 != 0 {
		return nil, fmt.Errorf("%w: packed length %d is not base64 aligned", ErrInvalidEncoding, len(packed))
	}

	ciphertext := make([]byte, base64.StdEncoding.DecodedLen(len(packed)))
	n, err := base64.StdEncoding.Decode(ciphertext, packed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}
	ciphertext = ciphertext[:n]

	blockSize := c.block.BlockSize()
	wholeBlocks := len(ciphertext) / blockSize
	needBlocks := (plaintextLen + blockSize - 1) / blockSize
	if needBlocks > wholeBlocks {
		return nil, fmt.Errorf("%w: %d ciphertext blocks cover at most %d bytes, want %d",
			ErrLengthMismatch, wholeBlocks, wholeBlocks*blockSize, plaintextLen)
	}

	// ECB: each block decrypts independently. Only blocks needed for the
	// requested plaintext are touched; the tail past plaintextLen is
	// cipher padding and never leaves this function.
	plaintext := make([]byte, needBlocks*blockSize)
	for i := 0; i < needBlocks*blockSize; i += blockSize {
		c.block.Decrypt(plaintext[i:i+blockSize], ciphertext[i:i+blockSize])
	}

	return plaintext[:plaintextLen], nil
}

// DecodeBuffer decodes and decrypts packed bytes with the compiled-in
// asset codec. See Codec.DecodeBuffer.
func DecodeBuffer(packed []byte, plaintextLen int) ([]byte, error) {
	return defaultCodec.DecodeBuffer(packed, plaintextLen)
}
