// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

/*
Package asar provides read-only access to asar archives: single-file
containers holding many virtual files behind a JSON directory index.
The package parses the index into an immutable tree, resolves virtual
paths (including symlink chains), performs bounds-checked random-access
reads both synchronously and offloaded to a worker pool, extracts
entries to loose files, verifies recorded payload hashes, and decodes
the legacy encrypted-entry obfuscation (base64 + AES-128-ECB).

The archive is never written or mutated; the backing bytes and the
parsed tree are immutable after open, so concurrent reads need no
locking.

# Reading

Open an archive and read file content:

	a, err := asar.Open("app.asar")
	if err != nil {
	    return err
	}
	defer a.Close()

	data, err := a.ReadFile("lib/config.json")
	if err != nil {
	    return err
	}
	_ = data

ReadFile reads the loose file for unpacked entries and transparently
decrypts encrypted entries. For raw byte ranges, use the info from the
index and the read primitives:

	info, err := a.GetFileInfo("lib/config.json")
	if err != nil {
	    return err
	}
	raw, err := a.ReadSync(info.Offset, info.Size)

Asynchronous reads validate bounds up front and never block the caller:

	res := <-a.ReadAsync(info.Offset, info.Size)
	if res.Err != nil {
	    return res.Err
	}
	_ = res.Data

The handle is reference-counted: a read dispatched before Close runs to
completion against a still-mapped archive.

# Metadata

	stats, err := a.Stat("lib")          // kind and size of one node
	names, err := a.Readdir("lib")       // children in index order
	real, err := a.Realpath("lib/alias") // link-free virtual path

# Extracting

Materialize one entry as a loose file, or extract a filtered subtree
with parallel workers (filters use github.com/woozymasta/pathrules):

	path, err := a.CopyFileOut("bin/helper")

	err = a.ExtractAll(ctx, "out/", asar.ExtractOptions{
	    MaxWorkers: 4,
	    Filter: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "lib/**"},
	    },
	})

# Encrypted entries

Entries flagged encrypted store a base64-packed AES-128-ECB ciphertext;
the key is the MD5 digest of a compiled-in passphrase. This is asset
obfuscation, not confidentiality: ECB leaks identical plaintext blocks
and the key ships with every binary. The scheme is preserved exactly
for compatibility with existing archives. DecodeBuffer exposes the raw
transform when payload bytes were obtained out of band:

	plain, err := asar.DecodeBuffer(packed, plaintextLen)
*/
package asar
