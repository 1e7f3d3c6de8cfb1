// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"path"
	"strings"
)

// NormalizePath converts an external virtual path to normalized
// slash-separated form relative to the archive root. It accepts both "/"
// and "\" separators, resolves "." segments, and clamps ".." at the root.
// The archive root normalizes to "".
func NormalizePath(raw string) string {
	raw = strings.ReplaceAll(raw, `\`, "/")
	raw = path.Clean("/" + raw)

	return strings.TrimPrefix(raw, "/")
}

// splitVirtualPath splits a virtual path into normalized components.
func splitVirtualPath(raw string) []string {
	normalized := NormalizePath(raw)
	if normalized == "" {
		return nil
	}

	return strings.Split(normalized, "/")
}
