// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/woozymasta/pathrules"
	"golang.org/x/sync/errgroup"
)

// CopyFileOut materializes the file entry at vpath as an independent
// loose file on disk and returns its path. Unpacked entries resolve to
// their existing loose file beside the archive. Packed entries are copied
// into a temporary file once per resolved path per handle; the copies are
// removed when the last reference to the handle drops. The copy holds the
// stored payload: encrypted entries are not decrypted.
func (a *Archive) CopyFileOut(vpath string) (string, error) {
	if a == nil {
		return "", ErrNilArchive
	}
	if err := a.acquire(); err != nil {
		return "", err
	}
	defer a.release()

	resolved, info, err := a.resolveFile(vpath)
	if err != nil {
		return "", err
	}

	if info.Unpacked {
		loosePath, err := a.unpackedPath(resolved)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(loosePath); err != nil {
			return "", fmt.Errorf("%w: loose file for %s", ErrEntryNotFound, resolved)
		}

		return loosePath, nil
	}

	a.mu.Lock()
	cached, ok := a.tmpFiles[resolved]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	data, err := a.readRange(info.Offset, info.Size)
	if err != nil {
		return "", err
	}

	tmpPath, err := writeTempCopy(data, info.Executable)
	if err != nil {
		return "", fmt.Errorf("copy out %s: %w", resolved, err)
	}

	a.mu.Lock()
	if winner, ok := a.tmpFiles[resolved]; ok {
		// Lost a concurrent race for the same entry; keep the first copy.
		a.mu.Unlock()
		_ = os.Remove(tmpPath)
		return winner, nil
	}
	if a.tmpFiles == nil {
		// Handle fully released while copying; do not leak the temp file.
		a.mu.Unlock()
		_ = os.Remove(tmpPath)
		return "", ErrClosed
	}
	a.tmpFiles[resolved] = tmpPath
	a.mu.Unlock()

	return tmpPath, nil
}

// writeTempCopy writes payload bytes into a fresh temporary file.
func writeTempCopy(data []byte, executable bool) (string, error) {
	f, err := os.CreateTemp("", "asar-")
	if err != nil {
		return "", err
	}

	tmpPath := f.Name()
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil && executable {
		writeErr = os.Chmod(tmpPath, 0o755)
	}
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return "", writeErr
	}

	return tmpPath, nil
}

// extractItem is one selected entry with prepared output relative paths.
type extractItem struct {
	vpath    string
	resolved string
	relPath  string
	relDir   string
	info     FileInfo
}

// ExtractAll writes file entries of the archive to dstDir. Extraction is
// parallelized by MaxWorkers; on failure it returns the first encountered
// error. Links are materialized as regular files holding target content;
// dangling links are skipped.
func (a *Archive) ExtractAll(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if a == nil {
		return ErrNilArchive
	}
	if err := a.acquire(); err != nil {
		return err
	}
	defer a.release()

	matcher, err := newExtractMatcher(opts.Filter, opts.FilterMatcherOptions)
	if err != nil {
		return err
	}

	items, err := a.collectExtractItems(matcher)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := prepareExtractDirs(dstRootAbs, items); err != nil {
		return err
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			return a.extractItem(dstRootAbs, item, opts)
		})
	}

	return g.Wait()
}

// collectExtractItems walks the tree in index order and selects entries to extract.
func (a *Archive) collectExtractItems(matcher *extractMatcher) ([]extractItem, error) {
	var items []extractItem

	var walk func(n *node, prefix string) error
	walk = func(n *node, prefix string) error {
		for _, child := range n.children {
			vpath := child.name
			if prefix != "" {
				vpath = prefix + "/" + child.name
			}

			switch child.child.kind {
			case nodeDir:
				if err := walk(child.child, vpath); err != nil {
					return err
				}
			case nodeFile, nodeLink:
				if !matcher.Match(vpath) {
					continue
				}

				resolved, info, err := a.resolveFile(vpath)
				if err != nil {
					if child.child.kind == nodeLink {
						continue // dangling link
					}

					return err
				}

				relPath, err := extractRelPath(vpath)
				if err != nil {
					return err
				}

				relDir := filepath.Dir(relPath)
				if relDir == "." {
					relDir = ""
				}

				items = append(items, extractItem{
					vpath:    vpath,
					resolved: resolved,
					relPath:  relPath,
					relDir:   relDir,
					info:     info,
				})
			}
		}

		return nil
	}

	if err := walk(a.root, ""); err != nil {
		return nil, err
	}

	return items, nil
}

// prepareExtractDirs creates all unique parent directories needed by items.
func prepareExtractDirs(dstRootAbs string, items []extractItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.relDir == "" {
			continue
		}

		dirPath := filepath.Join(dstRootAbs, item.relDir)
		if _, exists := seen[dirPath]; exists {
			continue
		}

		seen[dirPath] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}
	}

	return nil
}

// extractItem writes one selected entry below the destination root.
func (a *Archive) extractItem(dstRootAbs string, item extractItem, opts ExtractOptions) error {
	data, err := a.readEntryPayload(item.resolved, item.info)
	if err != nil {
		return err
	}

	if opts.Decrypt && item.info.Encrypted {
		if item.info.Len > uint64(math.MaxInt) {
			return fmt.Errorf("%w: plaintext length %d", ErrLengthMismatch, item.info.Len)
		}

		data, err = a.codec.DecodeBuffer(data, int(item.info.Len))
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", item.vpath, err)
		}
	}

	perm := os.FileMode(0o644)
	if item.info.Executable {
		perm = 0o755
	}

	outPath := filepath.Join(dstRootAbs, item.relPath)
	if err := os.WriteFile(outPath, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", item.vpath, err)
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(item.vpath, int64(len(data)), outPath)
	}

	return nil
}

// extractRelPath converts a virtual path into a safe relative fs path.
// Parsed component names never contain separators or dot segments, so
// this is a defense against future format extensions, not a repair pass.
func extractRelPath(vpath string) (string, error) {
	if vpath == "" || strings.ContainsRune(vpath, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidExtractPath, vpath)
	}

	for _, part := range strings.Split(vpath, "/") {
		switch part {
		case "", ".", "..":
			return "", fmt.Errorf("%w: %q", ErrInvalidExtractPath, vpath)
		}
	}

	return filepath.FromSlash(vpath), nil
}

// extractMatcher holds compiled path rules selecting entries to extract.
type extractMatcher struct {
	matcher *pathrules.Matcher
}

// newExtractMatcher compiles extraction path rules. A nil matcher selects
// every entry.
func newExtractMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*extractMatcher, error) {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := NormalizePath(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	if len(normalized) == 0 {
		return nil, nil
	}

	if opts == (pathrules.MatcherOptions{}) {
		opts = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}
	if opts.DefaultAction == pathrules.ActionUnknown {
		opts.DefaultAction = pathrules.ActionExclude
	}

	matcher, err := pathrules.NewMatcher(normalized, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidFilterPattern, err)
	}

	return &extractMatcher{matcher: matcher}, nil
}

// Match reports whether vpath is selected for extraction.
func (m *extractMatcher) Match(vpath string) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	return m.matcher.Included(vpath, false)
}
