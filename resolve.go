// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"fmt"
	"strings"
)

// resolveNode walks the tree to the node at vpath, substituting link
// targets as they are encountered. Link targets are relative to the
// archive root; substitutions are bounded by maxLinkDepth so cyclic links
// terminate with ErrTooManyLinks. When followLast is false the final
// component is returned as-is even when it is a link.
func (a *Archive) resolveNode(vpath string, followLast bool) (string, *node, error) {
	comps := splitVirtualPath(vpath)
	current := a.root
	resolved := make([]string, 0, len(comps))
	hops := 0

	for i := 0; i < len(comps); i++ {
		name := comps[i]
		if current.kind != nodeDir {
			return "", nil, fmt.Errorf("%w: %s", ErrNotADirectory, strings.Join(resolved, "/"))
		}

		child, ok := current.lookup(name)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrEntryNotFound, vpath)
		}

		last := i == len(comps)-1
		if child.kind == nodeLink && (followLast || !last) {
			hops++
			if hops > maxLinkDepth {
				return "", nil, fmt.Errorf("%w: %s", ErrTooManyLinks, vpath)
			}

			// Restart from the root with the target spliced in front of
			// the unconsumed components.
			target := splitVirtualPath(child.link)
			comps = append(append(make([]string, 0, len(target)+len(comps)-i-1), target...), comps[i+1:]...)
			current = a.root
			resolved = resolved[:0]
			i = -1
			continue
		}

		resolved = append(resolved, name)
		if last {
			return strings.Join(resolved, "/"), child, nil
		}

		current = child
	}

	return strings.Join(resolved, "/"), current, nil
}

// resolveFile resolves vpath to a regular file entry, following links.
func (a *Archive) resolveFile(vpath string) (string, FileInfo, error) {
	resolved, n, err := a.resolveNode(vpath, true)
	if err != nil {
		return "", FileInfo{}, err
	}
	if n.kind != nodeFile {
		return "", FileInfo{}, fmt.Errorf("%w: %s", ErrNotAFile, vpath)
	}

	return resolved, n.info, nil
}

// GetFileInfo returns placement metadata of the file entry at vpath,
// following links.
func (a *Archive) GetFileInfo(vpath string) (FileInfo, error) {
	if a == nil {
		return FileInfo{}, ErrNilArchive
	}

	_, info, err := a.resolveFile(vpath)
	return info, err
}

// Stat returns the metadata view of the node at vpath. Links are not
// followed for the final component, so a link reports IsLink.
func (a *Archive) Stat(vpath string) (Stats, error) {
	if a == nil {
		return Stats{}, ErrNilArchive
	}

	_, n, err := a.resolveNode(vpath, false)
	if err != nil {
		return Stats{}, err
	}

	return n.stats(), nil
}

// Readdir lists immediate child names of the directory at vpath in index
// declaration order, following links.
func (a *Archive) Readdir(vpath string) ([]string, error) {
	if a == nil {
		return nil, ErrNilArchive
	}

	_, n, err := a.resolveNode(vpath, true)
	if err != nil {
		return nil, err
	}
	if n.kind != nodeDir {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, vpath)
	}

	return n.childNames(), nil
}

// Realpath returns the fully link-substituted virtual path of the node at
// vpath. The archive root resolves to "".
func (a *Archive) Realpath(vpath string) (string, error) {
	if a == nil {
		return "", ErrNilArchive
	}

	resolved, _, err := a.resolveNode(vpath, true)
	if err != nil {
		return "", err
	}

	return resolved, nil
}
