// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

// nodeKind tags one directory tree node variant.
type nodeKind uint8

// Directory tree node kinds.
const (
	nodeFile nodeKind = iota + 1
	nodeDir
	nodeLink
)

// node is one entry of the immutable parsed directory tree.
// Exactly one variant is populated according to kind.
type node struct {
	// byName indexes children for lookup; kind == nodeDir.
	byName map[string]*node
	// link is target virtual path; kind == nodeLink.
	link string
	// children are kept in index order for deterministic listing; kind == nodeDir.
	children []childNode
	// info is file placement metadata; kind == nodeFile.
	info FileInfo
	// kind selects the populated variant.
	kind nodeKind
}

// childNode pairs one child name with its node in index order.
type childNode struct {
	name  string
	child *node
}

// newDirNode returns an empty directory node.
func newDirNode() *node {
	return &node{
		kind:   nodeDir,
		byName: make(map[string]*node),
	}
}

// addChild appends one named child preserving insertion order.
func (n *node) addChild(name string, child *node) {
	n.children = append(n.children, childNode{name: name, child: child})
	n.byName[name] = child
}

// lookup returns the named child of a directory node.
func (n *node) lookup(name string) (*node, bool) {
	if n.kind != nodeDir {
		return nil, false
	}

	child, ok := n.byName[name]
	return child, ok
}

// childNames returns child names in index order.
func (n *node) childNames() []string {
	names := make([]string, len(n.children))
	for i := range n.children {
		names[i] = n.children[i].name
	}

	return names
}

// stats derives the metadata view of this node.
func (n *node) stats() Stats {
	switch n.kind {
	case nodeFile:
		return Stats{Size: n.info.Size, Offset: n.info.Offset, IsFile: true}
	case nodeLink:
		return Stats{IsLink: true}
	default:
		return Stats{IsDirectory: true}
	}
}
