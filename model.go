// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import "github.com/woozymasta/pathrules"

// Internal binary layout and format limits.
const (
	// sizePickleLen is the fixed size of the leading size pickle.
	sizePickleLen = 8
	// pickleWordLen is the pickle alignment and integer width in bytes.
	pickleWordLen = 4
	// maxIndexSize caps the declared index block size (256 MiB).
	maxIndexSize = 256 << 20
	// maxLinkDepth bounds link substitutions during path resolution.
	maxLinkDepth = 32
	// unpackedSuffix is appended to the archive path for loose payloads.
	unpackedSuffix = ".unpacked"
)

// FileInfo describes where and how one file entry is stored.
type FileInfo struct {
	// Integrity holds optional payload hashes recorded in the index.
	Integrity *Integrity `json:"integrity,omitempty" yaml:"integrity,omitempty"`
	// Size is stored payload size in bytes.
	Size uint64 `json:"size" yaml:"size"`
	// Offset is absolute payload offset in the archive file.
	// Meaningless for unpacked entries.
	Offset uint64 `json:"offset" yaml:"offset"`
	// Len is decrypted plaintext length for encrypted entries; zero otherwise.
	Len uint64 `json:"len,omitempty" yaml:"len,omitempty"`
	// Unpacked reports that payload lives in a loose file beside the archive.
	Unpacked bool `json:"unpacked,omitempty" yaml:"unpacked,omitempty"`
	// Executable reports that the entry should carry the executable bit.
	Executable bool `json:"executable,omitempty" yaml:"executable,omitempty"`
	// Encrypted reports that stored payload is a packed ciphertext.
	Encrypted bool `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
}

// Integrity holds payload hashes recorded in the index for one file.
type Integrity struct {
	// Algorithm names the hash algorithm; only "SHA256" is recognized.
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	// Hash is hex digest of the whole payload.
	Hash string `json:"hash" yaml:"hash"`
	// Blocks are hex digests of consecutive BlockSize chunks.
	Blocks []string `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	// BlockSize is chunk size in bytes for Blocks.
	BlockSize uint64 `json:"blockSize,omitempty" yaml:"blockSize,omitempty"`
}

// Stats is a derived metadata view of one index node.
// Exactly one of IsFile, IsDirectory, IsLink is true.
type Stats struct {
	// Size is payload size for files; zero for directories and links.
	Size uint64 `json:"size" yaml:"size"`
	// Offset is absolute payload offset for packed files; zero otherwise.
	Offset uint64 `json:"offset" yaml:"offset"`
	// IsFile reports a regular file node.
	IsFile bool `json:"is_file" yaml:"is_file"`
	// IsDirectory reports a directory node.
	IsDirectory bool `json:"is_directory" yaml:"is_directory"`
	// IsLink reports a link node.
	IsLink bool `json:"is_link" yaml:"is_link"`
}

// Pool schedules one blocking job off the caller goroutine.
// Jobs are independent; no completion order is guaranteed across jobs.
type Pool interface {
	Post(job func())
}

// goroutinePool is the default Pool backed by plain goroutines.
type goroutinePool struct{}

// Post runs job on its own goroutine.
func (goroutinePool) Post(job func()) {
	go job()
}

// OpenOptions configures archive open behavior.
type OpenOptions struct {
	// Pool runs offloaded async read jobs. Defaults to plain goroutines.
	Pool Pool `json:"-" yaml:"-"`
	// Codec decrypts encrypted entries in ReadFile. Defaults to the
	// compiled-in asset codec.
	Codec *Codec `json:"-" yaml:"-"`
}

// ExtractOptions configures ExtractAll behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(path string, written int64, outputPath string) `json:"-" yaml:"-"`
	// Filter defines ordered path rules selecting entries to extract.
	// Empty rule set means extract everything.
	Filter []pathrules.Rule `json:"filter,omitempty" yaml:"filter,omitempty"`
	// FilterMatcherOptions control filter rule matching.
	FilterMatcherOptions pathrules.MatcherOptions `json:"filter_matcher_options,omitzero" yaml:"filter_matcher_options,omitzero"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// Decrypt runs the archive codec over encrypted entries so extracted
	// files hold plaintext instead of packed ciphertext.
	Decrypt bool `json:"decrypt,omitempty" yaml:"decrypt,omitempty"`
}

// applyDefaults fills zero-valued open options with defaults.
func (opts *OpenOptions) applyDefaults() {
	if opts.Pool == nil {
		opts.Pool = goroutinePool{}
	}

	if opts.Codec == nil {
		opts.Codec = defaultCodec
	}
}
