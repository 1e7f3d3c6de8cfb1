// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Embedkit
// Source: github.com/embedkit/asar

package asar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseIndex reads the archive index block and builds the directory tree.
func parseIndex(src ByteSource) (*node, uint64, error) {
	frame, err := parseIndexFrame(src)
	if err != nil {
		return nil, 0, err
	}

	root, err := decodeIndexJSON(frame.json, frame.dataBase)
	if err != nil {
		return nil, 0, err
	}

	return root, frame.dataBase, nil
}

// decodeIndexJSON decodes the serialized directory tree.
// Decoding walks tokens instead of unmarshalling into maps so that child
// order matches index declaration order.
func decodeIndexJSON(data []byte, dataBase uint64) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := decodeNode(dec, dataBase)
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if root.kind != nodeDir {
		return nil, fmt.Errorf("%w: index root carries no files object", ErrMalformed)
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after index object", ErrMalformed)
	}

	return root, nil
}

// decodeNode decodes one tree node object from the token stream.
func decodeNode(dec *json.Decoder, dataBase uint64) (*node, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var (
		dir       *node
		link      string
		integrity *Integrity
		size      uint64
		offsetRel uint64
		plainLen  uint64

		hasFiles, hasLink, hasSize, hasOffset, hasLen bool
		unpacked, executable, encrypted               bool
	)

	for dec.More() {
		key, err := decodeKey(dec)
		if err != nil {
			return nil, err
		}

		switch key {
		case "files":
			hasFiles = true
			dir, err = decodeChildren(dec, dataBase)
			if err != nil {
				return nil, err
			}
		case "link":
			hasLink = true
			link, err = decodeString(dec, key)
			if err != nil {
				return nil, err
			}
		case "size":
			hasSize = true
			size, err = decodeUint(dec, key)
			if err != nil {
				return nil, err
			}
		case "offset":
			// Offsets are stored as decimal strings because the format
			// predates safe 64-bit integers in its host environment.
			hasOffset = true
			raw, err := decodeString(dec, key)
			if err != nil {
				return nil, err
			}

			offsetRel, err = strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: offset %q", ErrMalformed, raw)
			}
		case "len":
			hasLen = true
			plainLen, err = decodeUint(dec, key)
			if err != nil {
				return nil, err
			}
		case "unpacked":
			unpacked, err = decodeBool(dec, key)
			if err != nil {
				return nil, err
			}
		case "executable":
			executable, err = decodeBool(dec, key)
			if err != nil {
				return nil, err
			}
		case "encrypted":
			encrypted, err = decodeBool(dec, key)
			if err != nil {
				return nil, err
			}
		case "integrity":
			integrity = new(Integrity)
			if err := dec.Decode(integrity); err != nil {
				return nil, fmt.Errorf("%w: integrity object: %w", ErrMalformed, err)
			}
		default:
			if err := skipJSONValue(dec); err != nil {
				return nil, err
			}
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	switch {
	case hasLink:
		if hasFiles || hasSize || hasOffset {
			return nil, fmt.Errorf("%w: link node carries file fields", ErrMalformed)
		}
		if link == "" {
			return nil, fmt.Errorf("%w: empty link target", ErrMalformed)
		}

		return &node{kind: nodeLink, link: link}, nil
	case hasFiles:
		if unpacked {
			markUnpacked(dir)
		}

		return dir, nil
	case hasSize:
		info := FileInfo{
			Size:       size,
			Len:        plainLen,
			Unpacked:   unpacked,
			Executable: executable,
			Encrypted:  encrypted,
			Integrity:  integrity,
		}

		if encrypted && !hasLen {
			return nil, fmt.Errorf("%w: encrypted entry without plaintext length", ErrMalformed)
		}

		if !unpacked {
			if !hasOffset {
				return nil, fmt.Errorf("%w: packed entry without offset", ErrMalformed)
			}

			abs := dataBase + offsetRel
			if abs < dataBase || abs+size < abs {
				return nil, fmt.Errorf("%w: entry offset overflows", ErrMalformed)
			}

			info.Offset = abs
		}

		return &node{kind: nodeFile, info: info}, nil
	default:
		return nil, fmt.Errorf("%w: node without kind fields", ErrMalformed)
	}
}

// decodeChildren decodes the ordered child object of a directory node.
func decodeChildren(dec *json.Decoder, dataBase uint64) (*node, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	dir := newDirNode()
	for dec.More() {
		name, err := decodeKey(dec)
		if err != nil {
			return nil, err
		}

		if err := validateChildName(name); err != nil {
			return nil, err
		}
		if _, exists := dir.byName[name]; exists {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrMalformed, name)
		}

		child, err := decodeNode(dec, dataBase)
		if err != nil {
			return nil, err
		}

		dir.addChild(name, child)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	return dir, nil
}

// validateChildName rejects names that cannot be path components.
func validateChildName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: entry name %q", ErrMalformed, name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: entry name %q contains separator", ErrMalformed, name)
	}

	return nil
}

// markUnpacked marks all file descendants of an unpacked directory.
func markUnpacked(n *node) {
	switch n.kind {
	case nodeFile:
		n.info.Unpacked = true
		n.info.Offset = 0
	case nodeDir:
		for i := range n.children {
			markUnpacked(n.children[i].child)
		}
	}
}

// expectDelim consumes one JSON delimiter token.
func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	delim, ok := tok.(json.Delim)
	if !ok || delim != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrMalformed, want.String(), tok)
	}

	return nil
}

// decodeKey consumes one object key token.
func decodeKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: object key %v", ErrMalformed, tok)
	}

	return key, nil
}

// decodeString consumes one string value token.
func decodeString(dec *json.Decoder, key string) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q must be a string", ErrMalformed, key)
	}

	return s, nil
}

// decodeBool consumes one boolean value token.
func decodeBool(dec *json.Decoder, key string) (bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	b, ok := tok.(bool)
	if !ok {
		return false, fmt.Errorf("%w: field %q must be a boolean", ErrMalformed, key)
	}

	return b, nil
}

// decodeUint consumes one non-negative integer value token.
func decodeUint(dec *json.Decoder, key string) (uint64, error) {
	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	num, ok := tok.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: field %q must be a number", ErrMalformed, key)
	}

	v, err := strconv.ParseUint(num.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q value %s", ErrMalformed, key, num)
	}

	return v, nil
}

// skipJSONValue consumes one value of any shape from the token stream.
func skipJSONValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}

		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}

		if depth == 0 {
			return nil
		}
	}
}
