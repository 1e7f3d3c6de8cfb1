package asar

import (
	"errors"
	"testing"
)

func TestDecodeIndexJSON_Malformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		json string
	}{
		{"link with size", `{"files":{"x":{"link":"a","size":3}}}`},
		{"link with files", `{"files":{"x":{"link":"a","files":{}}}}`},
		{"empty link target", `{"files":{"x":{"link":""}}}`},
		{"packed file without offset", `{"files":{"x":{"size":3}}}`},
		{"encrypted without len", `{"files":{"x":{"size":3,"offset":"0","encrypted":true}}}`},
		{"node without kind fields", `{"files":{"x":{"executable":true}}}`},
		{"numeric offset", `{"files":{"x":{"size":3,"offset":7}}}`},
		{"negative size", `{"files":{"x":{"size":-1,"offset":"0"}}}`},
		{"non-integer size", `{"files":{"x":{"size":1.5,"offset":"0"}}}`},
		{"offset not a number", `{"files":{"x":{"size":3,"offset":"abc"}}}`},
		{"empty name", `{"files":{"":{"size":3,"offset":"0"}}}`},
		{"dot name", `{"files":{".":{"size":3,"offset":"0"}}}`},
		{"dotdot name", `{"files":{"..":{"size":3,"offset":"0"}}}`},
		{"name with slash", `{"files":{"a/b":{"size":3,"offset":"0"}}}`},
		{"name with backslash", `{"files":{"a\\b":{"size":3,"offset":"0"}}}`},
		{"duplicate name", `{"files":{"x":{"size":1,"offset":"0"},"x":{"size":2,"offset":"1"}}}`},
		{"files not an object", `{"files":[]}`},
		{"trailing data", `{"files":{}} 1`},
		{"offset overflows", `{"files":{"x":{"size":1,"offset":"18446744073709551615"}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := decodeIndexJSON([]byte(tc.json), 64); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecodeIndexJSON_UnknownFieldsIgnored(t *testing.T) {
	t.Parallel()

	js := `{"files":{"x":{"size":3,"offset":"2","mtime":123,"extra":{"nested":[1,2]}}}}`
	root, err := decodeIndexJSON([]byte(js), 64)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	n, ok := root.lookup("x")
	if !ok || n.kind != nodeFile {
		t.Fatal("entry x missing")
	}
	if n.info.Offset != 66 || n.info.Size != 3 {
		t.Fatalf("info = %+v", n.info)
	}
}

func TestDecodeIndexJSON_AbsoluteOffsets(t *testing.T) {
	t.Parallel()

	js := `{"files":{"a":{"size":5,"offset":"0"},"b":{"size":2,"offset":"5"}}}`
	root, err := decodeIndexJSON([]byte(js), 100)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	a, _ := root.lookup("a")
	b, _ := root.lookup("b")
	if a.info.Offset != 100 {
		t.Fatalf("a offset = %d, want 100", a.info.Offset)
	}
	if b.info.Offset != 105 {
		t.Fatalf("b offset = %d, want 105", b.info.Offset)
	}
}

func TestDecodeIndexJSON_UnpackedDirectoryPropagates(t *testing.T) {
	t.Parallel()

	js := `{"files":{"d":{"files":{"f":{"size":3,"unpacked":true},"g":{"size":1,"offset":"0"}},"unpacked":true}}}`
	root, err := decodeIndexJSON([]byte(js), 64)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	d, _ := root.lookup("d")
	for _, name := range []string{"f", "g"} {
		n, ok := d.lookup(name)
		if !ok {
			t.Fatalf("child %s missing", name)
		}
		if !n.info.Unpacked {
			t.Fatalf("child %s not marked unpacked", name)
		}
		if n.info.Offset != 0 {
			t.Fatalf("child %s keeps packed offset %d", name, n.info.Offset)
		}
	}
}

func TestDecodeIndexJSON_Integrity(t *testing.T) {
	t.Parallel()

	js := `{"files":{"x":{"size":3,"offset":"0","integrity":{"algorithm":"SHA256","hash":"aa","blockSize":4,"blocks":["bb","cc"]}}}}`
	root, err := decodeIndexJSON([]byte(js), 64)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	n, _ := root.lookup("x")
	ig := n.info.Integrity
	if ig == nil {
		t.Fatal("integrity missing")
	}
	if ig.Algorithm != "SHA256" || ig.Hash != "aa" || ig.BlockSize != 4 || len(ig.Blocks) != 2 {
		t.Fatalf("integrity = %+v", ig)
	}
}

func TestParseIndexFrame_Bounds(t *testing.T) {
	t.Parallel()

	valid := wrapTestIndex([]byte(`{"files":{}}`), nil)

	if _, err := parseIndexFrame(newMemSource(valid)); err != nil {
		t.Fatalf("valid frame: %v", err)
	}

	// Declared header pickle larger than the file.
	truncated := append([]byte(nil), valid...)
	truncated[4] = 0xFF
	if _, err := parseIndexFrame(newMemSource(truncated)); !errors.Is(err, ErrTruncated) {
		t.Fatalf("oversized header: %v", err)
	}

	// Declared JSON length escaping the pickle payload.
	badLen := append([]byte(nil), valid...)
	badLen[12] = 0xFF
	if _, err := parseIndexFrame(newMemSource(badLen)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("oversized json length: %v", err)
	}
}
