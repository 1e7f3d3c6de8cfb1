package asar

import (
	"bytes"
	"crypto/aes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// testEntry describes one file to place into a built test archive.
// data holds the stored payload bytes, already packed for encrypted entries.
type testEntry struct {
	integrity  *Integrity
	path       string
	data       []byte
	plainLen   uint64
	unpacked   bool
	executable bool
	encrypted  bool
}

// testLink describes one link node to place into a built test archive.
type testLink struct {
	path   string
	target string
}

// testTreeNode is a mutable ordered tree used only to emit index JSON.
type testTreeNode struct {
	children map[string]*testTreeNode
	entry    *testEntry
	link     string
	names    []string
}

func newTestTreeDir() *testTreeNode {
	return &testTreeNode{children: make(map[string]*testTreeNode)}
}

func (n *testTreeNode) child(name string) *testTreeNode {
	if c, ok := n.children[name]; ok {
		return c
	}

	c := newTestTreeDir()
	n.children[name] = c
	n.names = append(n.names, name)
	return c
}

func (n *testTreeNode) place(t *testing.T, vpath string) *testTreeNode {
	t.Helper()

	parts := strings.Split(vpath, "/")
	cur := n
	for _, part := range parts {
		cur = cur.child(part)
	}

	return cur
}

// buildTestArchive assembles an archive blob with the given entries and
// links, preserving declaration order in the index.
func buildTestArchive(t *testing.T, entries []testEntry, links []testLink) []byte {
	t.Helper()

	root := newTestTreeDir()
	for i := range entries {
		root.place(t, entries[i].path).entry = &entries[i]
	}
	for _, link := range links {
		root.place(t, link.path).link = link.target
	}

	var payload bytes.Buffer
	var js bytes.Buffer
	emitTestNode(t, &js, root, &payload)

	return wrapTestIndex(js.Bytes(), payload.Bytes())
}

// emitTestNode writes one index node as JSON, appending packed payloads.
func emitTestNode(t *testing.T, js *bytes.Buffer, n *testTreeNode, payload *bytes.Buffer) {
	t.Helper()

	switch {
	case n.link != "":
		fmt.Fprintf(js, `{"link":%s}`, mustJSON(t, n.link))
	case n.entry != nil:
		e := n.entry
		js.WriteString(`{"size":`)
		fmt.Fprintf(js, "%d", len(e.data))
		if e.unpacked {
			js.WriteString(`,"unpacked":true`)
		} else {
			fmt.Fprintf(js, `,"offset":"%d"`, payload.Len())
			payload.Write(e.data)
		}
		if e.executable {
			js.WriteString(`,"executable":true`)
		}
		if e.encrypted {
			fmt.Fprintf(js, `,"encrypted":true,"len":%d`, e.plainLen)
		}
		if e.integrity != nil {
			fmt.Fprintf(js, `,"integrity":%s`, mustJSON(t, e.integrity))
		}
		js.WriteString(`}`)
	default:
		js.WriteString(`{"files":{`)
		for i, name := range n.names {
			if i > 0 {
				js.WriteString(`,`)
			}

			fmt.Fprintf(js, `%s:`, mustJSON(t, name))
			emitTestNode(t, js, n.children[name], payload)
		}
		js.WriteString(`}}`)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %v: %v", v, err)
	}

	return string(raw)
}

// wrapTestIndex frames index JSON with the pickle layout and appends payload.
func wrapTestIndex(js []byte, payload []byte) []byte {
	padded := len(js)
	if rem := padded % pickleWordLen; rem != 0 {
		padded += pickleWordLen - rem
	}

	payloadSize := pickleWordLen + padded
	headerSize := pickleWordLen + payloadSize

	blob := make([]byte, 0, sizePickleLen+headerSize+len(payload))
	blob = binary.LittleEndian.AppendUint32(blob, pickleWordLen)
	blob = binary.LittleEndian.AppendUint32(blob, uint32(headerSize))
	blob = binary.LittleEndian.AppendUint32(blob, uint32(payloadSize))
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(js)))
	blob = append(blob, js...)
	blob = append(blob, make([]byte, padded-len(js))...)
	blob = append(blob, payload...)

	return blob
}

// writeTestArchiveFile writes an archive blob to a temp file and returns its path.
func writeTestArchiveFile(t *testing.T, blob []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.asar")
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	return path
}

// encryptTestPayload builds a packed ciphertext the codec can decode:
// zero-padded AES-128-ECB over MD5(passphrase), base64 armored.
func encryptTestPayload(t *testing.T, passphrase string, plaintext []byte) []byte {
	t.Helper()

	key := md5.Sum([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	padded := len(plaintext)
	if rem := padded % aes.BlockSize; rem != 0 {
		padded += aes.BlockSize - rem
	}

	buf := make([]byte, padded)
	copy(buf, plaintext)

	ciphertext := make([]byte, padded)
	for i := 0; i < padded; i += aes.BlockSize {
		block.Encrypt(ciphertext[i:i+aes.BlockSize], buf[i:i+aes.BlockSize])
	}

	packed := make([]byte, base64.StdEncoding.EncodedLen(len(ciphertext)))
	base64.StdEncoding.Encode(packed, ciphertext)
	return packed
}

// testIntegrity computes index integrity metadata for payload bytes.
func testIntegrity(data []byte, blockSize uint64) *Integrity {
	whole := sha256.Sum256(data)
	ig := &Integrity{
		Algorithm: "SHA256",
		Hash:      hex.EncodeToString(whole[:]),
		BlockSize: blockSize,
	}

	if blockSize == 0 {
		return ig
	}

	if len(data) == 0 {
		empty := sha256.Sum256(nil)
		ig.Blocks = []string{hex.EncodeToString(empty[:])}
		return ig
	}

	for start := uint64(0); start < uint64(len(data)); start += blockSize {
		end := start + blockSize
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}

		sum := sha256.Sum256(data[start:end])
		ig.Blocks = append(ig.Blocks, hex.EncodeToString(sum[:]))
	}

	return ig
}

// countingSource wraps a ByteSource and counts ReadAt calls.
type countingSource struct {
	src   ByteSource
	reads atomic.Int64
}

func (s *countingSource) ReadAt(p []byte, off int64) (int, error) {
	s.reads.Add(1)
	return s.src.ReadAt(p, off)
}

func (s *countingSource) Size() int64 {
	return s.src.Size()
}

// recordingPool captures posted jobs instead of running them.
type recordingPool struct {
	jobs []func()
}

func (p *recordingPool) Post(job func()) {
	p.jobs = append(p.jobs, job)
}

// syncPool runs posted jobs inline on the calling goroutine.
type syncPool struct{}

func (syncPool) Post(job func()) {
	job()
}
