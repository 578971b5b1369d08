package layout

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

type testDoc struct {
	Name  string            `json:"name"`
	Count int               `json:"count"`
	Tags  map[string]string `json:"tags,omitempty"`
}

func newTestStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return dir
}

func TestWriteJSONBlobRoundTrip(t *testing.T) {
	dir := newTestStore(t)
	doc := testDoc{Name: "base", Count: 3, Tags: map[string]string{"os": "linux"}}

	desc, err := WriteJSONBlob(doc, v1.MediaTypeImageConfig, dir)
	if err != nil {
		t.Fatalf("WriteJSONBlob failed: %v", err)
	}

	expected, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if desc.Digest != digest.FromBytes(expected) {
		t.Errorf("Expected digest %s, got %s", digest.FromBytes(expected), desc.Digest)
	}
	if desc.Size != int64(len(expected)) {
		t.Errorf("Expected size %d, got %d", len(expected), desc.Size)
	}
	if desc.MediaType != v1.MediaTypeImageConfig {
		t.Errorf("Expected media type %s, got %s", v1.MediaTypeImageConfig, desc.MediaType)
	}

	data, err := os.ReadFile(BlobPath(dir, desc.Digest))
	if err != nil {
		t.Fatalf("Failed to read published blob: %v", err)
	}
	var restored testDoc
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal blob: %v", err)
	}
	if restored.Name != doc.Name || restored.Count != doc.Count || restored.Tags["os"] != "linux" {
		t.Errorf("Round trip mismatch: %+v", restored)
	}
}

func TestWriteJSONBlobIdempotent(t *testing.T) {
	dir := newTestStore(t)
	doc := testDoc{Name: "repeat", Count: 1}

	first, err := WriteJSONBlob(doc, "application/json", dir)
	if err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	second, err := WriteJSONBlob(doc, "application/json", dir)
	if err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	if first.Digest != second.Digest || first.Size != second.Size {
		t.Errorf("Expected identical descriptors, got %+v and %+v", first, second)
	}
}

func TestWriteJSONBlobDistinctContent(t *testing.T) {
	dir := newTestStore(t)

	a, err := WriteJSONBlob(testDoc{Name: "a"}, "application/json", dir)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	b, err := WriteJSONBlob(testDoc{Name: "b"}, "application/json", dir)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if a.Digest == b.Digest {
		t.Error("Distinct values produced the same digest")
	}
	for _, desc := range []v1.Descriptor{a, b} {
		if _, err := os.Stat(BlobPath(dir, desc.Digest)); err != nil {
			t.Errorf("Blob %s not published: %v", desc.Digest, err)
		}
	}
}

func TestPublishBlobCopyFallback(t *testing.T) {
	dir := newTestStore(t)

	srcDir := filepath.Join(t.TempDir(), "staging")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatalf("Failed to create staging dir: %v", err)
	}
	content := []byte(`{"fallback":true}`)
	src := filepath.Join(srcDir, "blob")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}
	dgst := digest.FromBytes(content)

	// A read-only parent makes the rename fail while the bytes can still
	// be read and copied into the store
	if err := os.Chmod(srcDir, 0555); err != nil {
		t.Fatalf("Failed to chmod staging dir: %v", err)
	}
	t.Cleanup(func() { os.Chmod(srcDir, 0755) })

	if err := PublishBlob(src, dir, dgst); err != nil {
		t.Fatalf("PublishBlob failed: %v", err)
	}

	data, err := os.ReadFile(BlobPath(dir, dgst))
	if err != nil {
		t.Fatalf("Failed to read published blob: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("Published bytes differ from source: %q", data)
	}

	// Only the digest-named file may remain in the blobs directory
	entries, err := os.ReadDir(filepath.Join(dir, "blobs", "sha256"))
	if err != nil {
		t.Fatalf("Failed to read blobs dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".blob-") {
			t.Errorf("Sibling temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 1 || entries[0].Name() != dgst.Encoded() {
		t.Errorf("Expected only the published blob, found %d entries", len(entries))
	}
}

func countOrphanedBlobTemps(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "ocidir-blob-*"))
	if err != nil {
		t.Fatalf("Failed to glob temp dir: %v", err)
	}
	return len(matches)
}

func TestWriteJSONBlobCleansUpOnPublishFailure(t *testing.T) {
	// No Init: blobs/sha256 is missing, so both the rename and the
	// sibling-copy fallback fail
	dir := t.TempDir()
	before := countOrphanedBlobTemps(t)

	if _, err := WriteJSONBlob(testDoc{Name: "orphan"}, "application/json", dir); err == nil {
		t.Fatal("Expected publish to fail without a blobs directory")
	}

	if after := countOrphanedBlobTemps(t); after > before {
		t.Errorf("Expected no orphaned temp files, found %d new", after-before)
	}
}

func TestWriteJSONBlobSerializationError(t *testing.T) {
	dir := newTestStore(t)

	_, err := WriteJSONBlob(make(chan int), "application/json", dir)
	if err == nil {
		t.Fatal("Expected serialization error for unencodable value")
	}

	// Nothing must have been published
	blobs, err := os.ReadDir(dir + "/blobs/sha256")
	if err != nil {
		t.Fatalf("Failed to read blobs dir: %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("Expected no published blobs, found %d", len(blobs))
	}
}
