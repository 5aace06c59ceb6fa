package artifacts

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lukechampine.com/blake3"
)

func TestCollectDescribesResultFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"hello_1.0-1_amd64.deb":       "deb payload",
		"hello_1.0-1.dsc":             "Format: 3.0 (quilt)\n",
		"hello_1.0.orig.tar.gz":       "tarball",
		"hello_1.0-1_amd64.changes":   "Changes:\n",
		"hello_1.0-1_amd64.buildinfo": "Build-Origin: Debian\n",
		"manifest.json":               "{}",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	collector := &LocalCollector{Skip: []string{"manifest.json"}}
	got, err := collector.Collect(dir)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	wantKinds := []struct {
		name string
		kind ArtifactKind
	}{
		{"hello_1.0-1.dsc", SourcePackageArtifact},
		{"hello_1.0-1_amd64.buildinfo", BuildInfoArtifact},
		{"hello_1.0-1_amd64.changes", ChangesArtifact},
		{"hello_1.0-1_amd64.deb", BinaryPackageArtifact},
		{"hello_1.0.orig.tar.gz", SourcePackageArtifact},
	}
	if len(got) != len(wantKinds) {
		t.Fatalf("Collect() returned %d artifacts, want %d: %+v", len(got), len(wantKinds), got)
	}
	for i, want := range wantKinds {
		if got[i].Name != want.name || got[i].Kind != want.kind {
			t.Errorf("artifact %d = %s (%s), want %s (%s)", i, got[i].Name, got[i].Kind, want.name, want.kind)
		}
		if got[i].ID == "" {
			t.Errorf("artifact %s has no ID", got[i].Name)
		}
	}

	deb := got[3]
	sum := blake3.Sum256([]byte("deb payload"))
	if deb.Checksum == nil || *deb.Checksum != hex.EncodeToString(sum[:]) {
		t.Fatalf("checksum = %v, want %x", deb.Checksum, sum)
	}
	if deb.Size != int64(len("deb payload")) {
		t.Fatalf("size = %d", deb.Size)
	}
	if deb.ContentType != "application/vnd.debian.binary-package" {
		t.Fatalf("content type = %q", deb.ContentType)
	}
	if path, err := PathFromURI(deb.URI); err != nil || path != filepath.Join(dir, "hello_1.0-1_amd64.deb") {
		t.Fatalf("PathFromURI(%q) = %q, %v", deb.URI, path, err)
	}
}

func TestCollectMissingDirectory(t *testing.T) {
	t.Parallel()

	if _, err := (&LocalCollector{}).Collect(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("Collect() error = nil, want error")
	}
}

func TestWriteManifest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.json")
	manifest := Manifest{
		InvocationID: "5f0c3a4e-0000-4000-8000-000000000000",
		Distribution: "bookworm",
		Architecture: "arm64",
		Backend:      "cowbuilder",
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Artifacts:    []Artifact{{ID: "a", Kind: BinaryPackageArtifact, Name: "hello.deb"}},
	}
	if err := WriteManifest(path, manifest); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded Manifest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded.Architecture != "arm64" || len(decoded.Artifacts) != 1 || decoded.Artifacts[0].Kind != BinaryPackageArtifact {
		t.Fatalf("decoded manifest = %+v", decoded)
	}
}

func TestPathFromURIRejectsOtherSchemes(t *testing.T) {
	t.Parallel()

	if _, err := PathFromURI("s3://bucket/key"); err == nil {
		t.Fatal("PathFromURI() error = nil")
	}
}
