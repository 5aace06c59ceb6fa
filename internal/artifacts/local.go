package artifacts

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// LocalCollector describes the files a build left in its result directory.
type LocalCollector struct {
	Logger *slog.Logger
	// Skip lists file names to ignore (the manifest itself, for instance).
	Skip []string
}

func (c *LocalCollector) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Collect returns one artifact per regular file directly under dir, sorted by
// name. Subdirectories are not descended into.
func (c *LocalCollector) Collect(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read result directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var collected []Artifact
	for _, entry := range entries {
		if !entry.Type().IsRegular() || c.skipped(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		artifact, err := describe(path)
		if err != nil {
			return nil, err
		}
		c.logger().Debug("collected artifact", "name", artifact.Name, "kind", artifact.Kind, "size", artifact.Size)
		collected = append(collected, artifact)
	}
	return collected, nil
}

func (c *LocalCollector) skipped(name string) bool {
	if c == nil {
		return false
	}
	for _, skip := range c.Skip {
		if skip == name {
			return true
		}
	}
	return false
}

func describe(path string) (Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return Artifact{}, err
	}
	defer file.Close()

	hasher := blake3.New(32, nil)
	size, err := io.Copy(hasher, file)
	if err != nil {
		return Artifact{}, fmt.Errorf("hash %s: %w", path, err)
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))

	return Artifact{
		ID:          uuid.NewString(),
		Kind:        detectKind(path),
		URI:         FileURI(path),
		Name:        filepath.Base(path),
		Size:        size,
		Checksum:    &checksum,
		ContentType: detectContentType(path),
	}, nil
}

// Manifest lists the artifacts of one build.
type Manifest struct {
	InvocationID string     `json:"invocation_id"`
	Distribution string     `json:"distribution"`
	Architecture string     `json:"architecture"`
	Backend      string     `json:"backend"`
	CreatedAt    time.Time  `json:"created_at"`
	Artifacts    []Artifact `json:"artifacts"`
}

// WriteManifest stores the manifest as indented JSON.
func WriteManifest(path string, manifest Manifest) error {
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

func detectKind(path string) ArtifactKind {
	name := strings.ToLower(filepath.Base(path))
	switch ext := filepath.Ext(name); ext {
	case ".deb", ".udeb", ".ddeb":
		return BinaryPackageArtifact
	case ".dsc":
		return SourcePackageArtifact
	case ".changes":
		return ChangesArtifact
	case ".buildinfo":
		return BuildInfoArtifact
	case ".log", ".zst":
		return LogArtifact
	}
	if strings.Contains(name, ".orig.tar.") || strings.Contains(name, ".debian.tar.") || strings.Contains(name, ".diff.") {
		return SourcePackageArtifact
	}
	return OtherArtifact
}

func detectContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".deb", ".udeb", ".ddeb":
		return "application/vnd.debian.binary-package"
	case ".dsc", ".changes", ".buildinfo":
		return "text/plain"
	case ".gz":
		return "application/gzip"
	case ".xz":
		return "application/x-xz"
	case ".zst":
		return "application/zstd"
	case ".json":
		return "application/json"
	case ".log", ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
