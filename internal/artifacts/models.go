package artifacts

type ArtifactKind string

const (
	BinaryPackageArtifact ArtifactKind = "binary-package" // .deb, .udeb, .ddeb
	SourcePackageArtifact ArtifactKind = "source-package" // .dsc and its tarballs
	ChangesArtifact       ArtifactKind = "changes"        // upload description
	BuildInfoArtifact     ArtifactKind = "buildinfo"      // reproducibility record
	LogArtifact           ArtifactKind = "log"            // build logs
	OtherArtifact         ArtifactKind = "other"
)

type Artifact struct {
	ID   string       `json:"id"`
	Kind ArtifactKind `json:"kind"`
	URI  string       `json:"uri"`
	Name string       `json:"name"`
	Size int64        `json:"size"`

	// Checksum is the hex BLAKE3 digest of the file.
	Checksum    *string        `json:"checksum,omitempty"`
	ContentType string         `json:"content_type"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
