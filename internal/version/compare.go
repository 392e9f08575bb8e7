package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckArtifactCompatibility checks whether a model artifact written with artifactFormat
// can be loaded by a reader that understands readerFormat.
//
// Compatibility Rules:
//   - If either version is "main" (development build), compatibility check is skipped
//   - Major versions must match exactly
//   - The artifact minor version must not be newer than the reader's
//   - Patch versions can differ
//
// Examples:
//   - Reader 1.2.0, Artifact 1.2.0 -> OK
//   - Reader 1.2.0, Artifact 1.1.4 -> OK (older minor, fields are a subset)
//   - Reader 1.2.0, Artifact 1.3.0 -> ERROR (artifact newer than reader)
//   - Reader 2.0.0, Artifact 1.2.0 -> ERROR (major differs)
func CheckArtifactCompatibility(readerFormat, artifactFormat string) error {
	readerFormat = strings.TrimPrefix(readerFormat, "v")
	artifactFormat = strings.TrimPrefix(artifactFormat, "v")

	if readerFormat == "main" || artifactFormat == "main" {
		return nil
	}

	reader, err := semver.NewVersion(readerFormat)
	if err != nil {
		return fmt.Errorf("invalid reader version '%s': %w", readerFormat, err)
	}

	artifact, err := semver.NewVersion(artifactFormat)
	if err != nil {
		return fmt.Errorf("invalid artifact version '%s': %w", artifactFormat, err)
	}

	if reader.Major() != artifact.Major() {
		return fmt.Errorf("major version mismatch: reader is %d.x.x but artifact is %d.x.x",
			reader.Major(), artifact.Major())
	}

	if artifact.Minor() > reader.Minor() {
		return fmt.Errorf("artifact is newer than reader: reader is %d.%d.x but artifact is %d.%d.x",
			reader.Major(), reader.Minor(),
			artifact.Major(), artifact.Minor())
	}

	return nil
}
