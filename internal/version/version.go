package version

// Version is the current version of argo-fusion.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-fusion/internal/version.Version=1.2.3"
// The default value "main" indicates a development build.
var Version = "main"

// ArtifactFormat is the model artifact layout written by this build.
const ArtifactFormat = "1.1.0"

// GetVersion returns the current version of the binary.
func GetVersion() string {
	return Version
}
