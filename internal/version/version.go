package version

import "fmt"

// Set at build time with -ldflags "-X github.com/example/galley/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the human-readable build description.
func String() string {
	return fmt.Sprintf("galley %s (commit: %s, built: %s)", Version, commit(), BuildTime)
}

// Fields returns the build description as structured log fields.
func Fields() map[string]any {
	return map[string]any{"version": Version, "commit": commit(), "built": BuildTime}
}

func commit() string {
	if len(Commit) <= 7 {
		return Commit
	}
	return Commit[:7]
}
