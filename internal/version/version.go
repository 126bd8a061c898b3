// Package version provides build and version information for the narrative
// engine.
package version

// Version is the current release version. Override it at build time with:
//
//	go build -ldflags "-X github.com/AaronLay10/NarrativeEngine/internal/version.Version=x.y.z"
var Version = "0.3.0"

// Name is the product name reported by the CLI and /health.
const Name = "narrative-engine"
