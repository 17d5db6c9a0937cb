// Package version holds the release version reported by the CLI and the service.
package version

// Current is the semantic version without a "v" prefix.
const Current = "0.1.0"
