// Package version reports build information. Release builds stamp it with
// -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/streamkit/version.Version=1.2.0" ./cmd/streamserve
//
// Unstamped builds fall back to the VCS data the toolchain embeds.
package version
