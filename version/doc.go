// Package version reports what a seqkit binary was built from.
//
// Version is set at link time:
//
//	go build -ldflags "-X github.com/kbukum/seqkit/version.Version=0.3.0" ./cmd/seqdemo
//
// Commit, dirty state and Go version fall back to the module build info.
package version
