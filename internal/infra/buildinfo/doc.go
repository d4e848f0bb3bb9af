// Package buildinfo exposes build-time version information.
//
// Values are injected with ldflags:
//
//	go build -ldflags "-X github.com/ekodi-ai/gatekeeper/internal/infra/buildinfo.Version=v1.0.0 \
//	  -X github.com/ekodi-ai/gatekeeper/internal/infra/buildinfo.Commit=abc123"
//
// When they are not set, Get falls back to the VCS stamp and toolchain
// version embedded by the Go linker.
package buildinfo
