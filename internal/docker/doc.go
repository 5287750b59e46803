// Package docker resolves Docker containers to scan targets for the
// ipsniffer CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container inspection: a running container's network endpoints are
//     reduced to the single IP address a scan is run against
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
