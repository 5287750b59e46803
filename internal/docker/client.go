package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// defaultPingTimeout is the maximum duration to wait for a Docker daemon
// response during a Ping operation.
const defaultPingTimeout = 5 * time.Second

// windowsPipe is the named pipe Docker Desktop listens on under Windows.
const windowsPipe = `//./pipe/docker_engine`

// Client wraps the Docker Engine SDK client. It handles Docker socket
// detection across platforms and reports daemon problems as CLIErrors.
//
// Usage:
//
//	c, err := docker.NewClient()
//	if err != nil { /* handle */ }
//	defer func() { _ = c.Close() }()
//	addr, err := c.ResolveContainerIP(ctx, "db")
type Client struct {
	inner containerAPI
}

// NewClient creates a new Docker client with automatic socket detection.
//
// DOCKER_HOST is honoured as-is when set. Otherwise the platform's usual
// socket locations are probed (see socketCandidates), and on Windows the
// Docker Desktop named pipe.
//
// Returns a model.CLIError with ExitDockerNotRunning if no Docker socket
// is found or the client cannot be created.
func NewClient() (*Client, error) {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return newClientWithHost(host)
	}

	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
	}
	return newClientWithHost(host)
}

// newClientWithHost creates a Docker client connected to host, negotiating
// the API version with the daemon.
func newClientWithHost(host string) (*Client, error) {
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}
	return &Client{inner: c}, nil
}

// socketCandidates lists the Unix socket paths to probe for goos, most
// preferred first. home may be empty when the home directory is unknown.
func socketCandidates(goos, home string) []string {
	switch goos {
	case "linux":
		return []string{"/var/run/docker.sock"}
	case "darwin":
		// Newer Docker Desktop releases may skip the /var/run symlink.
		if home == "" {
			return []string{"/var/run/docker.sock"}
		}
		return []string{
			"/var/run/docker.sock",
			filepath.Join(home, ".docker", "run", "docker.sock"),
		}
	default:
		return nil
	}
}

// detectDockerHost determines the Docker host URI for the current platform.
// Socket files are checked for existence only; Ping verifies the daemon.
func detectDockerHost() (string, error) {
	if runtime.GOOS == "windows" {
		// os.Stat does not work on named pipes, so probe with a brief dial.
		conn, err := net.DialTimeout("pipe", windowsPipe, time.Second)
		if err != nil {
			return "", fmt.Errorf("Docker named pipe not found at %s: %w", windowsPipe, err)
		}
		_ = conn.Close()
		return "npipe://" + windowsPipe, nil
	}

	home, _ := os.UserHomeDir()
	paths := socketCandidates(runtime.GOOS, home)
	if len(paths) == 0 {
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return detectUnixSocket(paths)
}

// detectUnixSocket returns the host URI of the first existing socket path.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v (is Docker running?)", paths)
}

// Ping verifies that the Docker daemon is reachable, waiting at most
// defaultPingTimeout.
//
// Returns a model.CLIError with ExitDockerNotRunning if the daemon
// does not respond.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// Close releases all resources held by the Docker client.
// Close is safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}
