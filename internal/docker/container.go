// container.go resolves a Docker container to the IP address ipsniffer scans.
//
// Containers attached to several networks have one address per network. The
// choice is deterministic: networks are visited in name order, the first
// IPv4 address wins, and a global IPv6 address is used only when no network
// has an IPv4 one.
package docker

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"slices"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"

	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// containerAPI is the subset of the Docker SDK client used by this package.
// *client.Client satisfies it; tests substitute a fake.
type containerAPI interface {
	io.Closer
	Ping(ctx context.Context) (types.Ping, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// ResolveContainerIP looks up a container by name or ID and returns the IP
// address to scan.
//
// Returns a model.CLIError with:
//   - ExitTargetNotFound if the container does not exist, is not running,
//     or has no usable address on any network
//   - ExitDockerNotRunning if the Docker API call itself fails
func (c *Client) ResolveContainerIP(ctx context.Context, nameOrID string) (netip.Addr, error) {
	info, err := c.inner.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return netip.Addr{}, model.WrapCLIError(model.ExitTargetNotFound,
				fmt.Sprintf("container %q not found", nameOrID), err)
		}
		return netip.Addr{}, model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect container %q", nameOrID), err)
	}

	if info.ContainerJSONBase == nil || info.State == nil || !info.State.Running {
		return netip.Addr{}, model.NewCLIError(model.ExitTargetNotFound,
			fmt.Sprintf("container %q is not running", nameOrID))
	}

	var networks map[string]*network.EndpointSettings
	if info.NetworkSettings != nil {
		networks = info.NetworkSettings.Networks
	}

	addr, ok := pickAddress(networks)
	if !ok {
		return netip.Addr{}, model.NewCLIError(model.ExitTargetNotFound,
			fmt.Sprintf("container %q has no IP address on any network", nameOrID))
	}
	return addr, nil
}

// pickAddress selects the scan address from a container's network
// endpoints. Networks are visited in sorted name order; an IPv4 address is
// preferred over a global IPv6 one. Unparseable or empty addresses are
// skipped.
func pickAddress(networks map[string]*network.EndpointSettings) (netip.Addr, bool) {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	slices.Sort(names)

	var v6 netip.Addr
	for _, name := range names {
		ep := networks[name]
		if ep == nil {
			continue
		}
		if addr, err := netip.ParseAddr(ep.IPAddress); err == nil && addr.Is4() {
			return addr, true
		}
		if !v6.IsValid() {
			if addr, err := netip.ParseAddr(ep.GlobalIPv6Address); err == nil {
				v6 = addr
			}
		}
	}
	return v6, v6.IsValid()
}
