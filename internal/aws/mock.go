package aws

import (
	"context"

	"github.com/skyfold/cloudseed/pkg/discovery"
)

// MockInventory returns a canned inventory so the CLI can be demoed
// without AWS credentials.
type MockInventory struct{}

func (MockInventory) VirtualMachines(ctx context.Context, groupScope string) ([]discovery.Instance, error) {
	return []discovery.Instance{
		{
			ID:         "seed-1",
			PowerState: discovery.PowerRunning,
			Region:     "us-east-1",
			GroupName:  "prod-east",
			PrivateIP:  "10.0.1.10",
			PublicIP:   "203.0.113.10",
		},
		{
			ID:         "seed-2",
			PowerState: discovery.PowerStarting,
			Region:     "us-east-1",
			GroupName:  "prod-east",
			PrivateIP:  "10.0.1.11",
		},
		{
			// Stopped: filtered out by the resolver.
			ID:         "seed-3",
			PowerState: discovery.PowerStopped,
			Region:     "us-east-1",
			GroupName:  "prod-east",
			PrivateIP:  "10.0.1.12",
		},
		{
			// Different group and region: filtered out when scoped.
			ID:         "build-1",
			PowerState: discovery.PowerRunning,
			Region:     "eu-west-1",
			GroupName:  "ci",
			PrivateIP:  "10.9.0.5",
			PublicIP:   "203.0.113.99",
		},
	}, nil
}
