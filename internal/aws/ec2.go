package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/skyfold/cloudseed/pkg/discovery"
)

const (
	// DefaultGroupTag is the instance tag holding the cluster group name.
	DefaultGroupTag = "cloudseed:group"

	// asgGroupTag is consulted when the dedicated group tag is absent,
	// so autoscaling groups work out of the box.
	asgGroupTag = "aws:autoscaling:groupName"

	nameTag = "Name"
)

// EC2API is the narrow slice of the EC2 client the inventory needs.
// Keeping it read-only by construction: no mutating call can sneak in
// without widening this interface.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// EC2Inventory implements discovery.Inventory over the EC2 API.
type EC2Inventory struct {
	Client   EC2API
	Region   string
	GroupTag string
	Logger   *slog.Logger
}

// NewEC2Inventory builds an inventory for the region carried by cfg.
func NewEC2Inventory(cfg aws.Config, logger *slog.Logger) *EC2Inventory {
	if logger == nil {
		logger = slog.Default()
	}
	return &EC2Inventory{
		Client:   ec2.NewFromConfig(cfg),
		Region:   cfg.Region,
		GroupTag: DefaultGroupTag,
		Logger:   logger,
	}
}

// VirtualMachines returns the current instance inventory. A non-wildcard
// group scope is pushed down as a server-side tag filter; wildcard scopes
// fetch the full inventory and leave matching to the resolver.
//
// The group name can live under either the dedicated tag or the
// autoscaling tag, so a scoped fetch queries both and merges. Pushdown
// narrows the transfer, never the set the resolver's filters would keep.
func (inv *EC2Inventory) VirtualMachines(ctx context.Context, groupScope string) ([]discovery.Instance, error) {
	filterSets := [][]types.Filter{nil}
	if groupScope != "" && !discovery.IsWildcard(groupScope) {
		filterSets = [][]types.Filter{
			{{Name: aws.String("tag:" + inv.groupTag()), Values: []string{groupScope}}},
			{{Name: aws.String("tag:" + asgGroupTag), Values: []string{groupScope}}},
		}
	}

	var instances []discovery.Instance
	seen := make(map[string]bool)
	for _, filters := range filterSets {
		var err error
		instances, err = inv.describe(ctx, filters, seen, instances)
		if err != nil {
			return nil, err
		}
	}

	inv.Logger.Debug("fetched instance inventory", "instances", len(instances), "group_scope", groupScope)
	return instances, nil
}

func (inv *EC2Inventory) describe(ctx context.Context, filters []types.Filter, seen map[string]bool, instances []discovery.Instance) ([]discovery.Instance, error) {
	paginator := ec2.NewDescribeInstancesPaginator(inv.Client, &ec2.DescribeInstancesInput{Filters: filters})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) {
				return nil, fmt.Errorf("failed to describe instances (%s): %w", apiErr.ErrorCode(), err)
			}
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}

		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				id := aws.ToString(instance.InstanceId)
				if seen[id] {
					continue
				}
				seen[id] = true
				instances = append(instances, inv.toInstance(instance))
			}
		}
	}
	return instances, nil
}

func (inv *EC2Inventory) groupTag() string {
	if inv.GroupTag != "" {
		return inv.GroupTag
	}
	return DefaultGroupTag
}

func (inv *EC2Inventory) toInstance(in types.Instance) discovery.Instance {
	tags := make(map[string]string, len(in.Tags))
	for _, t := range in.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}

	id := tags[nameTag]
	if id == "" {
		id = aws.ToString(in.InstanceId)
	}

	group := tags[inv.groupTag()]
	if group == "" {
		group = tags[asgGroupTag]
	}

	// DescribeInstances is region-scoped, so the client region is the
	// instance region. The AZ suffix is stripped when one is present.
	region := inv.Region
	if in.Placement != nil {
		if az := aws.ToString(in.Placement.AvailabilityZone); az != "" {
			region = strings.TrimRightFunc(az, unicode.IsLetter)
		}
	}

	state := discovery.PowerUnknown
	if in.State != nil {
		state = powerState(in.State.Name)
	}

	return discovery.Instance{
		ID:         id,
		PowerState: state,
		Region:     region,
		GroupName:  group,
		PrivateIP:  aws.ToString(in.PrivateIpAddress),
		PublicIP:   aws.ToString(in.PublicIpAddress),
	}
}

func powerState(name types.InstanceStateName) discovery.PowerState {
	switch name {
	case types.InstanceStateNamePending:
		return discovery.PowerStarting
	case types.InstanceStateNameRunning:
		return discovery.PowerRunning
	case types.InstanceStateNameStopping:
		return discovery.PowerStopping
	case types.InstanceStateNameStopped:
		return discovery.PowerStopped
	case types.InstanceStateNameShuttingDown:
		return discovery.PowerDeallocating
	case types.InstanceStateNameTerminated:
		return discovery.PowerDeallocated
	default:
		return discovery.PowerUnknown
	}
}
