package compute

import (
	"context"

	"github.com/eugenenazirov/vagrant-fusion/internal/providerconfig"
)

// InstanceState is the lifecycle state reported for an instance.
type InstanceState string

// Instance states used by the actions.
const (
	StatePending    InstanceState = "pending"
	StateRunning    InstanceState = "running"
	StateStopping   InstanceState = "stopping"
	StateStopped    InstanceState = "stopped"
	StateTerminated InstanceState = "terminated"
)

// Instance is the subset of instance metadata the provider works with.
type Instance struct {
	ID               string        `json:"id"`
	State            InstanceState `json:"state"`
	AvailabilityZone string        `json:"availability_zone,omitempty"`
	VPCID            string        `json:"vpc_id,omitempty"`
	PublicIP         string        `json:"public_ip,omitempty"`
	PrivateIP        string        `json:"private_ip,omitempty"`
}

// Backend opens connections to the cloud for a provider configuration.
type Backend interface {
	Connect(ctx context.Context, cfg *providerconfig.Config) (Handle, error)
}

// Handle is a connection to one region of the cloud.
type Handle interface {
	Region() string
	GetInstance(ctx context.Context, id string) (*Instance, error)
	StopInstance(ctx context.Context, instance *Instance, force bool) error
	RegisterWithLoadBalancer(ctx context.Context, lbName, instanceID string) error
	DeregisterFromLoadBalancer(ctx context.Context, lbName, instanceID string, unregisterAZ bool) error
}
