package compute

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eugenenazirov/vagrant-fusion/internal/providerconfig"
)

const codeInstanceNotFound = "InvalidInstanceID.NotFound"

// ec2API is the part of the EC2 client the handle uses.
type ec2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StopInstances(ctx context.Context, in *ec2.StopInstancesInput, opts ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

// elbAPI is the part of the classic load balancing client the handle uses.
type elbAPI interface {
	DescribeLoadBalancers(ctx context.Context, in *elb.DescribeLoadBalancersInput, opts ...func(*elb.Options)) (*elb.DescribeLoadBalancersOutput, error)
	RegisterInstancesWithLoadBalancer(ctx context.Context, in *elb.RegisterInstancesWithLoadBalancerInput, opts ...func(*elb.Options)) (*elb.RegisterInstancesWithLoadBalancerOutput, error)
	DeregisterInstancesFromLoadBalancer(ctx context.Context, in *elb.DeregisterInstancesFromLoadBalancerInput, opts ...func(*elb.Options)) (*elb.DeregisterInstancesFromLoadBalancerOutput, error)
	EnableAvailabilityZonesForLoadBalancer(ctx context.Context, in *elb.EnableAvailabilityZonesForLoadBalancerInput, opts ...func(*elb.Options)) (*elb.EnableAvailabilityZonesForLoadBalancerOutput, error)
	DisableAvailabilityZonesForLoadBalancer(ctx context.Context, in *elb.DisableAvailabilityZonesForLoadBalancerInput, opts ...func(*elb.Options)) (*elb.DisableAvailabilityZonesForLoadBalancerOutput, error)
}

// clientFactory builds API clients from a resolved SDK configuration.
type clientFactory func(cfg aws.Config, endpoint string) (ec2API, elbAPI)

func newSDKClients(cfg aws.Config, endpoint string) (ec2API, elbAPI) {
	ec2Client := ec2.NewFromConfig(cfg, func(o *ec2.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	// The endpoint override only applies to the compute API.
	return ec2Client, elb.NewFromConfig(cfg)
}

// Option configures an EC2Backend.
type Option func(*EC2Backend)

// WithLogger sets the backend logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *EC2Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithRateLimit throttles cloud API calls to rps requests per second with
// the given burst. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(b *EC2Backend) {
		if rps <= 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func withClientFactory(f clientFactory) Option {
	return func(b *EC2Backend) {
		b.newClients = f
	}
}

// EC2Backend implements Backend with the AWS SDK against the Fusion EC2 and
// ELB APIs.
type EC2Backend struct {
	logger     *zap.Logger
	limiter    *rate.Limiter
	newClients clientFactory
}

// NewEC2Backend returns a backend. All connections share one rate limiter.
func NewEC2Backend(opts ...Option) *EC2Backend {
	b := &EC2Backend{
		logger:     zap.NewNop(),
		limiter:    rate.NewLimiter(rate.Inf, 0),
		newClients: newSDKClients,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect resolves the configuration of cfg's region and opens clients for it.
// Keys come from the region configuration unless use_iam_profile is set, in
// which case instance role credentials are used.
func (b *EC2Backend) Connect(ctx context.Context, cfg *providerconfig.Config) (Handle, error) {
	if !cfg.Finalized() {
		return nil, ErrNotFinalized
	}

	region := cfg.Region.Or(providerconfig.DefaultRegion)
	regionCfg, err := cfg.RegionConfig(region)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	var provider aws.CredentialsProvider
	if regionCfg.UseIAMProfile.Or(false) {
		provider = aws.NewCredentialsCache(ec2rolecreds.New())
	} else {
		provider = awscreds.NewStaticCredentialsProvider(
			regionCfg.AccessKeyID.Or(""),
			regionCfg.SecretAccessKey.Or(""),
			regionCfg.SessionToken.Or(""),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(provider),
	)
	if err != nil {
		return nil, &InternalCloudError{Op: "connect", Err: err}
	}

	endpoint := regionCfg.Endpoint.Or("")
	b.logger.Info("connecting to fusion",
		zap.String("region", region),
		zap.Bool("iam_profile", regionCfg.UseIAMProfile.Or(false)),
		zap.String("endpoint", endpoint),
		zap.String("api_version", regionCfg.Version.Or("")),
	)

	ec2Client, elbClient := b.newClients(awsCfg, endpoint)
	return &ec2Handle{
		region:  region,
		ec2:     ec2Client,
		elb:     elbClient,
		limiter: b.limiter,
		logger:  b.logger.With(zap.String("region", region)),
	}, nil
}

type ec2Handle struct {
	region  string
	ec2     ec2API
	elb     elbAPI
	limiter *rate.Limiter
	logger  *zap.Logger
}

func (h *ec2Handle) Region() string {
	return h.region
}

func (h *ec2Handle) wait(ctx context.Context) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("cloud rate limit: %w", err)
	}
	return nil
}

func (h *ec2Handle) GetInstance(ctx context.Context, id string) (*Instance, error) {
	instances, err := h.describeInstances(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return &instances[0], nil
}

func (h *ec2Handle) describeInstances(ctx context.Context, ids ...string) ([]Instance, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}

	out, err := h.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids})
	if err != nil {
		err = classify("describe instances", err)
		if IsCloudCode(err, codeInstanceNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInstanceNotFound, ids)
		}
		return nil, err
	}

	var instances []Instance
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			instances = append(instances, fromEC2(inst))
		}
	}
	return instances, nil
}

func fromEC2(inst ec2types.Instance) Instance {
	out := Instance{
		ID:        aws.ToString(inst.InstanceId),
		VPCID:     aws.ToString(inst.VpcId),
		PublicIP:  aws.ToString(inst.PublicIpAddress),
		PrivateIP: aws.ToString(inst.PrivateIpAddress),
	}
	if inst.State != nil {
		out.State = InstanceState(inst.State.Name)
	}
	if inst.Placement != nil {
		out.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	return out
}

func (h *ec2Handle) StopInstance(ctx context.Context, instance *Instance, force bool) error {
	if err := h.wait(ctx); err != nil {
		return err
	}

	h.logger.Info("stopping instance", zap.String("instance_id", instance.ID), zap.Bool("force", force))
	_, err := h.ec2.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instance.ID},
		Force:       aws.Bool(force),
	})
	if err != nil {
		return classify("stop instance", err)
	}
	return nil
}

func (h *ec2Handle) loadBalancer(ctx context.Context, name string) (*elbtypes.LoadBalancerDescription, error) {
	if err := h.wait(ctx); err != nil {
		return nil, err
	}

	out, err := h.elb.DescribeLoadBalancers(ctx, &elb.DescribeLoadBalancersInput{
		LoadBalancerNames: []string{name},
	})
	if err != nil {
		var notFound *elbtypes.AccessPointNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrLoadBalancerNotFound, name)
		}
		return nil, classify("describe load balancers", err)
	}
	if len(out.LoadBalancerDescriptions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLoadBalancerNotFound, name)
	}
	return &out.LoadBalancerDescriptions[0], nil
}

func lbInstanceIDs(lb *elbtypes.LoadBalancerDescription) []string {
	ids := make([]string, 0, len(lb.Instances))
	for _, inst := range lb.Instances {
		ids = append(ids, aws.ToString(inst.InstanceId))
	}
	return ids
}

// RegisterWithLoadBalancer adds the instance to lbName. Classic (non-VPC)
// load balancers also get the instance's availability zone enabled.
func (h *ec2Handle) RegisterWithLoadBalancer(ctx context.Context, lbName, instanceID string) error {
	lb, err := h.loadBalancer(ctx, lbName)
	if err != nil {
		return err
	}
	if slices.Contains(lbInstanceIDs(lb), instanceID) {
		h.logger.Debug("instance already registered", zap.String("elb", lbName), zap.String("instance_id", instanceID))
		return nil
	}

	if err := h.wait(ctx); err != nil {
		return err
	}
	h.logger.Info("registering instance with load balancer", zap.String("elb", lbName), zap.String("instance_id", instanceID))
	_, err = h.elb.RegisterInstancesWithLoadBalancer(ctx, &elb.RegisterInstancesWithLoadBalancerInput{
		LoadBalancerName: aws.String(lbName),
		Instances:        []elbtypes.Instance{{InstanceId: aws.String(instanceID)}},
	})
	if err != nil {
		return classify("register instance with load balancer", err)
	}

	if len(lb.Subnets) > 0 {
		return nil
	}
	instance, err := h.GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if instance.AvailabilityZone == "" || slices.Contains(lb.AvailabilityZones, instance.AvailabilityZone) {
		return nil
	}

	if err := h.wait(ctx); err != nil {
		return err
	}
	_, err = h.elb.EnableAvailabilityZonesForLoadBalancer(ctx, &elb.EnableAvailabilityZonesForLoadBalancerInput{
		LoadBalancerName:  aws.String(lbName),
		AvailabilityZones: []string{instance.AvailabilityZone},
	})
	return classify("enable availability zone", err)
}

// DeregisterFromLoadBalancer removes the instance from lbName. With
// unregisterAZ, availability zones of a classic load balancer that no longer
// hold any registered instance are disabled.
func (h *ec2Handle) DeregisterFromLoadBalancer(ctx context.Context, lbName, instanceID string, unregisterAZ bool) error {
	lb, err := h.loadBalancer(ctx, lbName)
	if err != nil {
		return err
	}
	if !slices.Contains(lbInstanceIDs(lb), instanceID) {
		return nil
	}

	if err := h.wait(ctx); err != nil {
		return err
	}
	h.logger.Info("deregistering instance from load balancer", zap.String("elb", lbName), zap.String("instance_id", instanceID))
	out, err := h.elb.DeregisterInstancesFromLoadBalancer(ctx, &elb.DeregisterInstancesFromLoadBalancerInput{
		LoadBalancerName: aws.String(lbName),
		Instances:        []elbtypes.Instance{{InstanceId: aws.String(instanceID)}},
	})
	if err != nil {
		return classify("deregister instance from load balancer", err)
	}

	if !unregisterAZ || len(lb.Subnets) > 0 {
		return nil
	}

	var remaining []string
	for _, inst := range out.Instances {
		remaining = append(remaining, aws.ToString(inst.InstanceId))
	}
	// A load balancer must keep at least one zone.
	if len(remaining) == 0 {
		return nil
	}

	instances, err := h.describeInstances(ctx, remaining...)
	if err != nil {
		return err
	}
	inUse := make(map[string]bool, len(instances))
	for _, inst := range instances {
		inUse[inst.AvailabilityZone] = true
	}
	var unused []string
	for _, az := range lb.AvailabilityZones {
		if !inUse[az] {
			unused = append(unused, az)
		}
	}
	if len(unused) == 0 {
		return nil
	}

	if err := h.wait(ctx); err != nil {
		return err
	}
	h.logger.Info("disabling unused availability zones", zap.String("elb", lbName), zap.Strings("zones", unused))
	_, err = h.elb.DisableAvailabilityZonesForLoadBalancer(ctx, &elb.DisableAvailabilityZonesForLoadBalancerInput{
		LoadBalancerName:  aws.String(lbName),
		AvailabilityZones: unused,
	})
	return classify("disable availability zones", err)
}
