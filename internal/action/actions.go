package action

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/vagrant-fusion/internal/compute"
	"github.com/eugenenazirov/vagrant-fusion/internal/providerconfig"
)

// ErrNotConnected is returned by actions that run before ConnectFusion.
var ErrNotConnected = errors.New("no cloud connection in environment")

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// ConnectFusion opens a connection for the configured region and stores it
// in env.Compute.
func ConnectFusion(logger *zap.Logger) Middleware {
	logger = nopIfNil(logger).Named("connect_fusion")
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env) error {
			logger.Info(msgConnecting, zap.String("region", env.Config.Region.Or("")))
			handle, err := env.Backend.Connect(ctx, env.Config)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			env.Compute = handle
			return next(ctx, env)
		}
	}
}

// StopInstance stops the machine's instance unless it is already stopped.
func StopInstance(logger *zap.Logger) Middleware {
	logger = nopIfNil(logger).Named("stop_instance")
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env) error {
			if env.Compute == nil {
				return ErrNotConnected
			}
			instance, err := env.Compute.GetInstance(ctx, env.Machine.ID)
			if err != nil {
				return err
			}

			if instance.State == compute.StateStopped {
				env.UI.Info(msgAlreadyStatus(string(instance.State)))
			} else {
				env.UI.Info(msgStopping)
				logger.Debug("stopping", zap.String("instance_id", instance.ID), zap.Bool("force", env.ForceHalt))
				if err := env.Compute.StopInstance(ctx, instance, env.ForceHalt); err != nil {
					return err
				}
			}

			return next(ctx, env)
		}
	}
}

func connectedRegionConfig(env *Env) (*providerconfig.Config, error) {
	if env.Compute == nil {
		return nil, ErrNotConnected
	}
	return env.Config.RegionConfig(env.Compute.Region())
}

// ElbRegisterInstance runs the rest of the chain, then registers the
// machine with the configured load balancer, if any.
func ElbRegisterInstance(logger *zap.Logger) Middleware {
	logger = nopIfNil(logger).Named("elb_register_instance")
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env) error {
			if err := next(ctx, env); err != nil {
				return err
			}

			regionCfg, err := connectedRegionConfig(env)
			if err != nil {
				return err
			}
			name, ok := regionCfg.ELB.Get()
			if !ok {
				return nil
			}

			env.UI.Info(msgRegisteringELB(env.Machine.ID, name))
			logger.Debug("registering", zap.String("elb", name), zap.String("instance_id", env.Machine.ID))
			return env.Compute.RegisterWithLoadBalancer(ctx, name, env.Machine.ID)
		}
	}
}

// ElbDeregisterInstance removes the machine from the configured load
// balancer before running the rest of the chain.
func ElbDeregisterInstance(logger *zap.Logger) Middleware {
	logger = nopIfNil(logger).Named("elb_deregister_instance")
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env) error {
			regionCfg, err := connectedRegionConfig(env)
			if err != nil {
				return err
			}
			if name, ok := regionCfg.ELB.Get(); ok {
				env.UI.Info(msgDeregisteringELB(env.Machine.ID, name))
				unregisterAZ := regionCfg.UnregisterELBFromAZ.Or(true)
				logger.Debug("deregistering", zap.String("elb", name), zap.Bool("unregister_az", unregisterAZ))
				if err := env.Compute.DeregisterFromLoadBalancer(ctx, name, env.Machine.ID, unregisterAZ); err != nil {
					return err
				}
			}
			return next(ctx, env)
		}
	}
}

// MessageNotCreated tells the user the machine does not exist yet.
func MessageNotCreated() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env) error {
			env.UI.Info(msgNotCreated)
			return next(ctx, env)
		}
	}
}

// MessageAlreadyCreated tells the user the machine already exists.
func MessageAlreadyCreated() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env) error {
			env.UI.Info(msgAlreadyStatus("created"))
			return next(ctx, env)
		}
	}
}

// IsCreated checks for the machine's instance and, if it is missing, runs
// notCreated instead of the rest of the chain.
func IsCreated(notCreated Handler) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env) error {
			if env.Compute == nil {
				return ErrNotConnected
			}
			if env.Machine.ID == "" {
				return notCreated(ctx, env)
			}
			if _, err := env.Compute.GetInstance(ctx, env.Machine.ID); err != nil {
				if errors.Is(err, compute.ErrInstanceNotFound) {
					return notCreated(ctx, env)
				}
				return err
			}
			return next(ctx, env)
		}
	}
}

// Halt stops the machine, leaving its load balancer first.
func Halt(logger *zap.Logger) Handler {
	return Chain(
		ConnectFusion(logger),
		IsCreated(Chain(MessageNotCreated())),
		ElbDeregisterInstance(logger),
		StopInstance(logger),
	)
}

// RegisterELB registers a running machine with its load balancer.
func RegisterELB(logger *zap.Logger) Handler {
	return Chain(
		ConnectFusion(logger),
		IsCreated(Chain(MessageNotCreated())),
		ElbRegisterInstance(logger),
	)
}

// Status reports whether the machine's instance exists.
func Status(logger *zap.Logger) Handler {
	return Chain(
		ConnectFusion(logger),
		IsCreated(Chain(MessageNotCreated())),
		MessageAlreadyCreated(),
	)
}
