package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/vagrant-fusion/internal/action"
	"github.com/eugenenazirov/vagrant-fusion/internal/application"
	"github.com/eugenenazirov/vagrant-fusion/internal/compute"
	"github.com/eugenenazirov/vagrant-fusion/internal/config"
	"github.com/eugenenazirov/vagrant-fusion/internal/credentials"
	"github.com/eugenenazirov/vagrant-fusion/internal/logging"
)

var (
	signalNotify = signal.Notify

	newBackend = func(cfg config.Config, logger *zap.Logger) compute.Backend {
		return compute.NewEC2Backend(
			compute.WithLogger(logger),
			compute.WithRateLimit(cfg.CloudRateLimitRPS, cfg.CloudRateLimitBurst),
		)
	}

	environment credentials.Environment = credentials.OSEnvironment{}
)

type cli struct {
	app *kingpin.Application

	configFile     *string
	port           *string
	providerFiles  *[]string
	profile        *string
	fusionDir      *string
	logLevel       *string
	rateLimitRPS   *float64
	rateLimitBurst *int

	serve    *kingpin.CmdClause
	validate *kingpin.CmdClause

	region       *kingpin.CmdClause
	regionName   *string
	regionReveal *bool

	halt      *kingpin.CmdClause
	haltID    *string
	haltForce *bool

	elbRegister   *kingpin.CmdClause
	elbRegisterID *string

	status   *kingpin.CmdClause
	statusID *string
}

func newCLI() *cli {
	c := &cli{app: kingpin.New("fusion", "Fusion cloud provider - resolves provider configuration and manages machines")}

	c.configFile = c.app.Flag("config", "Path to YAML configuration file").String()
	c.port = c.app.Flag("port", "HTTP port exposed by the service").String()
	c.providerFiles = c.app.Flag("provider-file", "Provider document, may be repeated; later files win").Strings()
	c.profile = c.app.Flag("profile", "Credential profile used when documents set none").String()
	c.fusionDir = c.app.Flag("fusion-dir", "Directory holding the config and credentials files").String()
	c.logLevel = c.app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	c.rateLimitRPS = c.app.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	c.rateLimitBurst = c.app.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	c.serve = c.app.Command("serve", "Run the HTTP API").Default()
	c.validate = c.app.Command("validate", "Validate the provider configuration")

	c.region = c.app.Command("region", "Print the configuration compiled for a region")
	c.regionName = c.region.Arg("name", "Region name").Required().String()
	c.regionReveal = c.region.Flag("reveal", "Show secret values").Bool()

	c.halt = c.app.Command("halt", "Stop a machine")
	c.haltID = c.halt.Arg("id", "Instance ID").Required().String()
	c.haltForce = c.halt.Flag("force", "Force the instance to stop").Bool()

	c.elbRegister = c.app.Command("elb-register", "Register a machine with its load balancer")
	c.elbRegisterID = c.elbRegister.Arg("id", "Instance ID").Required().String()

	c.status = c.app.Command("status", "Report whether a machine exists")
	c.statusID = c.status.Arg("id", "Instance ID").Required().String()

	return c
}

func (c *cli) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile:    *c.configFile,
		ProviderFiles: *c.providerFiles,
	}

	if *c.port != "" {
		overrides.Port = c.port
	}

	if *c.profile != "" {
		overrides.FusionProfile = c.profile
	}

	if *c.fusionDir != "" {
		overrides.FusionDir = c.fusionDir
	}

	if *c.logLevel != "" {
		overrides.LogLevel = c.logLevel
	}

	if *c.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = c.rateLimitRPS
	}

	if *c.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = c.rateLimitBurst
	}

	return overrides
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fusion: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	c := newCLI()
	command, err := c.app.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.overrides())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch command {
	case c.serve.FullCommand():
		return serve(cfg, logger)
	case c.validate.FullCommand():
		return validate(cfg, logger, stdout)
	case c.region.FullCommand():
		return printRegion(cfg, logger, stdout, *c.regionName, *c.regionReveal)
	case c.halt.FullCommand():
		return runMachineAction(cfg, logger, stdout, *c.haltID, *c.haltForce, action.Halt(logger))
	case c.elbRegister.FullCommand():
		return runMachineAction(cfg, logger, stdout, *c.elbRegisterID, false, action.RegisterELB(logger))
	case c.status.FullCommand():
		return runMachineAction(cfg, logger, stdout, *c.statusID, false, action.Status(logger))
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func serve(cfg config.Config, logger *zap.Logger) error {
	app, err := application.New(cfg, logger,
		application.WithBackend(newBackend(cfg, logger)),
		application.WithEnvironment(environment),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	return nil
}

func validate(cfg config.Config, logger *zap.Logger, stdout io.Writer) error {
	provider, err := application.NewLoader(cfg, environment, logger).Load()
	if err != nil {
		return err
	}

	errs, err := provider.Validate()
	if err != nil {
		return err
	}
	if !errs.Empty() {
		fmt.Fprint(stdout, errs.String())
		return application.ErrInvalidProviderConfig
	}

	fmt.Fprintln(stdout, "Provider configuration is valid.")
	return nil
}

func printRegion(cfg config.Config, logger *zap.Logger, stdout io.Writer, name string, reveal bool) error {
	provider, err := application.NewLoader(cfg, environment, logger).Load()
	if err != nil {
		return err
	}

	regionCfg, err := provider.RegionConfig(name)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(regionCfg.View(reveal))
	if err != nil {
		return fmt.Errorf("encode region %s: %w", name, err)
	}
	_, err = stdout.Write(out)
	return err
}

func runMachineAction(cfg config.Config, logger *zap.Logger, stdout io.Writer, id string, force bool, run action.Handler) error {
	provider, err := application.NewLoader(cfg, environment, logger).Load()
	if err != nil {
		return err
	}

	env := &action.Env{
		Machine:   action.Machine{ID: id},
		Config:    provider,
		Backend:   newBackend(cfg, logger),
		UI:        action.WriterUI{W: stdout},
		ForceHalt: force,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, env)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
