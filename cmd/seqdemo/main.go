// Command seqdemo runs each sequence engine over small synthetic workloads
// and logs what every scheduling mode does with them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/seqkit/config"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/seq"
	"github.com/kbukum/seqkit/version"
)

const serviceName = "seqdemo"

type telemetryConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

type appConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Engine               seq.Config      `yaml:"engine" mapstructure:"engine"`
	Telemetry            telemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	// Demos selects which demos run, all of them when empty.
	Demos []string `yaml:"demos" mapstructure:"demos"`
}

func (c *appConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Version
	}
	c.ServiceConfig.ApplyDefaults()
	c.Engine.ApplyDefaults()
}

func (c *appConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	return c.Engine.Validate()
}

func main() {
	if err := run(context.Background()); err != nil {
		logger.Error("seqdemo failed", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.LoadConfig(serviceName, &cfg); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	logger.Init(cfg.Logging)
	log := logger.Get("seqdemo")

	build := version.Get("golang.org/x/sync", "github.com/hashicorp/", "github.com/puzpuzpuz/", "github.com/emirpasic/")
	log.Info("starting", logger.Fields(
		"version", build.String(),
		"go", build.GoVersion,
		"deps", build.Deps,
	))

	shutdown, err := initTelemetry(ctx, &cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	if err := seq.Setup(cfg.Engine); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, canceling demos", logger.Fields("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, d := range selectDemos(cfg.Demos) {
		start := time.Now()
		if err := d.run(ctx, log.WithComponent(d.name)); err != nil {
			return fmt.Errorf("demo %s: %w", d.name, err)
		}
		log.Info("demo finished", logger.MergeWithDuration(logger.Fields("demo", d.name), time.Since(start)))
	}
	return nil
}

// initTelemetry installs OTLP trace and metric providers when enabled. The
// returned func flushes and shuts them down.
func initTelemetry(ctx context.Context, cfg *appConfig) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	tc := observability.DefaultTracerConfig(cfg.Name)
	tc.ServiceVersion = cfg.Version
	tc.Environment = cfg.Environment
	mc := observability.DefaultMeterConfig(cfg.Name)
	mc.ServiceVersion = cfg.Version
	mc.Environment = cfg.Environment
	engine := observability.EngineAttributes{DefaultMode: cfg.Engine.DefaultMode, Workers: cfg.Engine.Workers}
	tc.Engine = engine
	mc.Engine = engine
	if cfg.Telemetry.Endpoint != "" {
		tc.Endpoint = cfg.Telemetry.Endpoint
		mc.Endpoint = cfg.Telemetry.Endpoint
	}
	if cfg.Telemetry.SampleRate > 0 {
		tc.SampleRate = cfg.Telemetry.SampleRate
	}

	tp, err := observability.InitTracer(ctx, &tc)
	if err != nil {
		return nil, err
	}
	mp, err := observability.InitMeter(ctx, &mc)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	cfg.Engine.Tracing = true
	cfg.Engine.Metrics = true

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown failed", logger.Fields(logger.FieldError, err.Error()))
		}
		if err := mp.Shutdown(ctx); err != nil {
			logger.Warn("meter shutdown failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}, nil
}
