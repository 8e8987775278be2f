package seq

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/seqkit/errors"
	"github.com/kbukum/seqkit/logger"
	"github.com/kbukum/seqkit/observability"
	"github.com/kbukum/seqkit/workpool"
)

// Config configures the process-wide sequence environment.
type Config struct {
	// Workers sizes the default worker pool. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=0,lte=4096"`
	// DefaultMode is the mode of sequences created by the source
	// constructors (FromSlice, Range, ...).
	DefaultMode string `yaml:"default_mode" mapstructure:"default_mode" validate:"oneof=sequential concurrent-ordered concurrent-unordered parallel-ordered parallel-unordered"`
	// Tracing opens one span per run.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
	// Metrics records run metrics on the global meter provider.
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.DefaultMode == "" {
		c.DefaultMode = Sequential.String()
	} else {
		c.DefaultMode = strings.ToLower(strings.TrimSpace(c.DefaultMode))
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration after ApplyDefaults.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.InvalidArgument("seq."+strings.ToLower(fe.Field()), fmt.Sprintf("failed %s check, got %v", fe.Tag(), fe.Value()))
	}
	return errors.InvalidArgument("seq config", err.Error())
}

// Option customizes Setup.
type Option func(*environment)

// WithLogger sets the logger runs report to.
func WithLogger(l *logger.Logger) Option {
	return func(e *environment) { e.log = l }
}

// WithMetrics records run metrics on m regardless of Config.Metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *environment) { e.metrics = m }
}

// Setup validates cfg and installs it as the process-wide environment: the
// default worker pool, the default mode of new sources, logging and
// instrumentation.
func Setup(cfg Config, opts ...Option) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode, err := ParseMode(cfg.DefaultMode)
	if err != nil {
		return errors.InvalidArgument("seq.default_mode", err.Error())
	}

	env := &environment{
		mode:    mode,
		tracing: cfg.Tracing,
		log:     logger.Get("seq"),
	}
	if cfg.Metrics {
		m, err := observability.NewMetrics(observability.Meter(meterName))
		if err != nil {
			return errors.Internal(err)
		}
		env.metrics = m
	}
	for _, opt := range opts {
		opt(env)
	}

	poolCfg := workpool.DefaultConfig("seq")
	poolCfg.Workers = cfg.Workers
	workpool.SetDefault(workpool.NewWithConfig(poolCfg))

	envMu.Lock()
	current = env
	envMu.Unlock()

	env.log.Info("sequence environment ready", logger.Fields(
		logger.FieldMode, mode.String(),
		logger.FieldPool, cfg.Workers,
		"tracing", cfg.Tracing,
		"metrics", env.metrics != nil,
	))
	return nil
}

const meterName = "github.com/kbukum/seqkit/seq"

type environment struct {
	mode    Mode
	tracing bool
	metrics *observability.Metrics
	log     *logger.Logger
}

var (
	envMu   sync.RWMutex
	current *environment
)

func currentEnv() *environment {
	envMu.RLock()
	e := current
	envMu.RUnlock()
	if e != nil {
		return e
	}

	envMu.Lock()
	defer envMu.Unlock()
	if current == nil {
		current = &environment{mode: Sequential, log: logger.Get("seq")}
	}
	return current
}
