// Package config defines the application configuration
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dreamware/failover/internal/failover"
	"github.com/dreamware/failover/internal/host"
	"github.com/dreamware/failover/internal/reconnect"
)

// EnvPrefix prefixes every environment variable read by the app,
// e.g. FAILOVER_FAILOVER_HOSTS or FAILOVER_LOGGING_DEBUG.
const EnvPrefix = "failover"

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Debug  bool `mapstructure:"debug"`
	Pretty bool `mapstructure:"pretty"`
}

// StatusConfig controls the HTTP status endpoint. An empty Listen disables it.
type StatusConfig struct {
	Listen string `mapstructure:"listen"`
}

// AppConfig is the struct used for configuring the app
type AppConfig struct {
	Logging  LoggingConfig   `mapstructure:"logging"`
	Status   StatusConfig    `mapstructure:"status"`
	Failover failover.Config `mapstructure:"failover"`
}

// MustViperFlags registers the logging flags on flags and binds them to v.
func MustViperFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Bool("debug", false, "enable debug logging")
	mustBindFlag(v, "logging.debug", flags.Lookup("debug"))
	flags.Bool("pretty", false, "human readable console logs")
	mustBindFlag(v, "logging.pretty", flags.Lookup("pretty"))
}

// MustFailoverFlags registers the reconnect and status flags used by the
// connect command.
func MustFailoverFlags(v *viper.Viper, flags *pflag.FlagSet) {
	d := reconnect.DefaultConfig()

	flags.Duration("initial-delay", d.InitialDelay, "delay before the first reconnect attempt")
	mustBindFlag(v, "failover.reconnect.initial-delay", flags.Lookup("initial-delay"))
	flags.Duration("max-delay", d.MaxDelay, "upper bound of the reconnect delay")
	mustBindFlag(v, "failover.reconnect.max-delay", flags.Lookup("max-delay"))
	flags.Float64("multiplier", d.Multiplier, "reconnect delay growth factor")
	mustBindFlag(v, "failover.reconnect.multiplier", flags.Lookup("multiplier"))
	flags.Float64("jitter", 0, "randomization factor of the reconnect delay, between 0 and 1")
	mustBindFlag(v, "failover.reconnect.randomization-factor", flags.Lookup("jitter"))
	flags.Duration("dial-timeout", d.DialTimeout, "timeout of a single connection attempt")
	mustBindFlag(v, "failover.reconnect.dial-timeout", flags.Lookup("dial-timeout"))

	flags.String("status-listen", "", "address of the HTTP status endpoint, empty to disable")
	mustBindFlag(v, "status.listen", flags.Lookup("status-listen"))
}

func mustBindFlag(v *viper.Viper, name string, flag *pflag.Flag) {
	if err := v.BindPFlag(name, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}

// SetupViper applies the environment conventions and, when file is not
// empty, the config file to v.
func SetupViper(v *viper.Viper, file string) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// AutomaticEnv only sees keys viper already knows about.
	_ = v.BindEnv("failover.hosts")

	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", file, err)
	}
	return nil
}

// Load decodes v into an AppConfig. Hosts may be given as "host:port"
// strings, a comma separated string, or structured entries.
func Load(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToDescriptorHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to process app config: %w", err)
	}
	return &cfg, nil
}

var descriptorType = reflect.TypeOf(host.Descriptor{})

func stringToDescriptorHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != descriptorType {
		return data, nil
	}
	return host.Parse(data.(string))
}

// NewLogger builds the process logger.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Pretty {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)

	return zc.Build()
}
