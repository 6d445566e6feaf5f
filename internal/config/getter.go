package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/HaPhanBaoMinh/upmon/help"
	"github.com/HaPhanBaoMinh/upmon/internal/reconcile"
)

const prefix = "UPMON"

// Parse layers defaults, environment (UPMON_API_BASEURL, ...), the optional
// config file and finally any flags explicitly set on the command line.
func Parse(confFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefault(v)

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if len(confFile) > 0 {
		v.SetConfigFile(help.ExpandHome(confFile))

		err := v.ReadInConfig()
		if err != nil && !(errors.Is(err, os.ErrNotExist) && confFile == DefaultFile()) {
			return nil, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	if flags != nil {
		err := bindFlags(v, flags)
		if err != nil {
			return nil, err
		}
	}

	var conf Config

	err := v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	err = conf.Validate()
	if err != nil {
		return nil, err
	}

	return &conf, nil
}

func (c Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %v", c.Poll.Interval)
	}

	if !c.Mock && c.API.BaseURL == "" {
		return errors.New("api.baseURL is required unless mock is set")
	}

	_, err := reconcile.ParseEmptyBatchPolicy(c.Poll.EmptyBatch)
	if err != nil {
		return fmt.Errorf("poll.emptyBatch: %w", err)
	}

	switch c.Logs.Encoder {
	case EncoderTypeConsole, EncoderTypeJson:
	default:
		return fmt.Errorf("unexpected encoder value %v", c.Logs.Encoder)
	}

	return nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"mock":         "mock",
	"api":          "api.baseURL",
	"interval":     "poll.interval",
	"empty-batch":  "poll.emptyBatch",
	"log-file":     "logs.file",
	"log-level":    "logs.level",
	"metrics-port": "metrics.port",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}

		err := v.BindPFlag(key, f)
		if err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	return nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("mock", false)
	v.SetDefault("api.baseURL", "http://localhost:5204/api/ServiceStatus")
	v.SetDefault("api.timeout", "8s")
	v.SetDefault("api.qps", 5)
	v.SetDefault("api.burst", 10)
	v.SetDefault("api.retry.attempts", 3)
	v.SetDefault("api.retry.delay", "200ms")
	v.SetDefault("poll.interval", "10s")
	v.SetDefault("poll.timeout", "30s")
	v.SetDefault("poll.emptyBatch", string(reconcile.EmptyBatchRetain))
	v.SetDefault("logs.level", 0)
	v.SetDefault("logs.encoder", EncoderTypeConsole)
	v.SetDefault("logs.file", "")
	v.SetDefault("metrics.port", 0)
}
