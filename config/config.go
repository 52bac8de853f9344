// Package config loads the administrator tunables and engine settings for
// a raid controller from an optional YAML file and MPTRAID_* environment
// variables.
package config

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"machinerun.io/mptraid"
	"machinerun.io/mptraid/action"
	"machinerun.io/mptraid/raidctl"
)

// EnvPrefix is prepended to upper-cased keys when reading the environment.
const EnvPrefix = "MPTRAID"

// Config is the decoded settings file.
type Config struct {
	WriteCache       string        `mapstructure:"write_cache"`
	ResyncRate       string        `mapstructure:"resync_rate"`
	QueueDepth       int           `mapstructure:"queue_depth"`
	ActionTimeout    time.Duration `mapstructure:"action_timeout"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	RequestSlots     int           `mapstructure:"request_slots"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("write_cache", mptraid.WriteCacheNoChange.String())
	v.SetDefault("resync_rate", mptraid.ResyncRateNoChange.String())
	v.SetDefault("queue_depth", mptraid.QueueDepthDefault)
	v.SetDefault("action_timeout", action.DefaultTimeout)
	v.SetDefault("progress_interval", raidctl.DefaultProgressInterval)
	v.SetDefault("request_slots", raidctl.DefaultRequestSlots)
}

// Load reads path, or when path is empty, mptraid.yaml from the working
// directory or /etc/mptraid if one exists. Environment variables override
// file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mptraid")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mptraid")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}

	if _, err := cfg.Options(logr.Discard()); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Options converts the settings into controller options logging to log.
func (c *Config) Options(log logr.Logger) (raidctl.Options, error) {
	opts := raidctl.DefaultOptions()
	opts.Log = log

	wc, err := mptraid.ParseWriteCacheMode(c.WriteCache)
	if err != nil {
		return opts, err
	}

	rate, err := mptraid.ParseResyncRate(c.ResyncRate)
	if err != nil {
		return opts, err
	}

	if !mptraid.ValidQueueDepth(c.QueueDepth) {
		return opts, errors.Wrapf(mptraid.ErrInvalidTunable, "queue depth %d", c.QueueDepth)
	}

	if c.ActionTimeout <= 0 {
		return opts, errors.Wrapf(mptraid.ErrInvalidTunable, "action timeout %s", c.ActionTimeout)
	}

	if c.RequestSlots <= 0 {
		return opts, errors.Wrapf(mptraid.ErrInvalidTunable, "request slots %d", c.RequestSlots)
	}

	opts.WriteCache = wc
	opts.ResyncRate = rate
	opts.QueueDepth = c.QueueDepth
	opts.ActionTimeout = c.ActionTimeout
	opts.ProgressInterval = c.ProgressInterval
	opts.RequestSlots = c.RequestSlots

	return opts, nil
}
