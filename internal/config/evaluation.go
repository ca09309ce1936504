package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EvaluationConfig tunes the evaluation scheduler. Values from the
// environment are the defaults; evaluation.yml overrides them and is
// watched for changes.
type EvaluationConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
	JobTimeout  time.Duration `mapstructure:"jobTimeout"`
	LockTTL     time.Duration `mapstructure:"lockTTL"`
	EnabledJobs []string      `mapstructure:"enabledJobs"`
}

func (c EvaluationConfig) JobEnabled(name string) bool {
	if len(c.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range c.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), name) {
			return true
		}
	}
	return false
}

type EvaluationConfigHolder struct {
	current atomic.Value // holds EvaluationConfig
}

// NewStaticEvaluationConfigHolder returns a holder that never reloads.
func NewStaticEvaluationConfigHolder(cfg EvaluationConfig) *EvaluationConfigHolder {
	holder := &EvaluationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewEvaluationConfigHolder(appCfg Config, log *zap.Logger) (*EvaluationConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.evaluation")
	defaults := appCfg.Evaluation

	v := viper.New()
	v.SetConfigName("evaluation")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/adminwatch")
	v.AddConfigPath(".")

	v.SetDefault("evaluation.interval", defaults.Interval)
	v.SetDefault("evaluation.concurrency", defaults.Concurrency)
	v.SetDefault("evaluation.jobTimeout", defaults.JobTimeout)
	v.SetDefault("evaluation.lockTTL", defaults.LockTTL)
	v.SetDefault("evaluation.enabledJobs", defaults.EnabledJobs)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg EvaluationConfig
	if err := v.UnmarshalKey("evaluation", &cfg); err != nil {
		return nil, err
	}
	if err := validateEvaluationConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticEvaluationConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EvaluationConfig
		if err := v.UnmarshalKey("evaluation", &updated); err != nil {
			log.Warn("evaluation config reload failed", zap.Error(err))
			return
		}
		if err := validateEvaluationConfig(updated); err != nil {
			log.Warn("invalid evaluation config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("evaluation config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *EvaluationConfigHolder) Get() EvaluationConfig {
	return h.current.Load().(EvaluationConfig)
}

func validateEvaluationConfig(cfg EvaluationConfig) error {
	if cfg.Interval <= 0 {
		return errors.New("evaluation.interval must be positive")
	}
	if cfg.Concurrency <= 0 {
		return errors.New("evaluation.concurrency must be positive")
	}
	if cfg.JobTimeout <= 0 {
		return errors.New("evaluation.jobTimeout must be positive")
	}
	return nil
}
