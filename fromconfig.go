package agentgrid

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentgrid/config"
	"github.com/hupe1980/agentgrid/logging"
	"github.com/hupe1980/agentgrid/reasoning"
	"github.com/hupe1980/agentgrid/reasoning/anthropic"
	"github.com/hupe1980/agentgrid/reasoning/openai"
	"github.com/hupe1980/agentgrid/scheduler"
)

// NewFromConfig creates an Executor wired from a loaded configuration:
// the configured provider becomes the reasoning backend, and log level,
// format and the round budget are applied.
func NewFromConfig(cfg config.Config, optFns ...func(o *Options)) (*Executor, error) {
	reasoner, err := reasonerFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat != "" {
		logCfg.Format = cfg.LogFormat
	}
	logger := logging.New(logCfg)

	fns := append([]func(o *Options){func(o *Options) {
		o.Logger = logger
		if cfg.MaxSteps > 0 {
			o.MaxSteps = cfg.MaxSteps
		}
	}}, optFns...)

	return New(reasoner, fns...)
}

func reasonerFromConfig(cfg config.Config) (reasoning.Reasoner, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.APIKey = cfg.APIKey
		}), nil
	case config.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.APIKey = cfg.APIKey
		}), nil
	default:
		return nil, &scheduler.ConfigurationError{
			Reason: fmt.Sprintf("unknown provider %q", cfg.Provider),
		}
	}
}
