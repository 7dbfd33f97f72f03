package deployer

import (
	"fmt"
	"time"

	"github.com/nais/botdeploy/pkg/source"
)

const (
	DefaultConfigVarKey         = "SESSION_ID"
	DefaultURLTemplate          = "https://{{name}}.herokuapp.com/"
	DefaultPollInterval         = 5 * time.Second
	DefaultPollMaxAttempts      = 120
	DefaultPollTimeout          = 15 * time.Minute
	DefaultPollTransientRetries = 3
)

type Config struct {
	// Config var receiving the session value of a deployment request.
	ConfigVarKey string
	// Optional YAML file with additional config vars. Values are templates.
	ConfigVarsFile       string
	URLTemplate          string
	PollInterval         time.Duration
	PollMaxAttempts      int
	PollTimeout          time.Duration
	PollTransientRetries int
	// Delete the app when a deployment fails after the app was created but before a build started.
	RollbackOnFailure bool
	// Deployment requests must name a GitHub user that passes fork verification.
	RequireFork bool
	// Process types always present in the formation update.
	Baseline []string
}

func DefaultConfig() Config {
	return Config{
		ConfigVarKey:         DefaultConfigVarKey,
		URLTemplate:          DefaultURLTemplate,
		PollInterval:         DefaultPollInterval,
		PollMaxAttempts:      DefaultPollMaxAttempts,
		PollTimeout:          DefaultPollTimeout,
		PollTransientRetries: DefaultPollTransientRetries,
		Baseline:             source.DefaultBaseline,
	}
}

func (cfg Config) Validate() error {
	if len(cfg.ConfigVarKey) == 0 {
		return fmt.Errorf("config var key must be set")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if cfg.PollMaxAttempts <= 0 {
		return fmt.Errorf("poll max attempts must be positive")
	}
	if cfg.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive")
	}
	if cfg.PollTransientRetries < 0 {
		return fmt.Errorf("poll transient retries must not be negative")
	}
	return nil
}
