package botclient

import (
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
)

const (
	DefaultServer  = "http://127.0.0.1:8080"
	DefaultTimeout = time.Minute * 20
)

type Config struct {
	JSON      bool
	Quiet     bool
	Repo      string
	Server    string
	SessionID string
	Stream    bool
	Timeout   time.Duration
	Username  string
}

func InitConfig(cfg *Config) {
	flag.BoolVar(&cfg.JSON, "json", getEnvBool("BOTCTL_JSON", false), "Print results as JSON. (env BOTCTL_JSON)")
	flag.BoolVar(&cfg.Quiet, "quiet", getEnvBool("BOTCTL_QUIET", false), "Suppress printing of informational messages except errors. (env BOTCTL_QUIET)")
	flag.StringVar(&cfg.Repo, "repo", os.Getenv("BOT_REPO"), "GitHub repository of the bot, as a URL or owner/name. (env BOT_REPO)")
	flag.StringVar(&cfg.Server, "server", getEnv("BOTDEPLOY_SERVER", DefaultServer), "URL to botdeployd. (env BOTDEPLOY_SERVER)")
	flag.StringVar(&cfg.SessionID, "session-id", os.Getenv("SESSION_ID"), "Session value given to the bot. (env SESSION_ID)")
	flag.BoolVar(&cfg.Stream, "stream", getEnvBool("BOTCTL_STREAM", true), "Follow deployment progress as it happens. (env BOTCTL_STREAM)")
	flag.DurationVar(&cfg.Timeout, "timeout", getEnvDuration("BOTCTL_TIMEOUT", DefaultTimeout), "Time to wait for a command to finish. (env BOTCTL_TIMEOUT)")
	flag.StringVar(&cfg.Username, "username", os.Getenv("GITHUB_USERNAME"), "GitHub user owning a fork of the upstream bot. (env GITHUB_USERNAME)")

	flag.Parse()
}

// NewConfig returns user input and default values as Config.
// Values will be resolved with the following precedence: flags > environment variables > default values.
func NewConfig() *Config {
	return &Config{}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return fallback
}

func getEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}

	return b
}
