package logging

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	FieldApp           = "app"
	FieldBuildID       = "build_id"
	FieldCorrelationID = "correlation_id"
	FieldRepository    = "repository"
	FieldRole          = "role"
	FieldStep          = "step"
)

// DeploymentFields identifies the log lines of one deployment attempt.
// The repository is left out when empty.
func DeploymentFields(app, correlationID, repository string) log.Fields {
	fields := log.Fields{
		FieldApp:           app,
		FieldCorrelationID: correlationID,
	}
	if len(repository) > 0 {
		fields[FieldRepository] = repository
	}
	return fields
}

// BotLogger returns a logger for operations on one bot.
func BotLogger(app string) *log.Entry {
	return log.WithField(FieldApp, app)
}

func TextFormatter() log.Formatter {
	return &log.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	}
}

func JsonFormatter() log.Formatter {
	return &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
}

func Setup(level, format string) error {
	switch format {
	case "json":
		log.SetFormatter(JsonFormatter())
	case "text":
		log.SetFormatter(TextFormatter())
	default:
		return fmt.Errorf("log format '%s' is not recognized", format)
	}

	logLevel, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("while setting log level: %s", err)
	}
	log.SetLevel(logLevel)

	return nil
}
