package logging_test

import (
	"testing"

	"github.com/nais/botdeploy/pkg/logging"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	assert.NoError(t, logging.Setup("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.NoError(t, logging.Setup("warn", "text"))
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	assert.EqualError(t, logging.Setup("info", "xml"), "log format 'xml' is not recognized")
	assert.Error(t, logging.Setup("loud", "text"))
}

func TestDeploymentFields(t *testing.T) {
	fields := logging.DeploymentFields("my-bot", "abc-123", "https://github.com/owner/repo")
	assert.Equal(t, log.Fields{
		logging.FieldApp:           "my-bot",
		logging.FieldCorrelationID: "abc-123",
		logging.FieldRepository:    "https://github.com/owner/repo",
	}, fields)

	fields = logging.DeploymentFields("my-bot", "abc-123", "")
	assert.NotContains(t, fields, logging.FieldRepository)
}

func TestBotLogger(t *testing.T) {
	entry := logging.BotLogger("my-bot")
	assert.Equal(t, log.Fields{logging.FieldApp: "my-bot"}, entry.Data)
}
