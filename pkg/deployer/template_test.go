package deployer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nais/botdeploy/pkg/deployer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLTemplate(t *testing.T) {
	templates, err := deployer.NewTemplates("", "")
	require.NoError(t, err)

	url, err := templates.URL("my-bot")
	require.NoError(t, err)
	assert.Equal(t, "https://my-bot.herokuapp.com/", url)

	custom, err := deployer.NewTemplates("https://bots.example.com/{{name}}", "")
	require.NoError(t, err)
	url, err = custom.URL("my-bot")
	require.NoError(t, err)
	assert.Equal(t, "https://bots.example.com/my-bot", url)

	_, err = deployer.NewTemplates("{{#if}}", "")
	assert.Error(t, err)
}

func TestConfigVarsTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.yaml")
	content := `
BOT_NAME: "{{name}}"
SOURCE: "{{{repo}}}"
AUTO_READ: true
PREFIX: "."
EMPTY:
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	templates, err := deployer.NewTemplates("", path)
	require.NoError(t, err)

	vars, err := templates.ConfigVars(deployer.TemplateVariables{
		"name":      "my-bot",
		"repo":      "https://github.com/owner/repo?a=1&b=2",
		"sessionId": "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"BOT_NAME":  "my-bot",
		"SOURCE":    "https://github.com/owner/repo?a=1&b=2",
		"AUTO_READ": "true",
		"PREFIX":    ".",
		"EMPTY":     "",
	}, vars)
}

func TestConfigVarsTemplateErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := deployer.NewTemplates("", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	nested := filepath.Join(dir, "nested.yaml")
	require.NoError(t, os.WriteFile(nested, []byte("OUTER:\n  INNER: 1\n"), 0o644))
	_, err = deployer.NewTemplates("", nested)
	assert.ErrorContains(t, err, "must be a scalar")

	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("KEY: [unterminated\n"), 0o644))
	_, err = deployer.NewTemplates("", malformed)
	assert.Error(t, err)
}
