package source_test

import (
	"strings"
	"testing"

	"github.com/nais/botdeploy/pkg/heroku"
	"github.com/nais/botdeploy/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProcfile(t *testing.T) {
	procfile := `
# process types
web: node index.js
worker: node bot.js

release:
not a process line
worker: duplicate
`
	roles, err := source.ParseProcfile(strings.NewReader(procfile))
	require.NoError(t, err)
	assert.Equal(t, []string{"web", "worker"}, roles)
}

func TestRolePolicySelect(t *testing.T) {
	policy := source.DefaultPolicy()

	assert.Equal(t, "worker", policy.Select(nil))
	assert.Equal(t, "worker", policy.Select([]string{"web", "worker"}))
	assert.Equal(t, "web", policy.Select([]string{"web"}))
	assert.Equal(t, "bot", policy.Select([]string{"bot", "web"}))

	custom := source.RolePolicy{Preferred: "web", Default: "bot"}
	assert.Equal(t, "web", custom.Select([]string{"worker", "web"}))
	assert.Equal(t, "bot", custom.Select(nil))

	assert.Equal(t, "worker", source.RolePolicy{}.Select(nil))
	assert.Equal(t, "worker", source.RolePolicy{}.Select([]string{"web", "worker"}))
	assert.Equal(t, "worker", source.RolePolicy{Default: "bot"}.Select([]string{"web", "worker"}))
}

func TestFormation(t *testing.T) {
	t.Run("no procfile", func(t *testing.T) {
		updates := source.Formation("worker", nil, source.DefaultBaseline)
		assert.Equal(t, []heroku.FormationUpdate{
			{Type: "worker", Quantity: 1},
			{Type: "web", Quantity: 0},
		}, updates)
	})

	t.Run("declared roles are scaled down", func(t *testing.T) {
		updates := source.Formation("worker", []string{"web", "worker", "clock"}, source.DefaultBaseline)
		assert.Equal(t, []heroku.FormationUpdate{
			{Type: "worker", Quantity: 1},
			{Type: "web", Quantity: 0},
			{Type: "clock", Quantity: 0},
		}, updates)
	})

	t.Run("exactly one role runs", func(t *testing.T) {
		updates := source.Formation("web", []string{"web"}, source.DefaultBaseline)
		running := 0
		for _, u := range updates {
			running += u.Quantity
		}
		assert.Equal(t, 1, running)
	})
}
